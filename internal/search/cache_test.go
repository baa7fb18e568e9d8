package search

import (
	"fmt"
	"testing"

	"github.com/dkazarov/fitplan/internal/product"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := NewCache(50, 100, 200)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	return cache
}

func TestPopulateExactTier(t *testing.T) {
	cache := newTestCache(t)
	products := []product.Product{{Name: "Гречка", Calories: 343}}

	cache.Populate("гречка", products)

	got, ok := cache.GetExact("гречка")
	if !ok {
		t.Fatal("exact tier should hit after Populate")
	}
	if len(got) != 1 || got[0].Name != "Гречка" {
		t.Errorf("got %+v", got)
	}

	if _, ok := cache.GetExact("рис"); ok {
		t.Error("unrelated key should miss")
	}
}

func TestPopulatePrefixTierFilters(t *testing.T) {
	cache := newTestCache(t)
	products := []product.Product{
		{Name: "Гречка"},
		{Name: "Гречневая каша"},
		{Name: "Рис"},
	}

	cache.Populate("гречка", products)

	// Every prefix of length >= 2 maps to the subset containing it
	subset, ok := cache.GetPrefix("гре")
	if !ok {
		t.Fatal("prefix tier should hit for гре")
	}
	if len(subset) != 2 {
		t.Fatalf("subset size = %d, want 2 (Рис does not contain гре)", len(subset))
	}
	for _, p := range subset {
		if p.Name == "Рис" {
			t.Error("Рис must be filtered out of the гре subset")
		}
	}

	// Full-length prefix exists too
	if _, ok := cache.GetPrefix("гречка"); !ok {
		t.Error("prefix tier should hold the full query as well")
	}
	// Single-rune prefixes are never cached
	if _, ok := cache.GetPrefix("г"); ok {
		t.Error("prefix tier must not hold single-rune keys")
	}
}

func TestPopulateDoesNotOverwritePrefix(t *testing.T) {
	cache := newTestCache(t)

	cache.Populate("гречка", []product.Product{{Name: "Гречка", Calories: 343}})
	// Second populate shares the "гр" prefix; the existing entry must stay
	cache.Populate("грудка", []product.Product{{Name: "Грудка индейки", Calories: 84}})

	subset, ok := cache.GetPrefix("гр")
	if !ok {
		t.Fatal("prefix tier should hit")
	}
	if len(subset) != 1 || subset[0].Name != "Гречка" {
		t.Errorf("first writer should win for shared prefixes, got %+v", subset)
	}
}

func TestPopulateByNameTier(t *testing.T) {
	cache := newTestCache(t)
	cache.Populate("гречка", []product.Product{{ID: "01X", Name: "Гречка", Calories: 343}})

	p, ok := cache.GetByName("ГРЕЧКА")
	if !ok {
		t.Fatal("by-name tier should hit case-insensitively")
	}
	if p.ID != "01X" || p.Calories != 343 {
		t.Errorf("got %+v", p)
	}
}

func TestPopulateIgnoresEmptyAndShort(t *testing.T) {
	cache := newTestCache(t)

	cache.Populate("гречка", nil)
	if _, ok := cache.GetExact("гречка"); ok {
		t.Error("empty result set must not be cached")
	}

	cache.Populate("г", []product.Product{{Name: "Гречка"}})
	if _, ok := cache.GetExact("г"); ok {
		t.Error("sub-minimum keys must not be cached")
	}
}

func TestExactTierCapacityBound(t *testing.T) {
	cache, err := NewCache(3, 100, 200)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("запрос%02d", i)
		cache.Populate(key, []product.Product{{Name: "Продукт " + key}})
	}

	hits := 0
	for i := 0; i < 10; i++ {
		if _, ok := cache.GetExact(fmt.Sprintf("запрос%02d", i)); ok {
			hits++
		}
	}
	if hits != 3 {
		t.Errorf("exact tier holds %d entries, want capacity 3", hits)
	}
	// LRU keeps the newest inserts
	if _, ok := cache.GetExact("запрос09"); !ok {
		t.Error("most recent entry should survive eviction")
	}
}

func TestClear(t *testing.T) {
	cache := newTestCache(t)
	cache.Populate("гречка", []product.Product{{Name: "Гречка"}})

	cache.Clear()

	if _, ok := cache.GetExact("гречка"); ok {
		t.Error("exact tier should be empty after Clear")
	}
	if _, ok := cache.GetPrefix("гр"); ok {
		t.Error("prefix tier should be empty after Clear")
	}
	if _, ok := cache.GetByName("Гречка"); ok {
		t.Error("by-name tier should be empty after Clear")
	}
}
