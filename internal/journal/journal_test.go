package journal

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/dkazarov/fitplan/internal/catalog"
	"github.com/dkazarov/fitplan/internal/db"
	"github.com/dkazarov/fitplan/internal/errors"
	"github.com/dkazarov/fitplan/internal/product"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database), database
}

func seedProduct(t *testing.T, database *sql.DB, p product.Product) string {
	t.Helper()
	id, err := catalog.New(database).InsertIfAbsent(context.Background(), p)
	if err != nil {
		t.Fatalf("seed product failed: %v", err)
	}
	return id
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.001
}

func TestAddScalesMacros(t *testing.T) {
	store, database := newTestStore(t)
	ctx := context.Background()

	// Per-100g values
	pid := seedProduct(t, database, product.Product{
		Name: "Гречка", Calories: 343, Protein: 13.3, Fat: 3.4, Carbs: 71.5,
	})

	entry, err := store.Add(ctx, AddInput{UserID: 1, ProductID: pid, MealType: MealBreakfast, QuantityGrams: 150})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if entry.ID == "" || len(entry.ID) != 26 {
		t.Errorf("id = %q, want a ULID", entry.ID)
	}
	if entry.ProductName != "Гречка" {
		t.Errorf("product name = %q", entry.ProductName)
	}
	if !approxEqual(entry.Calories, 514.5) {
		t.Errorf("calories = %v, want 343 * 1.5", entry.Calories)
	}
	if !approxEqual(entry.Protein, 19.95) {
		t.Errorf("protein = %v, want 13.3 * 1.5", entry.Protein)
	}
}

func TestAddValidation(t *testing.T) {
	store, database := newTestStore(t)
	ctx := context.Background()
	pid := seedProduct(t, database, product.Product{Name: "Рис", Calories: 344})

	if _, err := store.Add(ctx, AddInput{UserID: 1, ProductID: pid, MealType: "brunch", QuantityGrams: 100}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("unknown meal type: err = %v, want INVALID_REQUEST", err)
	}
	if _, err := store.Add(ctx, AddInput{UserID: 1, ProductID: pid, MealType: MealLunch, QuantityGrams: 0}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("zero quantity: err = %v, want INVALID_REQUEST", err)
	}
	if _, err := store.Add(ctx, AddInput{UserID: 1, ProductID: "nope", MealType: MealLunch, QuantityGrams: 100}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing product: err = %v, want NOT_FOUND", err)
	}
}

func TestListByMealScopedToToday(t *testing.T) {
	store, database := newTestStore(t)
	ctx := context.Background()
	pid := seedProduct(t, database, product.Product{Name: "Овсянка", Calories: 68})

	// Yesterday's breakfast must not show up in today's list
	yesterday := time.Now().Add(-24 * time.Hour)
	store.now = func() time.Time { return yesterday }
	if _, err := store.Add(ctx, AddInput{UserID: 1, ProductID: pid, MealType: MealBreakfast, QuantityGrams: 200}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	store.now = time.Now
	if _, err := store.Add(ctx, AddInput{UserID: 1, ProductID: pid, MealType: MealBreakfast, QuantityGrams: 250}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := store.Add(ctx, AddInput{UserID: 1, ProductID: pid, MealType: MealLunch, QuantityGrams: 100}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	// Another user's entries stay invisible
	if _, err := store.Add(ctx, AddInput{UserID: 2, ProductID: pid, MealType: MealBreakfast, QuantityGrams: 100}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	entries, err := store.ListByMeal(ctx, 1, MealBreakfast)
	if err != nil {
		t.Fatalf("ListByMeal failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 (today's breakfast only)", len(entries))
	}
	if entries[0].QuantityGrams != 250 {
		t.Errorf("quantity = %d, want 250", entries[0].QuantityGrams)
	}
	if entries[0].ProductName != "Овсянка" {
		t.Errorf("product name = %q", entries[0].ProductName)
	}
}

func TestUpdateQuantityRescales(t *testing.T) {
	store, database := newTestStore(t)
	ctx := context.Background()
	pid := seedProduct(t, database, product.Product{Name: "Творог", Calories: 120, Protein: 18})

	entry, err := store.Add(ctx, AddInput{UserID: 1, ProductID: pid, MealType: MealSnack, QuantityGrams: 100})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	updated, err := store.UpdateQuantity(ctx, entry.ID, 250)
	if err != nil {
		t.Fatalf("UpdateQuantity failed: %v", err)
	}
	if updated.QuantityGrams != 250 {
		t.Errorf("quantity = %d, want 250", updated.QuantityGrams)
	}
	if !approxEqual(updated.Calories, 300) {
		t.Errorf("calories = %v, want 120 * 2.5", updated.Calories)
	}
	if !approxEqual(updated.Protein, 45) {
		t.Errorf("protein = %v, want 18 * 2.5", updated.Protein)
	}

	// Persisted, not just returned
	entries, err := store.ListByMeal(ctx, 1, MealSnack)
	if err != nil {
		t.Fatalf("ListByMeal failed: %v", err)
	}
	if len(entries) != 1 || !approxEqual(entries[0].Calories, 300) {
		t.Errorf("persisted entries = %+v", entries)
	}

	if _, err := store.UpdateQuantity(ctx, entry.ID, -5); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("negative quantity: err = %v, want INVALID_REQUEST", err)
	}
	if _, err := store.UpdateQuantity(ctx, "missing", 100); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing entry: err = %v, want NOT_FOUND", err)
	}
}

func TestDelete(t *testing.T) {
	store, database := newTestStore(t)
	ctx := context.Background()
	pid := seedProduct(t, database, product.Product{Name: "Яблоко", Calories: 52})

	entry, err := store.Add(ctx, AddInput{UserID: 1, ProductID: pid, MealType: MealSnack, QuantityGrams: 180})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := store.Delete(ctx, entry.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, entry.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second delete: err = %v, want NOT_FOUND", err)
	}
}

func TestSummaries(t *testing.T) {
	store, database := newTestStore(t)
	ctx := context.Background()
	pid := seedProduct(t, database, product.Product{Name: "Курица", Calories: 190, Protein: 16, Fat: 14})

	for _, in := range []AddInput{
		{UserID: 1, ProductID: pid, MealType: MealBreakfast, QuantityGrams: 100},
		{UserID: 1, ProductID: pid, MealType: MealLunch, QuantityGrams: 200},
		{UserID: 1, ProductID: pid, MealType: MealLunch, QuantityGrams: 100},
	} {
		if _, err := store.Add(ctx, in); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	daily, err := store.DailySummary(ctx, 1)
	if err != nil {
		t.Fatalf("DailySummary failed: %v", err)
	}
	if daily.Entries != 3 || !approxEqual(daily.Calories, 760) {
		t.Errorf("daily = %+v, want 3 entries, 760 kcal", daily)
	}

	lunch, err := store.MealSummary(ctx, 1, MealLunch)
	if err != nil {
		t.Fatalf("MealSummary failed: %v", err)
	}
	if lunch.Entries != 2 || !approxEqual(lunch.Calories, 570) {
		t.Errorf("lunch = %+v, want 2 entries, 570 kcal", lunch)
	}

	// Empty meal aggregates to zeros, not an error
	dinner, err := store.MealSummary(ctx, 1, MealDinner)
	if err != nil {
		t.Fatalf("MealSummary failed: %v", err)
	}
	if dinner.Entries != 0 || dinner.Calories != 0 {
		t.Errorf("dinner = %+v, want zeros", dinner)
	}
}

func TestClearToday(t *testing.T) {
	store, database := newTestStore(t)
	ctx := context.Background()
	pid := seedProduct(t, database, product.Product{Name: "Банан", Calories: 89})

	yesterday := time.Now().Add(-24 * time.Hour)
	store.now = func() time.Time { return yesterday }
	if _, err := store.Add(ctx, AddInput{UserID: 1, ProductID: pid, MealType: MealSnack, QuantityGrams: 120}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	store.now = time.Now
	for i := 0; i < 2; i++ {
		if _, err := store.Add(ctx, AddInput{UserID: 1, ProductID: pid, MealType: MealSnack, QuantityGrams: 120}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	deleted, err := store.ClearToday(ctx, 1)
	if err != nil {
		t.Fatalf("ClearToday failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want today's 2 rows only", deleted)
	}

	// Yesterday's row survives for the rollover to pick up
	var remaining int
	if err := database.QueryRow(`SELECT COUNT(*) FROM nutrition_log WHERE user_id = 1`).Scan(&remaining); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if remaining != 1 {
		t.Errorf("remaining rows = %d, want 1", remaining)
	}
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	ts := time.Date(2026, 3, 14, 23, 59, 59, 0, loc)
	got := StartOfDay(ts)
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("StartOfDay = %v, want %v", got, want)
	}
}
