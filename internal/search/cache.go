// Package search implements product resolution: a three-tier in-memory
// cache over the local catalog and the remote provider, with last-one-wins
// supersession for keystroke-driven queries.
package search

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dkazarov/fitplan/internal/product"
)

// MinQueryLen is the minimum normalized query length (in runes) worth
// resolving or caching. Shorter queries return empty immediately.
const MinQueryLen = 2

// Cache holds the three related search cache tiers, all keyed by case-folded
// strings:
//
//   - exact: full query -> ranked product list; a hit short-circuits both the
//     catalog and the provider.
//   - prefix: every prefix (len >= 2) of a remote-fetched query -> the subset
//     of its results containing that prefix, so longer related queries reuse
//     a superset's results without a network call.
//   - byName: normalized product name -> product, for resolving a tapped
//     suggestion without another round trip.
//
// Each tier is independently bounded with LRU eviction. Tiers are safe for
// concurrent use.
type Cache struct {
	exact  *lru.Cache[string, []product.Product]
	prefix *lru.Cache[string, []product.Product]
	byName *lru.Cache[string, product.Product]
}

// NewCache creates a cache with the given per-tier capacities.
func NewCache(exactSize, prefixSize, nameSize int) (*Cache, error) {
	exact, err := lru.New[string, []product.Product](exactSize)
	if err != nil {
		return nil, err
	}
	prefix, err := lru.New[string, []product.Product](prefixSize)
	if err != nil {
		return nil, err
	}
	byName, err := lru.New[string, product.Product](nameSize)
	if err != nil {
		return nil, err
	}
	return &Cache{exact: exact, prefix: prefix, byName: byName}, nil
}

// GetExact returns the cached result list for a full normalized query.
func (c *Cache) GetExact(key string) ([]product.Product, bool) {
	return c.exact.Get(key)
}

// GetPrefix returns the cached subset for a normalized prefix.
func (c *Cache) GetPrefix(prefix string) ([]product.Product, bool) {
	return c.prefix.Get(prefix)
}

// GetByName returns the cached product for a normalized name.
func (c *Cache) GetByName(name string) (product.Product, bool) {
	return c.byName.Get(product.NormalizeKey(name))
}

// Populate stores a resolved result set under its query key across all
// tiers: the exact tier gets the full set, the prefix tier gets a filtered
// subset per query prefix (only where one isn't cached yet), and each
// product lands in the by-name tier.
func (c *Cache) Populate(key string, products []product.Product) {
	if len(products) == 0 || len([]rune(key)) < MinQueryLen {
		return
	}

	c.exact.Add(key, products)

	runes := []rune(key)
	for i := MinQueryLen; i <= len(runes); i++ {
		prefix := string(runes[:i])
		if c.prefix.Contains(prefix) {
			continue
		}
		subset := filterContaining(products, prefix)
		if len(subset) > 0 {
			c.prefix.Add(prefix, subset)
		}
	}

	for _, p := range products {
		nameKey := product.NormalizeKey(p.Name)
		if !c.byName.Contains(nameKey) {
			c.byName.Add(nameKey, p)
		}
	}
}

// Clear empties all tiers. Used on explicit invalidation only.
func (c *Cache) Clear() {
	c.exact.Purge()
	c.prefix.Purge()
	c.byName.Purge()
}

// filterContaining returns the products whose normalized name contains sub.
func filterContaining(products []product.Product, sub string) []product.Product {
	var out []product.Product
	for _, p := range products {
		if strings.Contains(product.NormalizeKey(p.Name), sub) {
			out = append(out, p)
		}
	}
	return out
}
