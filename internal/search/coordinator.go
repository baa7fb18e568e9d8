package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dkazarov/fitplan/internal/catalog"
	"github.com/dkazarov/fitplan/internal/errors"
	"github.com/dkazarov/fitplan/internal/product"
	"github.com/dkazarov/fitplan/internal/remote"
)

// Options tunes the coordinator. Zero values fall back to the defaults the
// engine is specified against.
type Options struct {
	RemoteTimeout time.Duration // per remote call; default 2s
	ResultCap     int           // max products returned; default 15
	LocalLimit    int           // catalog prefix-search cap; default 15
}

func (o Options) withDefaults() Options {
	if o.RemoteTimeout <= 0 {
		o.RemoteTimeout = 2 * time.Second
	}
	if o.ResultCap <= 0 {
		o.ResultCap = 15
	}
	if o.LocalLimit <= 0 {
		o.LocalLimit = 15
	}
	return o
}

// Coordinator resolves free-text food queries by merging the tiered cache,
// the local catalog, and the remote provider. The catalog always wins on
// name conflicts; only real remote results are ever persisted back into it.
type Coordinator struct {
	cache    *Cache
	catalog  *catalog.Store
	provider remote.Provider
	opts     Options
	log      *zap.Logger
}

// NewCoordinator wires a coordinator. The cache is owned by the caller so
// tests can construct isolated instances; pass provider == nil to run
// local-only (offline mode).
func NewCoordinator(cache *Cache, store *catalog.Store, provider remote.Provider, opts Options, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		cache:    cache,
		catalog:  store,
		provider: provider,
		opts:     opts.withDefaults(),
		log:      log,
	}
}

// Resolve returns a ranked product list for a free-text query. Queries
// shorter than two normalized runes return empty with no side effects.
// Remote failures degrade to cache/local-only results and are never
// returned as errors.
func (c *Coordinator) Resolve(ctx context.Context, query string) ([]product.Product, error) {
	return c.resolve(ctx, query, nil)
}

// resolve implements Resolve with an optional progressive-disclosure hook:
// when the query has to go to the provider, onPartial (if set) receives the
// catalog results first so a caller can show them while the remote call is
// in flight.
func (c *Coordinator) resolve(ctx context.Context, query string, onPartial func([]product.Product)) ([]product.Product, error) {
	key := product.NormalizeKey(query)
	if len([]rune(key)) < MinQueryLen {
		return nil, nil
	}

	// Tier 1: exact hit ends the search
	if products, ok := c.cache.GetExact(key); ok {
		c.log.Debug("exact cache hit", zap.String("query", key), zap.Int("products", len(products)))
		return products, nil
	}

	// Tier 2: a previously fetched superset may already cover this query.
	// Longest prefix first, filtered down to names containing the full query.
	runes := []rune(key)
	for i := len(runes); i >= MinQueryLen; i-- {
		cached, ok := c.cache.GetPrefix(string(runes[:i]))
		if !ok {
			continue
		}
		if filtered := filterContaining(cached, key); len(filtered) > 0 {
			c.log.Debug("prefix cache hit",
				zap.String("query", key),
				zap.String("prefix", string(runes[:i])),
				zap.Int("products", len(filtered)))
			return filtered, nil
		}
	}

	// Catalog and provider in parallel
	type localResult struct {
		products []product.Product
		err      error
	}
	localCh := make(chan localResult, 1)
	go func() {
		products, err := c.catalog.FindByPrefix(ctx, key, c.opts.LocalLimit)
		localCh <- localResult{products, err}
	}()

	remoteCh := make(chan []product.Product, 1)
	go func() {
		remoteCh <- c.fetchRemote(ctx, key)
	}()

	local := <-localCh
	if local.err != nil {
		return nil, local.err
	}
	if onPartial != nil && len(local.products) > 0 {
		onPartial(rank(local.products, key))
	}

	remoteProducts := <-remoteCh
	if err := ctx.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	merged := merge(local.products, remoteProducts, c.opts.ResultCap)
	ranked := rank(merged, key)

	c.persistRemote(ctx, ranked)
	c.cache.Populate(key, ranked)

	return ranked, nil
}

// ResolveByName resolves a single product the user picked from suggestions,
// trying the by-name cache before the catalog.
func (c *Coordinator) ResolveByName(ctx context.Context, name string) (*product.Product, error) {
	if p, ok := c.cache.GetByName(name); ok {
		return &p, nil
	}
	return c.catalog.FindByName(ctx, name)
}

// ClearCache empties every cache tier. Explicit invalidation only.
func (c *Coordinator) ClearCache() {
	c.cache.Clear()
}

// fetchRemote queries the provider under the configured timeout, converting
// and deduplicating hits. Any failure is absorbed into "no remote results".
func (c *Coordinator) fetchRemote(ctx context.Context, key string) []product.Product {
	if c.provider == nil {
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, c.opts.RemoteTimeout)
	defer cancel()

	raws, err := c.provider.Search(rctx, key)
	if err != nil {
		c.log.Debug("remote search degraded to local-only",
			zap.String("query", key), zap.Error(err))
		return nil
	}

	seen := make(map[string]bool, len(raws))
	var products []product.Product
	for _, raw := range raws {
		p, ok := product.FromRaw(raw)
		if !ok {
			continue
		}
		nameKey := product.NormalizeKey(p.Name)
		if seen[nameKey] {
			continue
		}
		seen[nameKey] = true
		products = append(products, p)
	}
	return products
}

// persistRemote opportunistically stores remote-derived products in the
// catalog so future identical queries become local-only. Runs detached from
// the caller's cancellation: a superseded search may still finish its
// writes, it just never reaches the UI.
func (c *Coordinator) persistRemote(ctx context.Context, products []product.Product) {
	dctx := context.WithoutCancel(ctx)
	for i := range products {
		if products[i].ID != "" {
			continue
		}
		id, err := c.catalog.InsertIfAbsent(dctx, products[i])
		if err != nil {
			c.log.Warn("failed to persist remote product",
				zap.String("name", products[i].Name), zap.Error(err))
			continue
		}
		products[i].ID = id
	}
}

// merge combines local and remote result sets, deduplicating by normalized
// name with local entries taking precedence, truncated to limit.
func merge(local, remoteProducts []product.Product, limit int) []product.Product {
	merged := make([]product.Product, 0, len(local)+len(remoteProducts))
	seen := make(map[string]bool, len(local))

	for _, p := range local {
		nameKey := product.NormalizeKey(p.Name)
		if seen[nameKey] {
			continue
		}
		seen[nameKey] = true
		merged = append(merged, p)
	}
	for _, p := range remoteProducts {
		nameKey := product.NormalizeKey(p.Name)
		if seen[nameKey] {
			continue
		}
		seen[nameKey] = true
		merged = append(merged, p)
	}

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// rank orders products by relevance to the query: exact name match, then
// names starting with the query, then names merely containing it. Ties keep
// their original order.
func rank(products []product.Product, key string) []product.Product {
	ranked := make([]product.Product, len(products))
	copy(ranked, products)

	score := func(p product.Product) int {
		name := product.NormalizeKey(p.Name)
		switch {
		case name == key:
			return 0
		case strings.HasPrefix(name, key):
			return 1
		case strings.Contains(name, key):
			return 2
		default:
			return 3
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i]) < score(ranked[j])
	})
	return ranked
}
