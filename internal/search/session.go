package search

import (
	"context"
	"sync"

	"github.com/dkazarov/fitplan/internal/product"
)

// Results is one delivery from a Session. Final is false for the provisional
// local-only set shown while the remote call is still in flight.
type Results struct {
	Query    string
	Products []product.Product
	Final    bool
}

// Session binds the coordinator to one logical search input field and
// enforces strict last-one-wins supersession: each Update cancels the
// previous in-flight resolution, and a superseded attempt never reaches the
// deliver callback even if its I/O completes later. Cache and catalog writes
// from superseded attempts are allowed to finish silently.
type Session struct {
	coord   *Coordinator
	deliver func(Results)

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession creates a session delivering results to the given callback.
// The callback is invoked from background goroutines, one delivery at a
// time per generation; it must not block for long.
func (c *Coordinator) NewSession(deliver func(Results)) *Session {
	return &Session{coord: c, deliver: deliver}
}

// Update supersedes any in-flight resolution with a new query. Resolution
// runs in the background; the session delivers a provisional local-only
// result set when available, then the final merged set.
func (s *Session) Update(query string) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		onPartial := func(partial []product.Product) {
			s.deliverIfCurrent(gen, Results{Query: query, Products: partial, Final: false})
		}

		products, err := s.coord.resolve(ctx, query, onPartial)
		if err != nil {
			// Cancelled or failed attempts produce no UI-visible effect
			return
		}
		s.deliverIfCurrent(gen, Results{Query: query, Products: products, Final: true})
	}()
}

// Close cancels any in-flight resolution and waits for its goroutine. No
// deliveries happen after Close returns.
func (s *Session) Close() {
	s.mu.Lock()
	s.gen++ // invalidate any pending delivery
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// deliverIfCurrent invokes the callback only when gen is still the newest
// generation. Holding the lock across the callback keeps deliveries ordered
// and makes suppression airtight against a concurrent Update.
func (s *Session) deliverIfCurrent(gen uint64, r Results) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.deliver(r)
}
