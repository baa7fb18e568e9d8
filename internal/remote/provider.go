// Package remote is the boundary to the food search provider. The engine
// consumes the Provider interface only; transport details stay here.
package remote

import (
	"context"

	"github.com/dkazarov/fitplan/internal/product"
)

// Provider is the abstract remote search capability. Implementations must
// honor ctx cancellation and deadlines; any transport failure is reported as
// an error, never a panic, and the caller degrades to local-only results.
type Provider interface {
	Search(ctx context.Context, query string) ([]product.RawProduct, error)
}
