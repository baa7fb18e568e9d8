package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/dkazarov/fitplan/internal/errors"
	"github.com/dkazarov/fitplan/internal/product"
)

// Client searches the OpenFoodFacts text-search API. Calls go through a
// circuit breaker so a flapping provider degrades to fast "no results"
// instead of burning the full timeout on every keystroke.
type Client struct {
	baseURL  string
	pageSize int
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	log      *zap.Logger
}

// NewClient creates a provider client. timeout bounds each search call.
func NewClient(baseURL string, pageSize int, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openfoodfacts",
		MaxRequests: 2,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 3 && counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("provider breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Client{
		baseURL:  baseURL,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
		breaker:  cb,
		log:      log,
	}
}

// Search queries the provider for free-text matches.
func (c *Client) Search(ctx context.Context, query string) ([]product.RawProduct, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.search(ctx, query)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			c.log.Debug("provider breaker open, skipping remote search", zap.String("query", query))
			return nil, errors.NewRemoteUnavailable(err)
		}
		return nil, err
	}
	return result.([]product.RawProduct), nil
}

func (c *Client) search(ctx context.Context, query string) ([]product.RawProduct, error) {
	q := url.Values{}
	q.Set("search_terms", query)
	q.Set("search_simple", "1")
	q.Set("action", "process")
	q.Set("json", "1")
	q.Set("page_size", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/cgi/search.pl?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("provider request failed",
			zap.String("query", query), zap.Error(err))
		return nil, errors.NewRemoteUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewRemoteUnavailable(fmt.Errorf("provider returned status %d", resp.StatusCode))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.NewRemoteUnavailable(fmt.Errorf("malformed provider payload: %w", err))
	}

	raws := make([]product.RawProduct, 0, len(payload.Products))
	for _, wp := range payload.Products {
		raws = append(raws, product.RawProduct{
			Name:      wp.ProductName,
			Brand:     wp.Brands,
			Code:      wp.Code,
			Nutrients: wp.Nutriments.toNutrients(),
		})
	}

	c.log.Debug("provider search completed",
		zap.String("query", query),
		zap.Int("hits", len(raws)),
		zap.Duration("took", time.Since(start)))
	return raws, nil
}

type searchResponse struct {
	Products []wireProduct `json:"products"`
}

type wireProduct struct {
	ProductName string         `json:"product_name"`
	Brands      string         `json:"brands"`
	Code        string         `json:"code"`
	Nutriments  wireNutriments `json:"nutriments"`
}

// wireNutriments absorbs the provider's nutrient key variants. Values come
// back as numbers or numeric strings depending on the product record.
type wireNutriments map[string]any

var (
	calorieKeys = []string{"energy-kcal_100g", "energy_kcal_100g", "energy-kcal"}
	proteinKeys = []string{"proteins_100g", "proteins"}
	fatKeys     = []string{"fat_100g", "fat"}
	carbKeys    = []string{"carbohydrates_100g", "carbohydrates"}
)

func (n wireNutriments) toNutrients() product.Nutrients {
	return product.Nutrients{
		Calories: n.pick(calorieKeys),
		Protein:  n.pick(proteinKeys),
		Fat:      n.pick(fatKeys),
		Carbs:    n.pick(carbKeys),
	}
}

// pick returns the first key variant present with a usable numeric value.
func (n wireNutriments) pick(keys []string) float64 {
	for _, key := range keys {
		v, ok := n[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case float64:
			return val
		case string:
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		case json.Number:
			if f, err := val.Float64(); err == nil {
				return f
			}
		}
	}
	return 0
}
