package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dkazarov/fitplan/internal/errors"
)

const sampleResponse = `{
	"products": [
		{
			"product_name": "Chicken Breast",
			"brands": "Petelinka",
			"code": "4601234567890",
			"nutriments": {
				"energy-kcal_100g": 165,
				"proteins_100g": 31,
				"fat_100g": 3.6,
				"carbohydrates_100g": 0
			}
		},
		{
			"product_name": "Oatmeal",
			"nutriments": {
				"energy_kcal_100g": "389",
				"proteins": 16.9,
				"fat": 6.9,
				"carbohydrates": 66.3
			}
		}
	]
}`

func TestSearchDecodesVariants(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_terms")
		if r.URL.Path != "/cgi/search.pl" {
			t.Errorf("path = %q, want /cgi/search.pl", r.URL.Path)
		}
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 15, time.Second, zap.NewNop())
	raws, err := client.Search(context.Background(), "chicken")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if gotQuery != "chicken" {
		t.Errorf("search_terms = %q, want chicken", gotQuery)
	}
	if len(raws) != 2 {
		t.Fatalf("hit count = %d, want 2", len(raws))
	}

	first := raws[0]
	if first.Name != "Chicken Breast" || first.Brand != "Petelinka" || first.Code != "4601234567890" {
		t.Errorf("first hit = %+v", first)
	}
	if first.Nutrients.Calories != 165 || first.Nutrients.Protein != 31 {
		t.Errorf("first nutrients = %+v", first.Nutrients)
	}

	// Second record uses underscore/short key variants and a string calorie value
	second := raws[1]
	if second.Nutrients.Calories != 389 {
		t.Errorf("variant calories = %v, want 389", second.Nutrients.Calories)
	}
	if second.Nutrients.Carbs != 66.3 {
		t.Errorf("variant carbs = %v, want 66.3", second.Nutrients.Carbs)
	}
}

func TestSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 15, time.Second, zap.NewNop())
	_, err := client.Search(context.Background(), "chicken")
	if !errors.Is(err, errors.ErrRemoteUnavailable) {
		t.Errorf("err = %v, want REMOTE_UNAVAILABLE", err)
	}
}

func TestSearchMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 15, time.Second, zap.NewNop())
	_, err := client.Search(context.Background(), "chicken")
	if !errors.Is(err, errors.ErrRemoteUnavailable) {
		t.Errorf("err = %v, want REMOTE_UNAVAILABLE", err)
	}
}

func TestSearchContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"products":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 15, 5*time.Second, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.Search(ctx, "chicken"); err == nil {
		t.Error("Search should fail when the context deadline passes")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 15, time.Second, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		client.Search(ctx, "chicken")
	}

	// After the breaker trips, calls short-circuit without reaching the server
	hitsBefore := hits
	_, err := client.Search(ctx, "chicken")
	if !errors.Is(err, errors.ErrRemoteUnavailable) {
		t.Errorf("err = %v, want REMOTE_UNAVAILABLE", err)
	}
	if hits != hitsBefore {
		t.Errorf("breaker should short-circuit, but server saw %d new hits", hits-hitsBefore)
	}
}

func TestSearchEmptyProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"products":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 15, time.Second, zap.NewNop())
	raws, err := client.Search(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(raws) != 0 {
		t.Errorf("hit count = %d, want 0", len(raws))
	}
}
