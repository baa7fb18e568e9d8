package product

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Product is a catalog food item. Macro values are per 100 grams.
// ID is empty until the product is persisted; before that, identity is
// name-based (case-insensitive).
type Product struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
	Brand    string  `json:"brand,omitempty"`
	Barcode  string  `json:"barcode,omitempty"`
}

// HasMacros reports whether any macro value is non-zero. Providers return
// all-zero nutrient blocks as a no-data placeholder; such candidates are
// discarded.
func (p Product) HasMacros() bool {
	return p.Calories != 0 || p.Protein != 0 || p.Fat != 0 || p.Carbs != 0
}

// Nutrients is the provider nutrient block, already normalized to one
// internal shape (per 100 g). Decoding of the provider's field-name
// variants happens at the transport boundary.
type Nutrients struct {
	Calories float64
	Protein  float64
	Fat      float64
	Carbs    float64
}

// RawProduct is the provider-shaped search hit. All fields are optional;
// it carries no invariants and exists only as input to FromRaw.
type RawProduct struct {
	Name      string
	Brand     string
	Code      string
	Nutrients Nutrients
}

// FromRaw converts a provider hit into a Product, cleaning the name through
// the normalizer. Returns false when the hit is unusable (no name after
// cleaning, or an all-zero nutrient block).
func FromRaw(raw RawProduct) (Product, bool) {
	name := CleanName(raw.Name)
	if name == "" {
		return Product{}, false
	}
	p := Product{
		Name:     name,
		Calories: raw.Nutrients.Calories,
		Protein:  raw.Nutrients.Protein,
		Fat:      raw.Nutrients.Fat,
		Carbs:    raw.Nutrients.Carbs,
		Brand:    raw.Brand,
		Barcode:  raw.Code,
	}
	if !p.HasMacros() {
		return Product{}, false
	}
	return p, true
}

// NewID generates a new ULID.
func NewID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
