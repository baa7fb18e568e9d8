// Package journal is the daily nutrition log: the append-mostly record of
// what the user ate today. Entries carry quantity-scaled absolute macros so
// summaries never need the product row; the rollover engine is the only bulk
// deleter of this table.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/dkazarov/fitplan/internal/errors"
	"github.com/dkazarov/fitplan/internal/product"
)

// MealType labels a log entry with the meal it belongs to.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// Valid reports whether m is one of the four known meal types.
func (m MealType) Valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// Entry is one consumed item. Macro fields are absolute amounts already
// scaled to QuantityGrams, not per-100g values.
type Entry struct {
	ID            string    `json:"id"`
	UserID        int64     `json:"user_id"`
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name"`
	MealType      MealType  `json:"meal_type"`
	QuantityGrams int       `json:"quantity_grams"`
	Calories      float64   `json:"calories"`
	Protein       float64   `json:"protein"`
	Fat           float64   `json:"fat"`
	Carbs         float64   `json:"carbs"`
	LoggedAt      time.Time `json:"logged_at"`
}

// Summary is an aggregate over log entries.
type Summary struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
	Entries  int     `json:"entries"`
}

// Store provides access to the nutrition_log table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a journal store over an initialized database.
func New(database *sql.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddInput contains parameters for the Add operation.
type AddInput struct {
	UserID        int64
	ProductID     string
	MealType      MealType
	QuantityGrams int
}

// Add logs a product under a meal type. Macros are resolved from the
// product's per-100g values at insert time and stored as absolute amounts.
func (s *Store) Add(ctx context.Context, input AddInput) (*Entry, error) {
	if !input.MealType.Valid() {
		return nil, errors.NewInvalidRequest("meal_type must be one of: breakfast, lunch, dinner, snack")
	}
	if input.QuantityGrams <= 0 {
		return nil, errors.NewInvalidRequest("quantity_grams must be positive")
	}

	var p product.Product
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, calories, protein, fat, carbs FROM products WHERE id = ?`,
		input.ProductID).Scan(&p.ID, &p.Name, &p.Calories, &p.Protein, &p.Fat, &p.Carbs)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("product: " + input.ProductID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	id, err := product.NewID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	factor := float64(input.QuantityGrams) / 100.0
	entry := &Entry{
		ID:            id,
		UserID:        input.UserID,
		ProductID:     p.ID,
		ProductName:   p.Name,
		MealType:      input.MealType,
		QuantityGrams: input.QuantityGrams,
		Calories:      p.Calories * factor,
		Protein:       p.Protein * factor,
		Fat:           p.Fat * factor,
		Carbs:         p.Carbs * factor,
		LoggedAt:      s.now(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO nutrition_log (id, user_id, product_id, meal_type, quantity, calories, protein, fat, carbs, logged_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.ProductID, string(entry.MealType), entry.QuantityGrams,
		entry.Calories, entry.Protein, entry.Fat, entry.Carbs, entry.LoggedAt.UnixMilli())
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return entry, nil
}

const entryColumns = `l.id, l.user_id, l.product_id, COALESCE(p.name, ''),
	l.meal_type, l.quantity, l.calories, l.protein, l.fat, l.carbs, l.logged_at`

// ListByMeal returns today's entries for one meal type, oldest first,
// with product names joined in for display.
func (s *Store) ListByMeal(ctx context.Context, userID int64, meal MealType) ([]Entry, error) {
	if !meal.Valid() {
		return nil, errors.NewInvalidRequest("meal_type must be one of: breakfast, lunch, dinner, snack")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+`
		 FROM nutrition_log l
		 LEFT JOIN products p ON p.id = l.product_id
		 WHERE l.user_id = ? AND l.meal_type = ? AND l.logged_at >= ?
		 ORDER BY l.logged_at ASC`,
		userID, string(meal), StartOfDay(s.now()).UnixMilli())
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// ListToday returns all of today's entries for a user, oldest first.
func (s *Store) ListToday(ctx context.Context, userID int64) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+`
		 FROM nutrition_log l
		 LEFT JOIN products p ON p.id = l.product_id
		 WHERE l.user_id = ? AND l.logged_at >= ?
		 ORDER BY l.logged_at ASC`,
		userID, StartOfDay(s.now()).UnixMilli())
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// UpdateQuantity changes an entry's quantity and rescales its stored macros
// proportionally, preserving the macro ratios resolved at log time.
func (s *Store) UpdateQuantity(ctx context.Context, entryID string, grams int) (*Entry, error) {
	if grams <= 0 {
		return nil, errors.NewInvalidRequest("quantity_grams must be positive")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback()

	var entry Entry
	var loggedAt int64
	err = tx.QueryRowContext(ctx,
		`SELECT id, user_id, product_id, meal_type, quantity, calories, protein, fat, carbs, logged_at
		 FROM nutrition_log WHERE id = ?`, entryID).
		Scan(&entry.ID, &entry.UserID, &entry.ProductID, &entry.MealType, &entry.QuantityGrams,
			&entry.Calories, &entry.Protein, &entry.Fat, &entry.Carbs, &loggedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("log entry: " + entryID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	factor := float64(grams) / float64(entry.QuantityGrams)
	entry.QuantityGrams = grams
	entry.Calories *= factor
	entry.Protein *= factor
	entry.Fat *= factor
	entry.Carbs *= factor
	entry.LoggedAt = time.UnixMilli(loggedAt)

	_, err = tx.ExecContext(ctx,
		`UPDATE nutrition_log SET quantity = ?, calories = ?, protein = ?, fat = ?, carbs = ? WHERE id = ?`,
		entry.QuantityGrams, entry.Calories, entry.Protein, entry.Fat, entry.Carbs, entryID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &entry, nil
}

// Delete removes a single log entry.
func (s *Store) Delete(ctx context.Context, entryID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM nutrition_log WHERE id = ?`, entryID)
	if err != nil {
		return errors.NewInternal(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if affected == 0 {
		return errors.NewNotFound("log entry: " + entryID)
	}
	return nil
}

// DailySummary aggregates today's entries for a user.
func (s *Store) DailySummary(ctx context.Context, userID int64) (*Summary, error) {
	return s.summarize(ctx,
		`SELECT COALESCE(SUM(calories), 0), COALESCE(SUM(protein), 0),
		        COALESCE(SUM(fat), 0), COALESCE(SUM(carbs), 0), COUNT(*)
		 FROM nutrition_log WHERE user_id = ? AND logged_at >= ?`,
		userID, StartOfDay(s.now()).UnixMilli())
}

// MealSummary aggregates today's entries for one meal type.
func (s *Store) MealSummary(ctx context.Context, userID int64, meal MealType) (*Summary, error) {
	if !meal.Valid() {
		return nil, errors.NewInvalidRequest("meal_type must be one of: breakfast, lunch, dinner, snack")
	}
	return s.summarize(ctx,
		`SELECT COALESCE(SUM(calories), 0), COALESCE(SUM(protein), 0),
		        COALESCE(SUM(fat), 0), COALESCE(SUM(carbs), 0), COUNT(*)
		 FROM nutrition_log WHERE user_id = ? AND logged_at >= ? AND meal_type = ?`,
		userID, StartOfDay(s.now()).UnixMilli(), string(meal))
}

// ClearToday deletes all of today's entries for a user and returns the count.
func (s *Store) ClearToday(ctx context.Context, userID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM nutrition_log WHERE user_id = ? AND logged_at >= ?`,
		userID, StartOfDay(s.now()).UnixMilli())
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return affected, nil
}

func (s *Store) summarize(ctx context.Context, query string, args ...any) (*Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&sum.Calories, &sum.Protein, &sum.Fat, &sum.Carbs, &sum.Entries)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &sum, nil
}

func collectEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var loggedAt int64
		err := rows.Scan(&e.ID, &e.UserID, &e.ProductID, &e.ProductName, &e.MealType,
			&e.QuantityGrams, &e.Calories, &e.Protein, &e.Fat, &e.Carbs, &loggedAt)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		e.LoggedAt = time.UnixMilli(loggedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}
