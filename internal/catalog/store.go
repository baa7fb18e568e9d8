// Package catalog is the persisted food product catalog. Product names are
// unique under case-insensitive comparison; the unique index on name_norm is
// the single arbiter of that invariant, so concurrent inserts of the same
// name can never create duplicate rows.
package catalog

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/dkazarov/fitplan/internal/db"
	"github.com/dkazarov/fitplan/internal/errors"
	"github.com/dkazarov/fitplan/internal/product"
)

// Store provides access to the products table.
type Store struct {
	db *sql.DB
}

// New creates a catalog store over an initialized database.
func New(database *sql.DB) *Store {
	return &Store{db: database}
}

const productColumns = `id, name, calories, protein, fat, carbs,
	COALESCE(brand, ''), COALESCE(barcode, '')`

// FindByName retrieves a product by exact name, case-insensitively.
// Returns a NOT_FOUND error when no product matches.
func (s *Store) FindByName(ctx context.Context, name string) (*product.Product, error) {
	norm := product.NormalizeKey(name)
	if norm == "" {
		return nil, errors.NewInvalidRequest("name must not be empty")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE name_norm = ?`, norm)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("product: " + name)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// FindByID retrieves a product by its ULID.
func (s *Store) FindByID(ctx context.Context, id string) (*product.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("product: " + id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// FindByPrefix retrieves up to limit products whose name starts with prefix,
// case-insensitively, ordered by name ascending.
func (s *Store) FindByPrefix(ctx context.Context, prefix string, limit int) ([]product.Product, error) {
	norm := product.NormalizeKey(prefix)
	if norm == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 15
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE name_norm LIKE ? ESCAPE '\'
		 ORDER BY name ASC
		 LIMIT ?`,
		escapeLike(norm)+"%", limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var products []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return products, nil
}

// InsertIfAbsent inserts the product unless a case-insensitive name match
// already exists, and returns the id of whichever row ends up owning the
// name. Losing an insert race degrades to reading the winner's row.
func (s *Store) InsertIfAbsent(ctx context.Context, p product.Product) (string, error) {
	norm := product.NormalizeKey(p.Name)
	if norm == "" {
		return "", errors.NewInvalidRequest("product name must not be empty")
	}

	// Fast path: name already taken
	if id, err := s.idByNorm(ctx, norm); err == nil {
		return id, nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return "", err
	}

	id, err := product.NewID()
	if err != nil {
		return "", errors.NewInternal(err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, name_norm, calories, protein, fat, carbs, brand, barcode, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Name, norm, p.Calories, p.Protein, p.Fat, p.Carbs,
		toNullString(p.Brand), toNullString(p.Barcode), time.Now().UnixMilli())
	if err != nil {
		if db.IsUniqueConstraintErr(err) {
			// Lost the race: the winner's row is the product now
			return s.idByNorm(ctx, norm)
		}
		return "", errors.NewInternal(err)
	}

	return id, nil
}

// idByNorm looks up a product id by normalized name.
func (s *Store) idByNorm(ctx context.Context, norm string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM products WHERE name_norm = ?`, norm).Scan(&id)
	if err == sql.ErrNoRows {
		return "", errors.NewNotFound("product: " + norm)
	}
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Calories, &p.Protein, &p.Fat, &p.Carbs, &p.Brand, &p.Barcode)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// escapeLike escapes LIKE metacharacters so a prefix containing % or _
// matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
