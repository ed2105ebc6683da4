package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ansel1/merry"
)

// CategoryKind selects one of the three category tables.
type CategoryKind int

const (
	CategoryAdditive CategoryKind = iota + 1
	CategoryProduct
	CategoryPackaging
)

var categoryKindNames = map[CategoryKind]string{
	CategoryAdditive:  "additive",
	CategoryProduct:   "product",
	CategoryPackaging: "packaging",
}

func (k CategoryKind) String() string {
	if n, ok := categoryKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("CategoryKind(%d)", int(k))
}

func (k CategoryKind) table() string {
	switch k {
	case CategoryAdditive:
		return "categories"
	case CategoryProduct:
		return "product_categories"
	case CategoryPackaging:
		return "packaging_categories"
	}
	panic(fmt.Sprintf("store: invalid category kind %d", int(k)))
}

// ParseCategoryKind accepts "additive", "product" or "packaging".
func ParseCategoryKind(s string) (CategoryKind, error) {
	for k, n := range categoryKindNames {
		if n == strings.ToLower(strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return 0, merry.Errorf("unknown category kind %q", s).
		WithUserMessage("Rodzaj kategorii: additive, product lub packaging.")
}

// Category is a named grouping of additives, products or packaging.
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// ListCategories returns the categories of one kind ordered by id.
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListCategories(ctx context.Context, kind CategoryKind) ([]Category, error) {
	out := []Category{}
	if err := s.db.SelectContext(ctx, &out, "SELECT id, name FROM "+kind.table()+" ORDER BY id"); err != nil {
		return nil, classify(err, "list "+kind.String()+" categories")
	}
	return out, nil
}

// AddCategory inserts a category and returns its id. A taken name yields
// ErrDuplicate.
func (s *Store) AddCategory(ctx context.Context, kind CategoryKind, name string) (int64, error) {
	op := "add " + kind.String() + " category"
	res, err := s.db.ExecContext(ctx, "INSERT INTO "+kind.table()+" (name) VALUES (?)", name)
	if err != nil {
		return 0, classify(err, op)
	}
	return insertedID(res, op)
}

// RenameCategory renames a category. A taken name yields ErrDuplicate.
func (s *Store) RenameCategory(ctx context.Context, kind CategoryKind, id int64, name string) error {
	op := "rename " + kind.String() + " category"
	res, err := s.db.ExecContext(ctx, "UPDATE "+kind.table()+" SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return classify(err, op)
	}
	return expectOneRow(res, op)
}

// DeleteCategory deletes a category. A category still referenced by
// catalog rows yields ErrConstraint.
func (s *Store) DeleteCategory(ctx context.Context, kind CategoryKind, id int64) error {
	op := "delete " + kind.String() + " category"
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+kind.table()+" WHERE id = ?", id)
	if err != nil {
		return classify(err, op)
	}
	return expectOneRow(res, op)
}

// CategoryName returns the name of a category or ErrNotFound.
func (s *Store) CategoryName(ctx context.Context, kind CategoryKind, id int64) (string, error) {
	var name string
	if err := s.db.GetContext(ctx, &name, "SELECT name FROM "+kind.table()+" WHERE id = ?", id); err != nil {
		return "", classify(err, "get "+kind.String()+" category")
	}
	return name, nil
}
