package store

import (
	"context"
	"path/filepath"
	"testing"
)

// testDetailTables mirrors the shape of the protocol detail tables without
// importing the protocol package.
var testDetailTables = []DetailTable{
	{Name: "ser_production_details", Columns: []string{"milk_amount", "ph", "pasteryzacja", "krojenie_start"}},
	{Name: "fermented_production_details", Columns: []string{"milk_type", "amt", "ph"}},
	{Name: "twarog_production_details", Columns: []string{"milk_type", "milk_amount", "ph"}},
}

func testOptions(path string) Options {
	return Options{Path: path, DetailTables: testDetailTables}
}

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(testOptions(path))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestProduct adds a product in the named seeded product category.
func createTestProduct(t *testing.T, s *Store, name, category string) int64 {
	t.Helper()
	ctx := context.Background()
	cats, err := s.ListCategories(ctx, CategoryProduct)
	if err != nil {
		t.Fatalf("ListCategories() failed: %v", err)
	}
	var catID int64
	for _, c := range cats {
		if c.Name == category {
			catID = c.ID
		}
	}
	if catID == 0 {
		t.Fatalf("product category %q not seeded", category)
	}
	id, err := s.AddProduct(ctx, name, catID, "", "")
	if err != nil {
		t.Fatalf("AddProduct() failed: %v", err)
	}
	return id
}

func countRows(t *testing.T, s *Store, query string, args ...any) int {
	t.Helper()
	var n int
	if err := s.db.Get(&n, query, args...); err != nil {
		t.Fatalf("count %q failed: %v", query, err)
	}
	return n
}
