package protocol

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roach88/serownia/internal/store"
	"github.com/roach88/serownia/internal/testutil"
)

func testSchemas(t *testing.T) *Schemas {
	t.Helper()
	schemas, err := DefaultSchemas()
	require.NoError(t, err)
	return schemas
}

func openTestStore(t *testing.T, schemas *Schemas) *store.Store {
	t.Helper()
	s, err := store.Open(store.Options{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		DetailTables: schemas.DetailTables(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestService returns a service dated 2024-07-10 over a fresh store.
func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *store.Store) {
	t.Helper()
	schemas := testSchemas(t)
	s := openTestStore(t, schemas)
	opts = append([]ServiceOption{
		WithClock(testutil.Date(2024, time.July, 10).Now),
		WithIDGenerator(NewFixedGenerator("save-1", "save-2", "save-3")),
	}, opts...)
	return NewService(s, schemas, zap.NewNop(), opts...), s
}

func addProduct(t *testing.T, s *store.Store, name, category string) int64 {
	t.Helper()
	ctx := context.Background()
	cats, err := s.ListCategories(ctx, store.CategoryProduct)
	require.NoError(t, err)
	for _, c := range cats {
		if c.Name == category {
			id, err := s.AddProduct(ctx, name, c.ID, "", "")
			require.NoError(t, err)
			return id
		}
	}
	t.Fatalf("product category %q not seeded", category)
	return 0
}

// addRecipeLine adds an additive in the named seeded additive category and
// links it to the product with the given rate.
func addRecipeLine(t *testing.T, s *store.Store, productID int64, additive, category, rate string) {
	t.Helper()
	ctx := context.Background()
	cats, err := s.ListCategories(ctx, store.CategoryAdditive)
	require.NoError(t, err)
	var catID int64
	for _, c := range cats {
		if c.Name == category {
			catID = c.ID
		}
	}
	require.NotZero(t, catID, "additive category %q not seeded", category)
	additiveID, err := s.AddAdditive(ctx, additive, catID)
	require.NoError(t, err)
	_, err = s.AddProductAdditive(ctx, productID, additiveID, rate)
	require.NoError(t, err)
}

// goudaWithRecipe creates a cheese product with two recipe lines.
func goudaWithRecipe(t *testing.T, s *store.Store) int64 {
	t.Helper()
	id := addProduct(t, s, "Gouda", "Ser")
	addRecipeLine(t, s, id, "CHN-22", "Kultury starterowe", "2 g")
	addRecipeLine(t, s, id, "CHY-MAX", "Podpuszczka", "3 ml")
	return id
}
