package report

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/roach88/serownia/internal/protocol"
	"github.com/roach88/serownia/internal/store"
)

func seededStore(t *testing.T) (*store.Store, KindFunc) {
	t.Helper()
	schemas, err := protocol.DefaultSchemas()
	require.NoError(t, err)
	s, err := store.Open(store.Options{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		DetailTables: schemas.DetailTables(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	cats, err := s.ListCategories(ctx, store.CategoryProduct)
	require.NoError(t, err)
	// seeded order: Ser, Napoje fermentowane, ...
	gouda, err := s.AddProduct(ctx, "Gouda", cats[0].ID, "", "")
	require.NoError(t, err)
	kefir, err := s.AddProduct(ctx, "Kefir", cats[1].ID, "", "")
	require.NoError(t, err)

	r1, err := s.AddProductionRecord(ctx, "2024-07-03", "00107_2024", gouda)
	require.NoError(t, err)
	require.NoError(t, s.AddAdditiveSnapshot(ctx, r1, "Podpuszczka", "CHY-MAX", "6.0 ml"))
	require.NoError(t, s.AddAdditiveSnapshot(ctx, r1, "Kultury starterowe", "CHN-22", "4.0 g"))
	_, err = s.AddProductionRecord(ctx, "2024-07-04", "00207_2024", kefir)
	require.NoError(t, err)

	salt, err := s.AddAdditive(ctx, "Sól", 0)
	require.NoError(t, err)
	rennet, err := s.AddAdditive(ctx, "CHY-MAX", 0)
	require.NoError(t, err)
	jar, err := s.AddPackaging(ctx, "Słoik 250 ml", "", "", 0)
	require.NoError(t, err)
	for _, e := range []struct {
		kind     store.RegisterKind
		quantity string
		item     int64
	}{
		{store.RegisterAdditives, "25", salt},
		{store.RegisterAdditives, "12,5", salt},
		{store.RegisterAdditives, "dużo", salt},
		{store.RegisterAdditives, "0.5", rennet},
		{store.RegisterPackaging, "100", jar},
	} {
		_, err := s.AddRegisterEntry(ctx, e.kind, "2024-07-01", e.quantity, e.item)
		require.NoError(t, err)
	}

	return s, func(category string) string { return schemas.ResolveKind(category).String() }
}

func TestCollect(t *testing.T) {
	s, kindOf := seededStore(t)

	d, err := Collect(context.Background(), s, kindOf, "")
	require.NoError(t, err)

	require.Len(t, d.Protocols, 2)
	assert.Equal(t, "cheese", d.Protocols[0].Kind)
	assert.Equal(t, "fermented", d.Protocols[1].Kind)
	assert.Equal(t, "Gouda", d.Protocols[0].ProductName)

	require.Len(t, d.Additives, 2)
	assert.Equal(t, "00107_2024", d.Additives[0].Series)
	assert.Equal(t, "CHY-MAX", d.Additives[0].Name)

	assert.Len(t, d.AdditivesRegister, 4)
	assert.Len(t, d.PackagingRegister, 1)

	require.Len(t, d.Totals, 3)
	assert.Equal(t, "CHY-MAX", d.Totals[0].ItemName)
	assert.Equal(t, "Sól", d.Totals[1].ItemName)
	assert.True(t, decimal.RequireFromString("37.5").Equal(d.Totals[1].Quantity))
	assert.Equal(t, 3, d.Totals[1].Entries)
	assert.Equal(t, 1, d.Totals[1].Skipped)
	assert.Equal(t, "packaging", d.Totals[2].Register)

	filtered, err := Collect(context.Background(), s, kindOf, "kefir")
	require.NoError(t, err)
	require.Len(t, filtered.Protocols, 1)
	assert.Empty(t, filtered.Additives)
	assert.NotNil(t, filtered.Additives)
}

func TestTotals_Empty(t *testing.T) {
	totals := Totals(store.RegisterAdditives, nil)
	assert.NotNil(t, totals)
	assert.Empty(t, totals)

	totals = Totals(store.RegisterAdditives, []store.RegisterEntry{{ItemID: 1, ItemName: "Sól", Quantity: ""}})
	require.Len(t, totals, 1)
	assert.True(t, totals[0].Quantity.IsZero())
	assert.Equal(t, 1, totals[0].Skipped, "empty quantities are not summed")
}

func TestWriteXLSX(t *testing.T) {
	s, kindOf := seededStore(t)
	d, err := Collect(context.Background(), s, kindOf, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, d))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{
		SheetProtocols, SheetAdditives, SheetAdditivesRegister, SheetPackagingRegister, SheetTotals,
	}, f.GetSheetList())

	rows, err := f.GetRows(SheetProtocols)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "Data", "Seria", "Produkt", "Rodzaj"}, rows[0])
	assert.Equal(t, []string{"1", "2024-07-03", "00107_2024", "Gouda", "cheese"}, rows[1])

	rows, err = f.GetRows(SheetTotals)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"additives", "Sól", "37.5", "3", "1"}, rows[2])

	rows, err = f.GetRows(SheetPackagingRegister)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Słoik 250 ml", rows[1][3])

	styleID, err := f.GetCellStyle(SheetAdditives, "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	assert.True(t, style.Font.Bold)
}

func TestWriteXLSX_EmptyData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, &Data{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetTotals)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}
