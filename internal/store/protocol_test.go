package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cheeseWrite(productID int64) ProtocolWrite {
	return ProtocolWrite{
		Date:        "2024-07-10",
		Series:      "00107_2024",
		ProductID:   productID,
		DetailTable: "ser_production_details",
		Detail:      map[string]string{"milk_amount": "200", "ph": "6,6", "pasteryzacja": "Brak"},
		Additives: []AdditiveSnapshot{
			{Category: "Kultury starterowe", Name: "CHN-22", Dose: "4.0 g"},
			{Category: " ", Name: "", Dose: ""},
			{Category: "Podpuszczka", Name: "CHY-MAX", Dose: "6.0 ml"},
		},
		Batches: []Batch{
			{Lot: "A1", Weight: "12,4", Comment: ""},
			{},
		},
	}
}

func TestSaveProtocol_New(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	productID := createTestProduct(t, s, "Gouda", "Ser")

	id, err := s.SaveProtocol(ctx, cheeseWrite(productID))
	require.NoError(t, err)
	require.NotZero(t, id)

	assert.Equal(t, 1, countRows(t, s, "SELECT COUNT(*) FROM production_records"))
	assert.Equal(t, 1, countRows(t, s, "SELECT COUNT(*) FROM ser_production_details WHERE production_record_id = ?", id))
	assert.Equal(t, 0, countRows(t, s, "SELECT COUNT(*) FROM fermented_production_details"))
	assert.Equal(t, 2, countRows(t, s, "SELECT COUNT(*) FROM ser_production_additives WHERE production_record_id = ?", id),
		"one snapshot row per non-blank line")
	assert.Equal(t, 1, countRows(t, s, "SELECT COUNT(*) FROM production_batches WHERE production_record_id = ?", id))

	detail, found, err := s.GetDetail(ctx, "ser_production_details", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "200", detail["milk_amount"])
}

func TestSaveProtocol_UpdateReplacesChildren(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	productID := createTestProduct(t, s, "Gouda", "Ser")

	w := cheeseWrite(productID)
	id, err := s.SaveProtocol(ctx, w)
	require.NoError(t, err)

	w.ID = id
	w.Series = "00207_2024"
	w.Detail["milk_amount"] = "300"
	w.Additives = []AdditiveSnapshot{{Category: "Lizozym", Name: "Lizozym", Dose: "3.0 g"}}
	w.Batches = nil

	got, err := s.SaveProtocol(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	assert.Equal(t, 1, countRows(t, s, "SELECT COUNT(*) FROM production_records"))
	assert.Equal(t, 1, countRows(t, s, "SELECT COUNT(*) FROM ser_production_details"))

	rec, err := s.GetProductionRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "00207_2024", rec.Series)

	snaps, err := s.ListAdditiveSnapshots(ctx, id)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "Lizozym", snaps[0].Name)

	batches, err := s.ListBatches(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, batches)

	detail, _, err := s.GetDetail(ctx, "ser_production_details", id)
	require.NoError(t, err)
	assert.Equal(t, "300", detail["milk_amount"])
}

func TestSaveProtocol_KindChangeMovesDetail(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	gouda := createTestProduct(t, s, "Gouda", "Ser")
	kefir := createTestProduct(t, s, "Kefir", "Napoje fermentowane")

	id, err := s.SaveProtocol(ctx, cheeseWrite(gouda))
	require.NoError(t, err)

	_, err = s.SaveProtocol(ctx, ProtocolWrite{
		ID:          id,
		Date:        "2024-07-10",
		Series:      "00107_2024",
		ProductID:   kefir,
		DetailTable: "fermented_production_details",
		Detail:      map[string]string{"milk_type": "Kozie", "amt": "50"},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, countRows(t, s, "SELECT COUNT(*) FROM ser_production_details"))
	assert.Equal(t, 1, countRows(t, s, "SELECT COUNT(*) FROM fermented_production_details WHERE production_record_id = ?", id))
}

func TestSaveProtocol_RollsBackOnFailure(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// product 999 does not exist: the record insert violates its foreign key
	w := cheeseWrite(999)
	_, err := s.SaveProtocol(ctx, w)
	require.Error(t, err)
	assert.True(t, IsConstraint(err))
	assert.Equal(t, 0, countRows(t, s, "SELECT COUNT(*) FROM production_records"))

	// an unknown detail column fails before anything is written
	productID := createTestProduct(t, s, "Gouda", "Ser")
	w = cheeseWrite(productID)
	w.Detail["temperatura"] = "32"
	_, err = s.SaveProtocol(ctx, w)
	require.Error(t, err)
	assert.Equal(t, 0, countRows(t, s, "SELECT COUNT(*) FROM production_records"))
	assert.Equal(t, 0, countRows(t, s, "SELECT COUNT(*) FROM ser_production_additives"))
}

func TestSaveProtocol_UpdateMissingRecord(t *testing.T) {
	s := createTestStore(t)
	productID := createTestProduct(t, s, "Gouda", "Ser")

	w := cheeseWrite(productID)
	w.ID = 77
	_, err := s.SaveProtocol(context.Background(), w)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 0, countRows(t, s, "SELECT COUNT(*) FROM ser_production_additives"))
}

func TestDeleteProductionRecord_LeavesOrphans(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	productID := createTestProduct(t, s, "Gouda", "Ser")

	id, err := s.SaveProtocol(ctx, cheeseWrite(productID))
	require.NoError(t, err)

	require.NoError(t, s.DeleteProductionRecord(ctx, id))

	assert.Equal(t, 0, countRows(t, s, "SELECT COUNT(*) FROM production_records"))
	assert.Equal(t, 1, countRows(t, s, "SELECT COUNT(*) FROM ser_production_details WHERE production_record_id = ?", id))
	assert.Equal(t, 2, countRows(t, s, "SELECT COUNT(*) FROM ser_production_additives WHERE production_record_id = ?", id))

	orphans, err := s.ListOrphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 4)
	assert.Equal(t, "ser_production_details", orphans[0].Table)
	assert.Equal(t, "ser_production_additives", orphans[1].Table)
	assert.Equal(t, "production_batches", orphans[3].Table)
	for _, o := range orphans {
		assert.Equal(t, id, o.ProductionRecordID)
	}

	// purging the deleted id removes the orphans
	require.NoError(t, s.DeleteProtocol(ctx, id))
	orphans, err = s.ListOrphans(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestDeleteProtocol_Cascades(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	productID := createTestProduct(t, s, "Gouda", "Ser")

	keep, err := s.SaveProtocol(ctx, cheeseWrite(productID))
	require.NoError(t, err)
	w := cheeseWrite(productID)
	w.Series = "00207_2024"
	id, err := s.SaveProtocol(ctx, w)
	require.NoError(t, err)

	require.NoError(t, s.DeleteProtocol(ctx, id))

	assert.Equal(t, 1, countRows(t, s, "SELECT COUNT(*) FROM production_records"))
	assert.Equal(t, 0, countRows(t, s, "SELECT COUNT(*) FROM ser_production_additives WHERE production_record_id = ?", id))
	assert.Equal(t, 2, countRows(t, s, "SELECT COUNT(*) FROM ser_production_additives WHERE production_record_id = ?", keep))

	err = s.DeleteProtocol(ctx, id)
	assert.True(t, IsNotFound(err))
}
