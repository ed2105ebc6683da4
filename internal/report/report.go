// Package report builds the production and warehouse summaries: protocol
// listings, the additives actually used, both receipt registers and
// received totals per item, exported as an XLSX workbook.
package report

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/roach88/serownia/internal/dosage"
	"github.com/roach88/serownia/internal/store"
)

// Source is the data a report reads. *store.Store implements it.
type Source interface {
	ListProducts(ctx context.Context) ([]store.Product, error)
	ListProductionRecords(ctx context.Context, filter string) ([]store.ProductionRecord, error)
	ListAdditiveSnapshots(ctx context.Context, recordID int64) ([]store.AdditiveSnapshot, error)
	ListRegister(ctx context.Context, kind store.RegisterKind) ([]store.RegisterEntry, error)
}

var _ Source = (*store.Store)(nil)

// ProtocolRow is one production record with its protocol kind.
type ProtocolRow struct {
	store.ProductionRecord
	Kind string `json:"kind"`
}

// AdditiveRow is one additive line used in a production run.
type AdditiveRow struct {
	RecordID int64  `json:"record_id"`
	Date     string `json:"date"`
	Series   string `json:"series"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Dose     string `json:"dose"`
}

// Total is the received quantity of one register item. Entries whose
// quantity is not a number are counted in Skipped and left out of Quantity.
type Total struct {
	Register string          `json:"register"`
	ItemID   int64           `json:"item_id"`
	ItemName string          `json:"item_name"`
	Quantity decimal.Decimal `json:"quantity"`
	Entries  int             `json:"entries"`
	Skipped  int             `json:"skipped"`
}

// Data is everything one report shows.
type Data struct {
	Protocols         []ProtocolRow         `json:"protocols"`
	Additives         []AdditiveRow         `json:"additives"`
	AdditivesRegister []store.RegisterEntry `json:"additives_register"`
	PackagingRegister []store.RegisterEntry `json:"packaging_register"`
	Totals            []Total               `json:"totals"`
}

// KindFunc names the protocol kind of a product category.
type KindFunc func(category string) string

// Collect reads the report data. filter narrows the protocols the same way
// the production list does.
func Collect(ctx context.Context, src Source, kindOf KindFunc, filter string) (*Data, error) {
	products, err := src.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	categories := make(map[int64]string, len(products))
	for _, p := range products {
		categories[p.ID] = p.CategoryName
	}

	records, err := src.ListProductionRecords(ctx, filter)
	if err != nil {
		return nil, err
	}

	d := &Data{
		Protocols: make([]ProtocolRow, 0, len(records)),
		Additives: []AdditiveRow{},
	}
	for _, r := range records {
		kind := ""
		if kindOf != nil {
			kind = kindOf(categories[r.ProductID])
		}
		d.Protocols = append(d.Protocols, ProtocolRow{ProductionRecord: r, Kind: kind})

		snaps, err := src.ListAdditiveSnapshots(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range snaps {
			d.Additives = append(d.Additives, AdditiveRow{
				RecordID: r.ID,
				Date:     r.Date,
				Series:   r.Series,
				Category: a.Category,
				Name:     a.Name,
				Dose:     a.Dose,
			})
		}
	}

	if d.AdditivesRegister, err = src.ListRegister(ctx, store.RegisterAdditives); err != nil {
		return nil, err
	}
	if d.PackagingRegister, err = src.ListRegister(ctx, store.RegisterPackaging); err != nil {
		return nil, err
	}
	d.Totals = append(Totals(store.RegisterAdditives, d.AdditivesRegister),
		Totals(store.RegisterPackaging, d.PackagingRegister)...)
	return d, nil
}

// Totals sums register quantities per item, ordered by item name.
func Totals(kind store.RegisterKind, entries []store.RegisterEntry) []Total {
	byItem := make(map[int64]*Total)
	for _, e := range entries {
		t, ok := byItem[e.ItemID]
		if !ok {
			t = &Total{Register: kind.String(), ItemID: e.ItemID, ItemName: e.ItemName, Quantity: decimal.Zero}
			byItem[e.ItemID] = t
		}
		t.Entries++
		q, ok, err := dosage.ParseQuantity("quantity", e.Quantity)
		if err != nil || !ok {
			t.Skipped++
			continue
		}
		t.Quantity = t.Quantity.Add(q)
	}

	out := make([]Total, 0, len(byItem))
	for _, t := range byItem {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemName != out[j].ItemName {
			return out[i].ItemName < out[j].ItemName
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out
}
