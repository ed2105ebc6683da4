package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ansel1/merry"

	"github.com/roach88/serownia/internal/fold"
)

// ProductionRecord is the root row of one protocol.
type ProductionRecord struct {
	ID          int64  `db:"id" json:"id"`
	Date        string `db:"date" json:"date"`
	Series      string `db:"series" json:"series"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
}

const productionSelect = `
	SELECT pr.id, pr.date, pr.series, COALESCE(pr.product_id, 0) AS product_id,
	       COALESCE(p.name, '') AS product_name
	FROM production_records pr
	LEFT JOIN products p ON pr.product_id = p.id`

// AddProductionRecord inserts a record and returns its id.
func (s *Store) AddProductionRecord(ctx context.Context, date, series string, productID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO production_records (date, series, product_id) VALUES (?, ?, ?)",
		date, series, nullID(productID))
	if err != nil {
		return 0, classify(err, "add production record")
	}
	return insertedID(res, "add production record")
}

// GetProductionRecord returns one record with its product name, or ErrNotFound.
func (s *Store) GetProductionRecord(ctx context.Context, id int64) (ProductionRecord, error) {
	var r ProductionRecord
	if err := s.db.GetContext(ctx, &r, productionSelect+" WHERE pr.id = ?", id); err != nil {
		return ProductionRecord{}, classify(err, "get production record")
	}
	return r, nil
}

// UpdateProductionRecord overwrites date, series and product of a record.
func (s *Store) UpdateProductionRecord(ctx context.Context, id int64, date, series string, productID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE production_records SET date = ?, series = ?, product_id = ? WHERE id = ?",
		date, series, nullID(productID), id)
	if err != nil {
		return classify(err, "update production record")
	}
	return expectOneRow(res, "update production record")
}

// DeleteProductionRecord removes the record row only. Detail, snapshot and
// batch rows keep pointing at the removed id; see ListOrphans and
// DeleteProtocol.
func (s *Store) DeleteProductionRecord(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM production_records WHERE id = ?", id)
	if err != nil {
		return classify(err, "delete production record")
	}
	return expectOneRow(res, "delete production record")
}

// ListProductionRecords returns records ordered by id. A non-empty filter
// keeps records whose series or product name contains it, ignoring case.
func (s *Store) ListProductionRecords(ctx context.Context, filter string) ([]ProductionRecord, error) {
	all := []ProductionRecord{}
	if err := s.db.SelectContext(ctx, &all, productionSelect+" ORDER BY pr.id"); err != nil {
		return nil, classify(err, "list production records")
	}
	if fold.Key(filter) == "" {
		return all, nil
	}
	out := make([]ProductionRecord, 0, len(all))
	for _, r := range all {
		if fold.Contains(r.Series, filter) || fold.Contains(r.ProductName, filter) {
			out = append(out, r)
		}
	}
	return out, nil
}

// CountProductionForMonth counts records dated in the given month.
func (s *Store) CountProductionForMonth(ctx context.Context, month, year int) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM production_records
		WHERE strftime('%m', date) = ? AND strftime('%Y', date) = ?`,
		fmt.Sprintf("%02d", month), strconv.Itoa(year))
	if err != nil {
		return 0, classify(err, "count production records")
	}
	return n, nil
}

// NextSeriesNumber returns the next series ordinal for a month: the greatest
// sequence among the series dated in that month, plus one, or 1 when the
// month has no records.
//
// A series is a sequence of at least three digits, a two-digit month, an
// underscore and the year. Sequences are compared as numbers, so "100007_2024"
// follows "99907_2024". Any series of the month that does not have this form
// yields ErrMalformedSeries.
func (s *Store) NextSeriesNumber(ctx context.Context, month, year int) (int, error) {
	var series []string
	err := s.db.SelectContext(ctx, &series, `
		SELECT series FROM production_records
		WHERE strftime('%m', date) = ? AND strftime('%Y', date) = ?`,
		fmt.Sprintf("%02d", month), strconv.Itoa(year))
	if err != nil {
		return 0, classify(err, "next series number")
	}
	next := 1
	for _, sr := range series {
		n, ok := seriesSequence(sr)
		if !ok {
			return 0, merry.Prependf(ErrMalformedSeries, "next series number: %q", sr)
		}
		if n >= next {
			next = n + 1
		}
	}
	return next, nil
}

// seriesSequence extracts the leading sequence of a series number.
func seriesSequence(series string) (int, bool) {
	head, _, ok := strings.Cut(series, "_")
	if !ok || len(head) < 5 {
		return 0, false
	}
	seq := head[:len(head)-2]
	for _, r := range head {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(seq)
	if err != nil {
		return 0, false
	}
	return n, true
}
