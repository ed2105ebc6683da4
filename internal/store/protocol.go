package store

import (
	"context"
	"strings"

	"github.com/ansel1/merry"
	"github.com/jmoiron/sqlx"
)

// AdditiveSnapshot is an additive actually used in one run, copied by value
// so later catalog edits leave history untouched.
type AdditiveSnapshot struct {
	ID                 int64  `db:"id" json:"-" yaml:"-"`
	ProductionRecordID int64  `db:"production_record_id" json:"-" yaml:"-"`
	Category           string `db:"additive_category" json:"category" yaml:"category"`
	Name               string `db:"additive_name" json:"name" yaml:"name"`
	Dose               string `db:"dose_calculated" json:"dose" yaml:"dose"`
}

// IsBlank reports whether all text fields are empty after trimming.
func (a AdditiveSnapshot) IsBlank() bool {
	return strings.TrimSpace(a.Category) == "" && strings.TrimSpace(a.Name) == "" && strings.TrimSpace(a.Dose) == ""
}

// Batch is one lot line of the batch ledger of a run.
type Batch struct {
	ID                 int64  `db:"id" json:"-" yaml:"-"`
	ProductionRecordID int64  `db:"production_record_id" json:"-" yaml:"-"`
	Lot                string `db:"lot" json:"lot" yaml:"lot"`
	Weight             string `db:"weight" json:"weight" yaml:"weight"`
	Comment            string `db:"comment" json:"comment" yaml:"comment"`
}

// IsBlank reports whether all text fields are empty after trimming.
func (b Batch) IsBlank() bool {
	return strings.TrimSpace(b.Lot) == "" && strings.TrimSpace(b.Weight) == "" && strings.TrimSpace(b.Comment) == ""
}

// ProtocolWrite is everything persisted for one protocol save.
type ProtocolWrite struct {
	ID          int64 // 0 inserts a new record
	Date        string
	Series      string
	ProductID   int64
	DetailTable string
	Detail      map[string]string
	Additives   []AdditiveSnapshot
	Batches     []Batch
}

// SaveProtocol writes a protocol in one transaction and returns the record id.
//
// The record row is inserted (ID == 0) or updated. The detail row in
// DetailTable is updated, or inserted when missing, and rows for the same
// record in every other detail table are removed. Snapshot and batch rows
// are replaced: all existing rows are deleted and each non-blank line is
// inserted. Any failure rolls the whole save back.
func (s *Store) SaveProtocol(ctx context.Context, w ProtocolWrite) (int64, error) {
	dt, err := s.detailTable(w.DetailTable)
	if err != nil {
		return 0, err
	}
	if err := checkDetailKeys(dt, w.Detail); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, merry.Prepend(err, "save protocol: begin transaction")
	}
	defer tx.Rollback() // No-op if committed

	id := w.ID
	if id == 0 {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO production_records (date, series, product_id) VALUES (?, ?, ?)",
			w.Date, w.Series, nullID(w.ProductID))
		if err != nil {
			return 0, classify(err, "save protocol: insert record")
		}
		if id, err = insertedID(res, "save protocol: insert record"); err != nil {
			return 0, err
		}
	} else {
		res, err := tx.ExecContext(ctx,
			"UPDATE production_records SET date = ?, series = ?, product_id = ? WHERE id = ?",
			w.Date, w.Series, nullID(w.ProductID), id)
		if err != nil {
			return 0, classify(err, "save protocol: update record")
		}
		if err := expectOneRow(res, "save protocol: update record"); err != nil {
			return 0, err
		}
	}

	var existing int
	if err := tx.GetContext(ctx, &existing,
		"SELECT COUNT(*) FROM "+dt.Name+" WHERE production_record_id = ?", id); err != nil {
		return 0, classify(err, "save protocol: find detail")
	}
	if existing > 0 {
		err = updateDetail(ctx, tx, dt, id, w.Detail)
	} else {
		err = insertDetail(ctx, tx, dt, id, w.Detail)
	}
	if err != nil {
		return 0, merry.Prepend(err, "save protocol")
	}

	for _, name := range s.order {
		if name == dt.Name {
			continue
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+name+" WHERE production_record_id = ?", id); err != nil {
			return 0, classify(err, "save protocol: clear "+name)
		}
	}

	if err := replaceAdditiveSnapshots(ctx, tx, id, w.Additives); err != nil {
		return 0, merry.Prepend(err, "save protocol")
	}
	if err := replaceBatches(ctx, tx, id, w.Batches); err != nil {
		return 0, merry.Prepend(err, "save protocol")
	}

	if err := tx.Commit(); err != nil {
		return 0, merry.Prepend(err, "save protocol: commit")
	}
	return id, nil
}

func replaceAdditiveSnapshots(ctx context.Context, tx *sqlx.Tx, recordID int64, lines []AdditiveSnapshot) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM ser_production_additives WHERE production_record_id = ?", recordID); err != nil {
		return classify(err, "clear additive snapshots")
	}
	for _, l := range lines {
		if l.IsBlank() {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ser_production_additives
			(production_record_id, additive_category, additive_name, dose_calculated)
			VALUES (?, ?, ?, ?)`,
			recordID, strings.TrimSpace(l.Category), strings.TrimSpace(l.Name), strings.TrimSpace(l.Dose)); err != nil {
			return classify(err, "insert additive snapshot")
		}
	}
	return nil
}

func replaceBatches(ctx context.Context, tx *sqlx.Tx, recordID int64, lines []Batch) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM production_batches WHERE production_record_id = ?", recordID); err != nil {
		return classify(err, "clear batches")
	}
	for _, b := range lines {
		if b.IsBlank() {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO production_batches (production_record_id, lot, weight, comment) VALUES (?, ?, ?, ?)",
			recordID, strings.TrimSpace(b.Lot), strings.TrimSpace(b.Weight), strings.TrimSpace(b.Comment)); err != nil {
			return classify(err, "insert batch")
		}
	}
	return nil
}

// ClearAdditiveSnapshots deletes all snapshot rows of a record.
func (s *Store) ClearAdditiveSnapshots(ctx context.Context, recordID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM ser_production_additives WHERE production_record_id = ?", recordID)
	return classify(err, "clear additive snapshots")
}

// AddAdditiveSnapshot appends one snapshot row.
func (s *Store) AddAdditiveSnapshot(ctx context.Context, recordID int64, category, name, dose string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ser_production_additives
		(production_record_id, additive_category, additive_name, dose_calculated)
		VALUES (?, ?, ?, ?)`, recordID, category, name, dose)
	return classify(err, "add additive snapshot")
}

// ListAdditiveSnapshots returns the snapshot rows of a record in insertion order.
func (s *Store) ListAdditiveSnapshots(ctx context.Context, recordID int64) ([]AdditiveSnapshot, error) {
	out := []AdditiveSnapshot{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, production_record_id,
		       COALESCE(additive_category, '') AS additive_category,
		       COALESCE(additive_name, '') AS additive_name,
		       COALESCE(dose_calculated, '') AS dose_calculated
		FROM ser_production_additives
		WHERE production_record_id = ?
		ORDER BY id`, recordID)
	if err != nil {
		return nil, classify(err, "list additive snapshots")
	}
	return out, nil
}

// ListBatches returns the batch ledger of a record in insertion order.
func (s *Store) ListBatches(ctx context.Context, recordID int64) ([]Batch, error) {
	out := []Batch{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, production_record_id,
		       COALESCE(lot, '') AS lot, COALESCE(weight, '') AS weight, COALESCE(comment, '') AS comment
		FROM production_batches
		WHERE production_record_id = ?
		ORDER BY id`, recordID)
	if err != nil {
		return nil, classify(err, "list batches")
	}
	return out, nil
}

// DeleteProtocol removes a record together with its detail, snapshot and
// batch rows in one transaction. It also purges the children of a record
// that was already deleted. ErrNotFound means nothing referenced id.
func (s *Store) DeleteProtocol(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return merry.Prepend(err, "delete protocol: begin transaction")
	}
	defer tx.Rollback() // No-op if committed

	tables := append(append([]string{}, s.order...), "ser_production_additives", "production_batches")
	var removed int64
	for _, t := range tables {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+t+" WHERE production_record_id = ?", id)
		if err != nil {
			return classify(err, "delete protocol: "+t)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM production_records WHERE id = ?", id)
	if err != nil {
		return classify(err, "delete protocol: record")
	}
	n, _ := res.RowsAffected()
	removed += n

	if removed == 0 {
		return merry.Prependf(ErrNotFound, "delete protocol %d", id)
	}
	if err := tx.Commit(); err != nil {
		return merry.Prepend(err, "delete protocol: commit")
	}
	return nil
}

// Orphan is a child row whose production record no longer exists.
type Orphan struct {
	Table              string `db:"table_name" json:"table"`
	ID                 int64  `db:"id" json:"id"`
	ProductionRecordID int64  `db:"production_record_id" json:"production_record_id"`
}

// ListOrphans returns detail, snapshot and batch rows left behind by
// DeleteProductionRecord, ordered by table then id.
func (s *Store) ListOrphans(ctx context.Context) ([]Orphan, error) {
	tables := append(append([]string{}, s.order...), "ser_production_additives", "production_batches")
	out := []Orphan{}
	for _, t := range tables {
		var rows []Orphan
		err := s.db.SelectContext(ctx, &rows, `
			SELECT ? AS table_name, id, production_record_id
			FROM `+t+`
			WHERE production_record_id NOT IN (SELECT id FROM production_records)
			ORDER BY id`, t)
		if err != nil {
			return nil, classify(err, "list orphans: "+t)
		}
		out = append(out, rows...)
	}
	return out, nil
}
