package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ansel1/merry"
	"github.com/jmoiron/sqlx"
)

// Detail rows are keyed by production_record_id. All functions take the
// table name of a registered DetailTable; values map column to text.

// InsertDetail inserts the detail row of a record. Columns absent from
// values are written as empty strings.
func (s *Store) InsertDetail(ctx context.Context, table string, recordID int64, values map[string]string) error {
	dt, err := s.detailTable(table)
	if err != nil {
		return err
	}
	return insertDetail(ctx, s.db, dt, recordID, values)
}

// UpdateDetail overwrites the detail row of a record, or returns
// ErrNotFound when the record has none in this table.
func (s *Store) UpdateDetail(ctx context.Context, table string, recordID int64, values map[string]string) error {
	dt, err := s.detailTable(table)
	if err != nil {
		return err
	}
	return updateDetail(ctx, s.db, dt, recordID, values)
}

// GetDetail returns the detail row of a record. found is false, with an
// empty map, when the record has no row in this table.
func (s *Store) GetDetail(ctx context.Context, table string, recordID int64) (values map[string]string, found bool, err error) {
	dt, err := s.detailTable(table)
	if err != nil {
		return nil, false, err
	}

	exprs := make([]string, len(dt.Columns))
	for i, c := range dt.Columns {
		exprs[i] = fmt.Sprintf("COALESCE(%s, '')", c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE production_record_id = ? ORDER BY id LIMIT 1",
		strings.Join(exprs, ", "), dt.Name)

	dest := make([]string, len(dt.Columns))
	ptrs := make([]any, len(dest))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := s.db.QueryRowxContext(ctx, query, recordID).Scan(ptrs...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return map[string]string{}, false, nil
		}
		return nil, false, classify(err, "get "+dt.Name)
	}

	values = make(map[string]string, len(dt.Columns))
	for i, c := range dt.Columns {
		values[c] = dest[i]
	}
	return values, true, nil
}

// DeleteDetail removes the detail rows of a record from one table.
// Deleting nothing is not an error.
func (s *Store) DeleteDetail(ctx context.Context, table string, recordID int64) error {
	dt, err := s.detailTable(table)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM "+dt.Name+" WHERE production_record_id = ?", recordID)
	return classify(err, "delete "+dt.Name)
}

func checkDetailKeys(dt DetailTable, values map[string]string) error {
	known := make(map[string]bool, len(dt.Columns))
	for _, c := range dt.Columns {
		known[c] = true
	}
	var unknown []string
	for k := range values {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return merry.Errorf("%s has no columns %s", dt.Name, strings.Join(unknown, ", "))
	}
	return nil
}

func insertDetail(ctx context.Context, ex sqlx.ExecerContext, dt DetailTable, recordID int64, values map[string]string) error {
	if err := checkDetailKeys(dt, values); err != nil {
		return err
	}
	cols := append([]string{"production_record_id"}, dt.Columns...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	args := make([]any, 0, len(cols))
	args = append(args, recordID)
	for _, c := range dt.Columns {
		args = append(args, values[c])
	}
	_, err := ex.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", dt.Name, strings.Join(cols, ", "), marks),
		args...)
	return classify(err, "insert "+dt.Name)
}

func updateDetail(ctx context.Context, ex sqlx.ExecerContext, dt DetailTable, recordID int64, values map[string]string) error {
	if err := checkDetailKeys(dt, values); err != nil {
		return err
	}
	sets := make([]string, len(dt.Columns))
	args := make([]any, 0, len(dt.Columns)+1)
	for i, c := range dt.Columns {
		sets[i] = c + " = ?"
		args = append(args, values[c])
	}
	args = append(args, recordID)
	res, err := ex.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE production_record_id = ?", dt.Name, strings.Join(sets, ", ")),
		args...)
	if err != nil {
		return classify(err, "update "+dt.Name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return merry.Prepend(err, "update "+dt.Name)
	}
	if n == 0 {
		return merry.Prepend(ErrNotFound, "update "+dt.Name)
	}
	return nil
}
