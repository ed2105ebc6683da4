package store

import (
	"database/sql"

	"github.com/ansel1/merry"
)

// expectOneRow fails with ErrNotFound unless exactly one row changed.
func expectOneRow(r sql.Result, op string) error {
	n, err := r.RowsAffected()
	if err != nil {
		return merry.Prepend(err, op)
	}
	if n == 0 {
		return merry.Prepend(ErrNotFound, op)
	}
	if n != 1 {
		return merry.Errorf("%s: expected one changed row, got %d", op, n)
	}
	return nil
}

func insertedID(r sql.Result, op string) (int64, error) {
	id, err := r.LastInsertId()
	if err != nil {
		return 0, merry.Prepend(err, op)
	}
	if id <= 0 {
		return 0, merry.Errorf("%s: was not inserted", op)
	}
	return id, nil
}

// nullID maps the zero id to SQL NULL for optional foreign keys.
func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
