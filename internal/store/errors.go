package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/ansel1/merry"
	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// Classified store errors. Check them with merry.Is or the IsX helpers;
// the store only ever wraps them with merry so the chain stays intact.
var (
	ErrNotFound   = merry.New("not found").WithUserMessage("Nie znaleziono rekordu.")
	ErrDuplicate  = merry.New("duplicate").WithUserMessage("Taki wpis już istnieje.")
	ErrConstraint = merry.New("constraint violation").WithUserMessage("Operacja narusza powiązania w bazie danych.")
	// ErrMalformedSeries is returned when a series of the month does not
	// have the generated form.
	ErrMalformedSeries = merry.New("malformed series number")
)

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool { return merry.Is(err, ErrNotFound) }

// IsDuplicate reports whether err is, or wraps, ErrDuplicate.
func IsDuplicate(err error) bool { return merry.Is(err, ErrDuplicate) }

// IsConstraint reports whether err is, or wraps, ErrConstraint.
func IsConstraint(err error) bool { return merry.Is(err, ErrConstraint) }

type violation int

const (
	violationNone violation = iota
	violationUnique
	violationOther
)

// classify maps a driver error onto a store sentinel and prefixes op.
// The raw driver text is kept in the message.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return merry.Prepend(ErrNotFound, op)
	}
	switch constraintKind(err) {
	case violationUnique:
		return merry.Prependf(ErrDuplicate, "%s: %v", op, err)
	case violationOther:
		return merry.Prependf(ErrConstraint, "%s: %v", op, err)
	}
	return merry.Prepend(err, op)
}

func constraintKind(err error) violation {
	var (
		constraint bool
		unique     bool
		me         sqlite3.Error
		ce         *sqlite.Error
	)
	switch {
	case errors.As(err, &me):
		constraint = me.Code == sqlite3.ErrConstraint
		unique = me.ExtendedCode == sqlite3.ErrConstraintUnique || me.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	case errors.As(err, &ce):
		constraint = ce.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT
		unique = ce.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE || ce.Code() == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
	default:
		constraint = strings.Contains(err.Error(), "constraint failed")
	}
	if !constraint {
		return violationNone
	}
	// extended codes are not always enabled; fall back to the message
	if unique || strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return violationUnique
	}
	return violationOther
}
