package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ansel1/merry"
)

// RegisterKind selects the additives or packaging receipt ledger.
type RegisterKind int

const (
	RegisterAdditives RegisterKind = iota + 1
	RegisterPackaging
)

func (k RegisterKind) String() string {
	switch k {
	case RegisterAdditives:
		return "additives"
	case RegisterPackaging:
		return "packaging"
	}
	return fmt.Sprintf("RegisterKind(%d)", int(k))
}

// table, item key column, item table
func (k RegisterKind) tables() (string, string, string) {
	switch k {
	case RegisterAdditives:
		return "additives_register", "additive_id", "additives"
	case RegisterPackaging:
		return "packaging_register", "packaging_id", "packaging"
	}
	panic(fmt.Sprintf("store: invalid register kind %d", int(k)))
}

// ParseRegisterKind accepts "additives" or "packaging".
func ParseRegisterKind(s string) (RegisterKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "additives", "additive":
		return RegisterAdditives, nil
	case "packaging":
		return RegisterPackaging, nil
	}
	return 0, merry.Errorf("unknown register %q", s).
		WithUserMessage("Rejestr: additives lub packaging.")
}

// RegisterEntry is one stock receipt. Quantity is stored as entered.
type RegisterEntry struct {
	ID       int64  `db:"id" json:"id"`
	Date     string `db:"date" json:"date"`
	Quantity string `db:"quantity" json:"quantity"`
	ItemID   int64  `db:"item_id" json:"item_id"`
	ItemName string `db:"item_name" json:"item_name"`
}

// ListRegister returns the ledger ordered by id, with item names. Entries
// whose item was removed keep an empty name.
func (s *Store) ListRegister(ctx context.Context, kind RegisterKind) ([]RegisterEntry, error) {
	table, key, items := kind.tables()
	out := []RegisterEntry{}
	err := s.db.SelectContext(ctx, &out, fmt.Sprintf(`
		SELECT r.id, COALESCE(r.date, '') AS date, COALESCE(r.quantity, '') AS quantity,
		       COALESCE(r.%[2]s, 0) AS item_id, COALESCE(i.name, '') AS item_name
		FROM %[1]s r
		LEFT JOIN %[3]s i ON r.%[2]s = i.id
		ORDER BY r.id`, table, key, items))
	if err != nil {
		return nil, classify(err, "list "+kind.String()+" register")
	}
	return out, nil
}

// AddRegisterEntry appends a receipt and returns its id.
func (s *Store) AddRegisterEntry(ctx context.Context, kind RegisterKind, date, quantity string, itemID int64) (int64, error) {
	table, key, _ := kind.tables()
	op := "add " + kind.String() + " register entry"
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (date, quantity, %s) VALUES (?, ?, ?)", table, key),
		date, quantity, nullID(itemID))
	if err != nil {
		return 0, classify(err, op)
	}
	return insertedID(res, op)
}

// UpdateRegisterEntry overwrites one receipt.
func (s *Store) UpdateRegisterEntry(ctx context.Context, kind RegisterKind, id int64, date, quantity string, itemID int64) error {
	table, key, _ := kind.tables()
	op := "update " + kind.String() + " register entry"
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET date = ?, quantity = ?, %s = ? WHERE id = ?", table, key),
		date, quantity, nullID(itemID), id)
	if err != nil {
		return classify(err, op)
	}
	return expectOneRow(res, op)
}

// DeleteRegisterEntry removes one receipt.
func (s *Store) DeleteRegisterEntry(ctx context.Context, kind RegisterKind, id int64) error {
	table, _, _ := kind.tables()
	op := "delete " + kind.String() + " register entry"
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return classify(err, op)
	}
	return expectOneRow(res, op)
}
