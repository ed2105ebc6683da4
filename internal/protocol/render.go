package protocol

import (
	"fmt"
	"io"
	"strings"
)

// Render writes a plain-text protocol sheet in schema field order.
// Empty values print as "-".
func Render(w io.Writer, p *Protocol, sc *Schema) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Protokół produkcji: %s (%s)\n", orDash(p.Product), p.Kind)
	if p.IsNew() {
		b.WriteString("ID: (nowy)\n")
	} else {
		fmt.Fprintf(&b, "ID: %d\n", p.ID)
	}
	fmt.Fprintf(&b, "Data: %s\n", orDash(p.Date))
	fmt.Fprintf(&b, "Seria: %s\n", orDash(p.Series))

	b.WriteString("\nParametry:\n")
	for _, f := range sc.Fields {
		fmt.Fprintf(&b, "  %s: %s\n", f.Title(), orDash(p.Fields[f.Key]))
	}

	b.WriteString("\nDodatki:\n")
	if len(p.Additives) == 0 {
		b.WriteString("  (brak)\n")
	}
	for i, a := range p.Additives {
		fmt.Fprintf(&b, "  %d. %s | %s | %s\n", i+1, orDash(a.Category), orDash(a.Name), orDash(a.Dose))
	}

	b.WriteString("\nPartie:\n")
	if len(p.Batches) == 0 {
		b.WriteString("  (brak)\n")
	}
	for i, l := range p.Batches {
		fmt.Fprintf(&b, "  %d. %s | %s | %s\n", i+1, orDash(l.Lot), orDash(l.Weight), orDash(l.Comment))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
