// Package dosage parses recipe quantities such as "30 g" or "2,5 ml" and
// scales them to the raw-material volume of one production run.
//
// Recipe quantities are rates per 100 units of raw material. A scaled dose is
// only ever persisted as its formatted string.
package dosage

import (
	"fmt"
	"strings"

	"github.com/ansel1/merry"
	"github.com/shopspring/decimal"
)

// BaseVolume is the raw-material volume a recipe rate refers to.
var BaseVolume = decimal.NewFromInt(100)

// ErrInvalidNumber is returned for boundary values that must be numeric.
var ErrInvalidNumber = merry.New("invalid number")

// Dose is a parsed quantity: a magnitude and a free-text unit.
type Dose struct {
	Value decimal.Decimal
	Unit  string
}

// IsZero reports whether the dose has no positive magnitude.
func (d Dose) IsZero() bool {
	return !d.Value.IsPositive()
}

// String formats the dose as "<value> <unit>" with one decimal place,
// rounding half away from zero.
// The separating space is written even when the unit is empty.
func (d Dose) String() string {
	return d.Value.StringFixed(1) + " " + d.Unit
}

// Parse splits s on whitespace. The first token is the magnitude, with a
// comma accepted as decimal separator; an unparsable magnitude is zero.
// The second token, if any, is the unit. Further tokens are ignored.
func Parse(s string) Dose {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Dose{Value: decimal.Zero}
	}
	d := Dose{Value: parseMagnitude(fields[0])}
	if len(fields) > 1 {
		d.Unit = fields[1]
	}
	return d
}

func parseMagnitude(tok string) decimal.Decimal {
	v, err := decimal.NewFromString(strings.ReplaceAll(tok, ",", "."))
	if err != nil {
		return decimal.Zero
	}
	return v
}

// Scale multiplies the rate by volume/100 and formats the result.
// ok is false when the rate is not positive; the caller clears the dose.
func Scale(rate Dose, volume decimal.Decimal) (dose string, ok bool) {
	if rate.IsZero() {
		return "", false
	}
	scaled := Dose{
		Value: rate.Value.Mul(volume).Div(BaseVolume),
		Unit:  rate.Unit,
	}
	return scaled.String(), true
}

// ScaleText parses rate and scales it. Convenience for callers that hold
// the recipe string only.
func ScaleText(rate string, volume decimal.Decimal) (string, bool) {
	return Scale(Parse(rate), volume)
}

// ParseVolume validates a raw-material volume. Surrounding whitespace is
// ignored and a comma is accepted as decimal separator.
func ParseVolume(s string) (decimal.Decimal, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return decimal.Zero, merry.Prepend(ErrInvalidNumber, "volume is empty").
			WithUserMessage("Podaj ilość surowca.")
	}
	v, err := decimal.NewFromString(strings.ReplaceAll(t, ",", "."))
	if err != nil {
		return decimal.Zero, merry.Prependf(ErrInvalidNumber, "volume %q", s).
			WithUserMessage("Ilość surowca musi być liczbą.")
	}
	return v, nil
}

// ParseQuantity validates a numeric catalog or register field (price,
// stock, quantity). An empty value is allowed and yields ok=false.
func ParseQuantity(field, s string) (v decimal.Decimal, ok bool, err error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return decimal.Zero, false, nil
	}
	v, err = decimal.NewFromString(strings.ReplaceAll(t, ",", "."))
	if err != nil {
		return decimal.Zero, false, merry.Prependf(ErrInvalidNumber, "%s %q", field, s).
			WithUserMessage(fmt.Sprintf("Pole %q musi być liczbą.", field))
	}
	return v, true, nil
}
