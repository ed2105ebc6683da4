// Package protocol implements the production protocol forms: one record of a
// production run with its kind-specific process fields, the additives used
// (scaled from the product's recipe) and the lots produced.
//
// Field layouts come from an embedded CUE document, see schemas.cue.
// Persistence goes through a Repository, normally *store.Store.
package protocol

import (
	"fmt"
	"strings"

	"github.com/ansel1/merry"

	"github.com/roach88/serownia/internal/dosage"
	"github.com/roach88/serownia/internal/store"
)

// DateLayout is the storage format of production dates.
const DateLayout = "2006-01-02"

// ErrValidation marks a form that cannot be saved. The wrapped error carries
// a Polish user message.
var ErrValidation = merry.New("validation failed")

// ErrNoProtocol is returned for products whose category has no protocol.
var ErrNoProtocol = merry.New("product kind has no protocol").
	WithUserMessage("Ten produkt nie ma protokołu produkcji.")

// IsValidation reports whether err is, or wraps, ErrValidation.
func IsValidation(err error) bool { return merry.Is(err, ErrValidation) }

// AdditiveLine is one row of the additives section. Rate is the recipe
// dosage per 100 units of raw material; lines without a rate keep the dose
// they were given.
type AdditiveLine struct {
	Category string `json:"category" yaml:"category"`
	Name     string `json:"name" yaml:"name"`
	Dose     string `json:"dose" yaml:"dose"`
	Rate     string `json:"rate,omitempty" yaml:"rate,omitempty"`
}

// BatchLine is one row of the lot ledger.
type BatchLine struct {
	Lot     string `json:"lot" yaml:"lot"`
	Weight  string `json:"weight" yaml:"weight"`
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Protocol is the editable form of one production run. ID 0 means the
// record has not been saved yet.
type Protocol struct {
	ID        int64             `json:"id" yaml:"id"`
	Kind      Kind              `json:"kind" yaml:"kind"`
	Date      string            `json:"date" yaml:"date"`
	Series    string            `json:"series" yaml:"series"`
	ProductID int64             `json:"product_id" yaml:"product_id"`
	Product   string            `json:"product" yaml:"product"`
	Fields    map[string]string `json:"fields" yaml:"fields"`
	Additives []AdditiveLine    `json:"additives" yaml:"additives"`
	Batches   []BatchLine       `json:"batches" yaml:"batches"`
}

// IsNew reports whether the protocol has no record yet.
func (p *Protocol) IsNew() bool { return p.ID == 0 }

// FormatSeries builds a series number: three-digit sequence, two-digit
// month, underscore, year. FormatSeries(7, 3, 2024) is "00703_2024".
func FormatSeries(seq, month, year int) string {
	return fmt.Sprintf("%03d%02d_%d", seq, month, year)
}

// Limits caps the number of lines per section.
type Limits struct {
	MaxAdditiveLines int
	MaxBatchLines    int
}

// DefaultLimits matches the paper protocol form.
var DefaultLimits = Limits{MaxAdditiveLines: 10, MaxBatchLines: 15}

func invalid(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return merry.Prepend(ErrValidation, msg).WithUserMessage(msg)
}

// Validate checks a form against its schema before anything is written.
// Date and series must be non-empty and the volume numeric; choice fields
// must hold one of their options. Other stage fields and lot weights are
// free text. Every failure wraps ErrValidation with a user message.
func Validate(p *Protocol, sc *Schema, limits Limits) error {
	if strings.TrimSpace(p.Date) == "" {
		return invalid("Podaj datę produkcji.")
	}
	if strings.TrimSpace(p.Series) == "" {
		return invalid("Podaj numer serii.")
	}
	if p.ProductID == 0 {
		return invalid("Wybierz produkt.")
	}

	for key := range p.Fields {
		if _, ok := sc.Field(key); !ok {
			return invalid("Nieznane pole %q.", key)
		}
	}

	vol := sc.VolumeField()
	if _, err := dosage.ParseVolume(p.Fields[vol.Key]); err != nil {
		return merry.Prepend(ErrValidation, err.Error()).WithUserMessage(merry.UserMessage(err))
	}

	for _, f := range sc.Fields {
		v := strings.TrimSpace(p.Fields[f.Key])
		if v == "" || f.Input != InputChoice {
			continue
		}
		if !f.allows(v) {
			return invalid("Pole %q: niedozwolona wartość %q.", f.Title(), v)
		}
	}

	if limits.MaxAdditiveLines > 0 && len(p.Additives) > limits.MaxAdditiveLines {
		return invalid("Za dużo dodatków (maks. %d).", limits.MaxAdditiveLines)
	}
	if limits.MaxBatchLines > 0 && len(p.Batches) > limits.MaxBatchLines {
		return invalid("Za dużo partii (maks. %d).", limits.MaxBatchLines)
	}
	return nil
}

// Recalculate rescales every additive that has a recipe rate to the volume
// field. An empty or non-numeric volume clears those doses, as does a rate
// that is not positive. Lines without a rate are left alone.
func Recalculate(p *Protocol, sc *Schema) {
	volume, err := dosage.ParseVolume(p.Fields[sc.VolumeField().Key])
	for i := range p.Additives {
		line := &p.Additives[i]
		if strings.TrimSpace(line.Rate) == "" {
			continue
		}
		if err != nil {
			line.Dose = ""
			continue
		}
		dose, ok := dosage.ScaleText(line.Rate, volume)
		if !ok {
			dose = ""
		}
		line.Dose = dose
	}
}

func (p *Protocol) toWrite(sc *Schema) store.ProtocolWrite {
	detail := make(map[string]string, len(sc.Fields))
	for _, f := range sc.Fields {
		detail[f.Key] = strings.TrimSpace(p.Fields[f.Key])
	}
	w := store.ProtocolWrite{
		ID:          p.ID,
		Date:        strings.TrimSpace(p.Date),
		Series:      strings.TrimSpace(p.Series),
		ProductID:   p.ProductID,
		DetailTable: sc.Table,
		Detail:      detail,
	}
	for _, a := range p.Additives {
		w.Additives = append(w.Additives, store.AdditiveSnapshot{Category: a.Category, Name: a.Name, Dose: a.Dose})
	}
	for _, b := range p.Batches {
		w.Batches = append(w.Batches, store.Batch{Lot: b.Lot, Weight: b.Weight, Comment: b.Comment})
	}
	return w
}
