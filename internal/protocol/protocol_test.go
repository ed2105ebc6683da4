package protocol

import (
	"testing"

	"github.com/ansel1/merry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSeries(t *testing.T) {
	assert.Equal(t, "00703_2024", FormatSeries(7, 3, 2024))
	assert.Equal(t, "12312_2024", FormatSeries(123, 12, 2024))
	assert.Equal(t, "100001_2025", FormatSeries(1000, 1, 2025), "the sequence widens past 999")
}

func validCheese() *Protocol {
	return &Protocol{
		Kind:      KindCheese,
		Date:      "2024-07-10",
		Series:    "00107_2024",
		ProductID: 1,
		Fields: map[string]string{
			"milk_amount":    "200",
			"ph":             "6,6",
			"pasteryzacja":   "Brak",
			"krojenie_start": "10:15",
		},
		Additives: []AdditiveLine{{Category: "Podpuszczka", Name: "CHY-MAX", Dose: "6.0 ml"}},
		Batches:   []BatchLine{{Lot: "A1", Weight: "12,4"}},
	}
}

func TestValidate(t *testing.T) {
	sc, _ := testSchemas(t).For(KindCheese)

	require.NoError(t, Validate(validCheese(), sc, DefaultLimits))

	tests := []struct {
		name    string
		mutate  func(p *Protocol)
		wantMsg string
	}{
		{"empty date", func(p *Protocol) { p.Date = " " }, "Podaj datę produkcji."},
		{"empty series", func(p *Protocol) { p.Series = "" }, "Podaj numer serii."},
		{"no product", func(p *Protocol) { p.ProductID = 0 }, "Wybierz produkt."},
		{"empty volume", func(p *Protocol) { p.Fields["milk_amount"] = "" }, "Podaj ilość surowca."},
		{"volume not numeric", func(p *Protocol) { p.Fields["milk_amount"] = "dużo" }, "Ilość surowca musi być liczbą."},
		{"choice field", func(p *Protocol) { p.Fields["pasteryzacja"] = "72°C/15s" }, `Pole "Pasteryzacja": niedozwolona wartość "72°C/15s".`},
		{"unknown field", func(p *Protocol) { p.Fields["milk_type"] = "Kozie" }, `Nieznane pole "milk_type".`},
		{"too many additives", func(p *Protocol) {
			p.Additives = make([]AdditiveLine, 11)
		}, "Za dużo dodatków (maks. 10)."},
		{"too many batches", func(p *Protocol) {
			p.Batches = make([]BatchLine, 16)
		}, "Za dużo partii (maks. 15)."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validCheese()
			tt.mutate(p)
			err := Validate(p, sc, DefaultLimits)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Equal(t, tt.wantMsg, merry.UserMessage(err))
		})
	}
}

func TestValidate_StageFieldsAreFreeText(t *testing.T) {
	sc, _ := testSchemas(t).For(KindCheese)

	tests := []struct {
		name   string
		mutate func(p *Protocol)
	}{
		{"time with dot", func(p *Protocol) { p.Fields["dodanie_kultur_start"] = "8.30" }},
		{"time as word", func(p *Protocol) { p.Fields["krojenie_start"] = "rano" }},
		{"ph range", func(p *Protocol) { p.Fields["ph"] = "6,5-6,6" }},
		{"approximate count", func(p *Protocol) { p.Fields["formy_ilosc"] = "ok. 12" }},
		{"date not iso", func(p *Protocol) { p.Date = "10.07.2024" }},
		{"lot weight note", func(p *Protocol) { p.Batches[0].Weight = "ok. 12 kg" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validCheese()
			tt.mutate(p)
			assert.NoError(t, Validate(p, sc, DefaultLimits))
		})
	}
}

func TestValidate_EmptyOptionalFields(t *testing.T) {
	sc, _ := testSchemas(t).For(KindCheese)
	p := validCheese()
	p.Fields = map[string]string{"milk_amount": "120,5"}
	p.Additives = nil
	p.Batches = nil
	assert.NoError(t, Validate(p, sc, DefaultLimits))
}

func TestRecalculate(t *testing.T) {
	sc, _ := testSchemas(t).For(KindCheese)

	p := &Protocol{
		Kind:   KindCheese,
		Fields: map[string]string{"milk_amount": "200"},
		Additives: []AdditiveLine{
			{Name: "CHN-22", Rate: "2 g"},
			{Name: "CHY-MAX", Rate: "0,5 ml"},
			{Name: "Ręcznie", Dose: "7 g"},
			{Name: "Zepsuty", Rate: "abc g", Dose: "1.0 g"},
			{Name: "Zero", Rate: "0 g", Dose: "1.0 g"},
		},
	}
	Recalculate(p, sc)
	assert.Equal(t, "4.0 g", p.Additives[0].Dose)
	assert.Equal(t, "1.0 ml", p.Additives[1].Dose)
	assert.Equal(t, "7 g", p.Additives[2].Dose, "lines without a rate keep their dose")
	assert.Equal(t, "", p.Additives[3].Dose)
	assert.Equal(t, "", p.Additives[4].Dose)

	p.Fields["milk_amount"] = "55,5"
	Recalculate(p, sc)
	assert.Equal(t, "1.1 g", p.Additives[0].Dose)

	for _, volume := range []string{"", "  ", "sto"} {
		p.Fields["milk_amount"] = volume
		Recalculate(p, sc)
		assert.Equal(t, "", p.Additives[0].Dose, "volume %q clears doses", volume)
		assert.Equal(t, "", p.Additives[1].Dose)
		assert.Equal(t, "7 g", p.Additives[2].Dose)
	}
}

func TestRecalculate_Linear(t *testing.T) {
	sc, _ := testSchemas(t).For(KindFermented)

	p := &Protocol{
		Kind:      KindFermented,
		Fields:    map[string]string{"amt": "100"},
		Additives: []AdditiveLine{{Rate: "30 g"}},
	}
	Recalculate(p, sc)
	assert.Equal(t, "30.0 g", p.Additives[0].Dose, "at 100 units the dose equals the rate")

	p.Fields["amt"] = "300"
	Recalculate(p, sc)
	assert.Equal(t, "90.0 g", p.Additives[0].Dose)
}

func TestToWrite(t *testing.T) {
	sc, _ := testSchemas(t).For(KindCheese)
	p := validCheese()
	p.Fields["ph"] = " 6,6 "

	w := p.toWrite(sc)
	assert.Equal(t, "ser_production_details", w.DetailTable)
	assert.Len(t, w.Detail, 21, "every column is written")
	assert.Equal(t, "6,6", w.Detail["ph"])
	assert.Equal(t, "", w.Detail["solenie_end"])
	require.Len(t, w.Additives, 1)
	assert.Equal(t, "CHY-MAX", w.Additives[0].Name)
	require.Len(t, w.Batches, 1)
}
