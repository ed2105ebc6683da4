package dosage

import (
	"testing"

	"github.com/ansel1/merry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in        string
		wantValue string
		wantUnit  string
	}{
		{"30 g", "30", "g"},
		{"2,5 ml", "2.5", "ml"},
		{"2.5 ml", "2.5", "ml"},
		{"  7   szt  ", "7", "szt"},
		{"12", "12", ""},
		{"abc g", "0", "g"},
		{"", "0", ""},
		{"1,5 g extra tokens", "1.5", "g"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d := Parse(tt.in)
			assert.True(t, decimal.RequireFromString(tt.wantValue).Equal(d.Value), "value %s", d.Value)
			assert.Equal(t, tt.wantUnit, d.Unit)
		})
	}
}

func TestParseReformatAtUnitFactor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"30,25 g", "30.3 g"},
		{"30.24 g", "30.2 g"},
		{"1,05 ml", "1.1 ml"},
		{"0,5 kg", "0.5 kg"},
		{"12,0 szt", "12.0 szt"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ScaleText(tt.in, BaseVolume)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScaleLinearInVolume(t *testing.T) {
	got, ok := ScaleText("30 g", decimal.NewFromInt(200))
	require.True(t, ok)
	assert.Equal(t, "60.0 g", got)

	rates := []string{"30 g", "2,5 ml", "0.4 g", "17 szt"}
	for _, rate := range rates {
		r := Parse(rate)

		// exact before rounding
		single := r.Value.Mul(decimal.NewFromInt(150)).Div(BaseVolume)
		double := r.Value.Mul(decimal.NewFromInt(300)).Div(BaseVolume)
		assert.True(t, single.Mul(decimal.NewFromInt(2)).Equal(double), rate)

		// and after it, for volumes whose doses need no rounding
		s200, ok := Scale(r, decimal.NewFromInt(200))
		require.True(t, ok)
		s400, ok := Scale(r, decimal.NewFromInt(400))
		require.True(t, ok)
		a, b := Parse(s200), Parse(s400)
		assert.True(t, a.Value.Mul(decimal.NewFromInt(2)).Equal(b.Value), "%s: %s vs %s", rate, s200, s400)
		assert.Equal(t, r.Unit, b.Unit)
	}
}

func TestScaleRoundsHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		rate   string
		volume int64
		want   string
	}{
		{"0,25 g", 100, "0.3 g"},
		{"0.35 g", 100, "0.4 g"},
		{"0,125 ml", 200, "0.3 ml"},
		{"2,5 ml", 150, "3.8 ml"},
	}
	for _, tt := range tests {
		t.Run(tt.rate, func(t *testing.T) {
			got, ok := ScaleText(tt.rate, decimal.NewFromInt(tt.volume))
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScaleClearsZeroRate(t *testing.T) {
	for _, rate := range []string{"0 g", "", "abc g", "-3 g", "0,0"} {
		got, ok := ScaleText(rate, decimal.NewFromInt(100))
		assert.False(t, ok, rate)
		assert.Empty(t, got, rate)
	}
}

func TestScaleEmptyUnitKeepsSeparator(t *testing.T) {
	got, ok := ScaleText("5", decimal.NewFromInt(50))
	require.True(t, ok)
	assert.Equal(t, "2.5 ", got)
}

func TestParseVolume(t *testing.T) {
	v, err := ParseVolume(" 120,5 ")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("120.5").Equal(v))

	_, err = ParseVolume("")
	require.Error(t, err)
	assert.True(t, merry.Is(err, ErrInvalidNumber))

	_, err = ParseVolume("sto")
	require.Error(t, err)
	assert.True(t, merry.Is(err, ErrInvalidNumber))
	assert.Equal(t, "Ilość surowca musi być liczbą.", merry.UserMessage(err))
}

func TestParseQuantity(t *testing.T) {
	_, ok, err := ParseQuantity("cena", "")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := ParseQuantity("cena", "12,40")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "12.4", v.String())

	_, _, err = ParseQuantity("cena", "dużo")
	require.Error(t, err)
	assert.True(t, merry.Is(err, ErrInvalidNumber))
	assert.Contains(t, merry.UserMessage(err), "cena")
}
