package fold

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "ser twarogowy", Key("  Ser Twarogowy "))
	assert.Equal(t, "żółty ser", Key("ŻÓŁTY SER"))
	// decomposed o + combining acute folds to the composed form
	assert.Equal(t, Key("\u00f3"), Key("o\u0301"))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("Napoje fermentowane", "NAPOJE FERMENTOWANE"))
	assert.False(t, Equal("Ser", "Ser zwarowy"))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("Gouda Łagodna", "łag"))
	assert.True(t, Contains("00712_2024", "712"))
	assert.True(t, Contains("anything", ""))
	assert.False(t, Contains("Bryndza", "oscypek"))
}
