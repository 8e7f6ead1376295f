package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line     string
		expected Metadata
		text     string
	}{
		{
			line:     "ean 102 ABACATE  kg setor HORTI-FRUTI categoria FRUTAS subcategoria ",
			expected: Metadata{EAN: "102", Name: "ABACATE  kg", Sector: "HORTI-FRUTI", Category: "FRUTAS"},
			text:     "ABACATE  kg - setor: HORTI-FRUTI - categoria: FRUTAS",
		},
		{
			line: "ean 7891000100103 LEITE COND MOCOCA 395G setor MERCEARIA categoria DOCES subcategoria LEITE CONDENSADO",
			expected: Metadata{
				EAN: "7891000100103", Name: "LEITE COND MOCOCA 395G", Sector: "MERCEARIA",
				Category: "DOCES", Subcategory: "LEITE CONDENSADO",
			},
			text: "LEITE COND MOCOCA 395G - setor: MERCEARIA - categoria: DOCES - subcategoria: LEITE CONDENSADO",
		},
	}

	for _, tc := range tests {
		t.Run(tc.expected.EAN, func(t *testing.T) {
			p, err := ParseLine(tc.line)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, p.Metadata)
			assert.Equal(t, tc.text, p.Text)
		})
	}
}

func TestParseLine_Invalid(t *testing.T) {
	_, err := ParseLine("ABACATE sem formato")
	assert.Error(t, err)
}

func TestIsBoostedSector(t *testing.T) {
	assert.True(t, IsBoostedSector("HORTI-FRUTI"))
	assert.True(t, IsBoostedSector(" frigorifico "))
	assert.False(t, IsBoostedSector("MERCEARIA"))
}
