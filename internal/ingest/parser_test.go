package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `ean 102 ABACATE  kg setor HORTI-FRUTI categoria FRUTAS subcategoria 
ean 7891000100103 LEITE COND MOCOCA 395G setor MERCEARIA categoria LATICINIOS subcategoria LEITE CONDENSADO

this line has no catalog structure at all and is rather long, longer than fifty
ean 103 FRANGO INTEIRO CONGELADO kg setor FRIGORIFICO categoria AVES subcategoria
`

func TestParseCatalog(t *testing.T) {
	parsed, err := ParseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)

	assert.Equal(t, 5, parsed.Lines)
	require.Len(t, parsed.Products, 3)
	assert.Equal(t, "102", parsed.Products[0].Metadata.EAN)
	assert.Equal(t, "ABACATE  kg", parsed.Products[0].Metadata.Name)
	assert.Equal(t, "ABACATE  kg - setor: HORTI-FRUTI - categoria: FRUTAS", parsed.Products[0].Text)
	assert.Equal(t, "FRIGORIFICO", parsed.Products[2].Metadata.Sector)

	require.Len(t, parsed.Skipped, 1)
	assert.Equal(t, 4, parsed.Skipped[0].Line)
	assert.Len(t, []rune(parsed.Skipped[0].Preview), 50)
}

func TestParseCatalog_Empty(t *testing.T) {
	parsed, err := ParseCatalog(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, parsed.Products)
	assert.Zero(t, parsed.Lines)
}
