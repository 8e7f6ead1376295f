package fallback

import (
	"testing"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	batchOutput = "PRODUTOS_ENCONTRADOS:\n• ARROZ TIO JOAO 5KG - R$ 27,90\n• FEIJAO CARIOCA 1KG - R$ 8,49"
	eanOutput   = "EANS_ENCONTRADOS:\n1) 7891000100103 - LEITE COND MOCOCA 395G\n2) 7891000100200 - LEITE COND PIRACANJUBA\n3) 7891000100300 - LEITE COND ITALAC\n4) 7891000100400 - LEITE COND NESTLE"
	stockOutput = "Estoque: 0 itens disponíveis após filtragem"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Outcome
	}{
		{"empty stock", stockOutput, Empty{}},
		{"empty list", "[]", Empty{}},
		{"ean hit", eanOutput, Candidates{Names: []string{"LEITE COND MOCOCA 395G", "LEITE COND PIRACANJUBA", "LEITE COND ITALAC"}}},
		{"not found", "Nenhum produto encontrado com esse termo.", NotFound{}},
		{"not found lowercase", "Produto NÃO ENCONTRADO no estoque", NotFound{}},
		{"batch", batchOutput, Success{Items: []PricedItem{
			{Name: "ARROZ TIO JOAO 5KG", Price: "R$ 27,90"},
			{Name: "FEIJAO CARIOCA 1KG", Price: "R$ 8,49"},
		}}},
		{"batch with missing", batchOutput + "\nNÃO_ENCONTRADOS: picanha, salmão", PartialBatch{
			Found: []PricedItem{
				{Name: "ARROZ TIO JOAO 5KG", Price: "R$ 27,90"},
				{Name: "FEIJAO CARIOCA 1KG", Price: "R$ 8,49"},
			},
			Missing: []string{"picanha", "salmão"},
		}},
		{"missing only", "NAO_ENCONTRADOS: picanha", PartialBatch{Missing: []string{"picanha"}}},
		{"single success", "✅ [BUSCA LOTE] Sucesso com 'COCA COLA 2L' (R$ 9.99)", Success{Items: []PricedItem{{Name: "COCA COLA 2L", Price: "R$ 9.99"}}}},
		{"no signal", "Item adicionado", nil},
		{"ten items is not zero", "Encontrados 10 itens", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestSynthesize_SuccessBeatsEmptyStock(t *testing.T) {
	reply := Decide(ClassifyAll([]string{stockOutput, batchOutput}))

	assert.Equal(t, RulePrices, reply.Rule)
	assert.Equal(t, "Aqui estão os valores:\n* ARROZ TIO JOAO 5KG - R$ 27,90\n* FEIJAO CARIOCA 1KG - R$ 8,49\nQuer que eu adicione ao carrinho?", reply.Text)
}

func TestSynthesize_PricesWithMissing(t *testing.T) {
	got := SynthesizeText([]string{
		"✅ [BUSCA LOTE] Sucesso com 'COCA COLA 2L' (R$ 9.99)",
		"NÃO_ENCONTRADOS: picanha, salmão",
	})

	assert.Equal(t, "Aqui estão os valores:\n* COCA COLA 2L - R$ 9.99\n\nNão encontrei: picanha, salmão.\nQuer que eu adicione ao carrinho?", got)
}

func TestSynthesize_SuccessWithoutPrices(t *testing.T) {
	got := SynthesizeText([]string{"PRODUTOS_ENCONTRADOS:\n(nenhum preço)"})
	assert.Equal(t, MsgPricesUnavailable, got)
}

func TestSynthesize_EmptyStock(t *testing.T) {
	got := SynthesizeText([]string{eanOutput, stockOutput})
	assert.Equal(t, "Não temos esse produto disponível. Temos: LEITE COND MOCOCA 395G, LEITE COND PIRACANJUBA. Quer algum desses?", got)

	got = SynthesizeText([]string{stockOutput})
	assert.Equal(t, MsgUnavailable, got)
}

func TestSynthesize_NotFoundAndGeneric(t *testing.T) {
	assert.Equal(t, MsgNotFound, SynthesizeText([]string{"Nenhum produto encontrado com esse termo."}))
	assert.Equal(t, MsgGeneric, SynthesizeText(nil))
	assert.Equal(t, MsgGeneric, SynthesizeText([]string{"ok"}))
	// A search hit alone carries no price.
	assert.Equal(t, MsgGeneric, SynthesizeText([]string{eanOutput}))
}

func TestSynthesize_Deterministic(t *testing.T) {
	inputs := []string{eanOutput, stockOutput, "NAO_ENCONTRADOS: x"}
	first := SynthesizeText(inputs)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, SynthesizeText(inputs))
	}
}

func TestFromSearch(t *testing.T) {
	assert.Equal(t, NotFound{}, FromSearch(nil))
	assert.Equal(t, NotFound{}, FromSearch(&retrieval.SearchOutcome{}))

	o := FromSearch(&retrieval.SearchOutcome{Results: []retrieval.SearchResult{
		{EAN: "1", Name: "A"}, {EAN: "2", Name: "B"}, {EAN: "3", Name: "C"}, {EAN: "4", Name: "D"},
	}})
	assert.Equal(t, Candidates{Names: []string{"A", "B", "C"}}, o)
	assert.Equal(t, KindCandidates, o.Kind())
}
