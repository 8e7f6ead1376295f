package retrieval

import "strings"

// Rule names the enhancement policy that fired for a query.
type Rule string

const (
	RuleNone            Rule = "none"
	RuleTranslation     Rule = "translation"
	RuleBoost           Rule = "boost"
	RuleBoostSuppressed Rule = "boost_suppressed"
)

// Enhancement describes how a raw query was rewritten before embedding.
type Enhancement struct {
	Original string `json:"original"`
	Query    string `json:"query"`
	Rule     Rule   `json:"rule"`
	// Term is the table entry that matched, if any.
	Term string `json:"term,omitempty"`
}

type translation struct {
	Term         string
	Abbreviation string
}

// translations map consumer wording to the catalog's abbreviations. Matching
// is case-insensitive substring containment and the first entry in slice
// order wins.
var translations = []translation{
	{"absorvente", "abs"},
	{"achocolatado", "achoc"},
	{"refrigerante", "refrig"},
	{"amaciante", "amac"},
	{"desodorante", "desod"},
	{"shampoo", "sh"},
	{"condicionador", "cond"},
	{"hotdog", "pao hot dog maxpaes"},
	{"cachorro quente", "pao hot dog maxpaes"},
	{"cachorro-quente", "pao hot dog maxpaes"},
	{"musarela", "queijo mussarela"},
	{"muçarela", "queijo mussarela"},
	{"mussarela", "queijo mussarela"},
	{"presunto", "presunto fatiado"},
	{"creme crack", "bolacha cream cracker"},
	{"cream crack", "bolacha cream cracker"},
	{"cracker", "bolacha cream cracker"},
	{"guarana", "refrig guarana antarctica"},
	{"coca cola", "refrig coca cola"},
	{"coca-cola", "refrig coca cola"},
	{"fanta", "refrig fanta"},
	{"sprite", "refrig sprite"},
	{"açúcar", "acucar cristal"},
	{"açucar", "acucar cristal"},
	{"café", "cafe"},
	{"maçã", "maca"},
	{"feijão", "feijao"},
}

// Category hints appended by the boost.
const (
	hintProduce = "hortifruti legumes verduras frutas"
	hintMeat    = "açougue carnes"
	hintDairy   = "laticínios"
)

// boostKeywords are fresh produce, meat and dairy terms, matched by
// substring containment in slice order.
var boostKeywords = []string{
	"tomate", "cebola", "batata", "alface", "cenoura", "pepino", "pimentao",
	"abobora", "abobrinha", "berinjela", "beterraba", "brocolis", "couve",
	"espinafre", "repolho", "rucula", "agriao", "alho", "gengibre", "mandioca",
	"banana", "maca", "laranja", "limao", "abacaxi", "melancia", "melao",
	"uva", "morango", "manga", "mamao", "abacate", "goiaba", "pera", "pessego",
	"ameixa", "kiwi", "coco", "maracuja", "acerola", "caju", "pitanga",
	"cheiro verde", "coentro", "salsa", "cebolinha", "hortela", "manjericao",
	"alecrim", "tomilho", "oregano", "louro", "frango", "carne", "peixe",
	"ovo", "leite", "queijo", "manteiga", "iogurte",
}

// boostHints overrides the produce hint for meat and dairy keywords.
var boostHints = map[string]string{
	"frango":   hintMeat,
	"carne":    hintMeat,
	"peixe":    hintMeat,
	"ovo":      hintDairy,
	"leite":    hintDairy,
	"queijo":   hintDairy,
	"manteiga": hintDairy,
	"iogurte":  hintDairy,
}

// processedTerms suppress the boost: "suco de caju" is not fresh produce.
var processedTerms = []string{"doce", "suco", "molho", "extrato", "polpa", "geleia", "compota"}

// Enhance rewrites a raw query. At most one rule fires: a translation
// prefixes the abbreviation to the raw query; otherwise a boost keyword
// appends its category hint unless a processed-food term is present.
func Enhance(raw string) Enhancement {
	e := Enhancement{Original: raw, Query: raw, Rule: RuleNone}
	lower := strings.ToLower(raw)

	for _, t := range translations {
		if strings.Contains(lower, t.Term) {
			e.Query = t.Abbreviation + " " + raw
			e.Rule = RuleTranslation
			e.Term = t.Term
			return e
		}
	}

	keyword := ""
	for _, k := range boostKeywords {
		if strings.Contains(lower, k) {
			keyword = k
			break
		}
	}
	if keyword == "" {
		return e
	}

	for _, p := range processedTerms {
		if strings.Contains(lower, p) {
			e.Rule = RuleBoostSuppressed
			e.Term = p
			return e
		}
	}

	hint, ok := boostHints[keyword]
	if !ok {
		hint = hintProduce
	}
	e.Query = raw + " " + hint
	e.Rule = RuleBoost
	e.Term = keyword
	return e
}

// EnhanceQuery returns only the rewritten query.
func EnhanceQuery(raw string) string {
	return Enhance(raw).Query
}
