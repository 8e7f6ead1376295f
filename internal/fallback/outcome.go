// Package fallback builds a customer reply from a turn's tool results when
// the agent produced no usable text.
package fallback

import (
	"regexp"
	"strings"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/retrieval"
)

// Kind tags an Outcome variant.
type Kind string

const (
	KindSuccess      Kind = "success"
	KindEmpty        Kind = "empty"
	KindNotFound     Kind = "not_found"
	KindPartialBatch Kind = "partial_batch"
	KindCandidates   Kind = "candidates"
)

// Outcome is the typed result of one tool call.
type Outcome interface {
	Kind() Kind
}

// PricedItem is a product quoted to the customer. Price keeps the currency
// text as the tool rendered it.
type PricedItem struct {
	Name  string `json:"name"`
	Price string `json:"price,omitempty"`
}

func (p PricedItem) String() string {
	if p.Price == "" {
		return p.Name
	}
	return p.Name + " - " + p.Price
}

// Success carries prices found by a lookup. Items may be empty when the
// lookup succeeded but no price line could be read.
type Success struct {
	Items []PricedItem `json:"items"`
}

// Empty means the product exists but nothing is in stock.
type Empty struct{}

// NotFound means the catalog had no match.
type NotFound struct{}

// PartialBatch is a batch lookup where some names were not found.
type PartialBatch struct {
	Found   []PricedItem `json:"found"`
	Missing []string     `json:"missing"`
}

// Candidates are catalog names returned by a product search.
type Candidates struct {
	Names []string `json:"names"`
}

func (Success) Kind() Kind      { return KindSuccess }
func (Empty) Kind() Kind        { return KindEmpty }
func (NotFound) Kind() Kind     { return KindNotFound }
func (PartialBatch) Kind() Kind { return KindPartialBatch }
func (Candidates) Kind() Kind   { return KindCandidates }

const maxCandidates = 3

// FromSearch converts a search result without going through its text form.
func FromSearch(o *retrieval.SearchOutcome) Outcome {
	if o == nil || len(o.Results) == 0 {
		return NotFound{}
	}
	names := make([]string, 0, maxCandidates)
	for _, r := range o.Results {
		if len(names) == maxCandidates {
			break
		}
		names = append(names, r.Name)
	}
	return Candidates{Names: names}
}

// Tool output markers.
const (
	markerEANs         = "EANS_ENCONTRADOS"
	markerBatchFound   = "PRODUTOS_ENCONTRADOS:"
	markerMissing      = "NÃO_ENCONTRADOS:"
	markerMissingASCII = "NAO_ENCONTRADOS:"
	markerNoProduct    = "Nenhum produto encontrado"
	markerNotFound     = "não encontrado"
	markerFiltered     = "disponíveis após filtragem"
	markerEmptyList    = "[]"
)

var (
	zeroItemsRe = regexp.MustCompile(`(^|[^0-9])0 ite`)
	candidateRe = regexp.MustCompile(`\d+\) \d+ - ([A-Z][^\n;]+)`)
	singleRe    = regexp.MustCompile(`Sucesso com '([^']+)' \((R\$ [0-9.,]+)\)`)
	priceLineRe = regexp.MustCompile(`^(.+?)\s+-\s+(R\$\s*[0-9.,]+.*)$`)
)

// Classify reads legacy tool output text. Text that carries no known signal
// yields nil. Checks run in a fixed order and the first match decides.
func Classify(text string) Outcome {
	switch {
	case isEmptyStock(text):
		return Empty{}
	case strings.Contains(text, markerEANs):
		return Candidates{Names: candidateNames(text)}
	case strings.Contains(text, markerNoProduct), strings.Contains(strings.ToLower(text), markerNotFound):
		return NotFound{}
	case strings.Contains(text, markerBatchFound):
		found := priceLines(text)
		if missing := missingNames(text); len(missing) > 0 {
			return PartialBatch{Found: found, Missing: missing}
		}
		return Success{Items: found}
	case strings.Contains(text, markerMissing), strings.Contains(text, markerMissingASCII):
		return PartialBatch{Missing: missingNames(text)}
	}

	if m := singleRe.FindAllStringSubmatch(text, -1); m != nil {
		items := make([]PricedItem, 0, len(m))
		for _, g := range m {
			items = append(items, PricedItem{Name: g[1], Price: g[2]})
		}
		return Success{Items: items}
	}
	return nil
}

// ClassifyAll classifies each text, dropping those without a signal.
func ClassifyAll(texts []string) []Outcome {
	out := make([]Outcome, 0, len(texts))
	for _, t := range texts {
		if o := Classify(t); o != nil {
			out = append(out, o)
		}
	}
	return out
}

func isEmptyStock(text string) bool {
	return zeroItemsRe.MatchString(text) ||
		strings.Contains(text, markerFiltered) ||
		strings.Contains(text, markerEmptyList)
}

func candidateNames(text string) []string {
	matches := candidateRe.FindAllStringSubmatch(text, maxCandidates)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSpace(m[1]))
	}
	return names
}

// priceLines reads "• name - R$ price" lines.
func priceLines(text string) []PricedItem {
	var items []PricedItem
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if !strings.HasPrefix(ln, "• ") || !strings.Contains(ln, "R$") {
			continue
		}
		ln = strings.TrimSpace(strings.TrimPrefix(ln, "• "))
		if m := priceLineRe.FindStringSubmatch(ln); m != nil {
			items = append(items, PricedItem{Name: m[1], Price: m[2]})
			continue
		}
		items = append(items, PricedItem{Name: ln})
	}
	return items
}

// missingNames reads the comma separated list after the missing marker, up
// to the end of that line.
func missingNames(text string) []string {
	i := strings.Index(text, markerMissing)
	n := len(markerMissing)
	if i < 0 {
		i = strings.Index(text, markerMissingASCII)
		n = len(markerMissingASCII)
	}
	if i < 0 {
		return nil
	}
	rest := text[i+n:]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}

	var names []string
	for _, name := range strings.Split(rest, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
