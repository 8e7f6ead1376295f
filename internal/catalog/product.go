// Package catalog defines catalog product records and the flat-file format
// they are vectorized from.
package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Sectors that receive the ranking boost in hybrid search.
const (
	SectorProduce = "HORTI-FRUTI"
	SectorMeat    = "FRIGORIFICO"
	SectorButcher = "ACOUGUE"
)

// BoostedSectors lists sectors whose short product names need the additive boost.
var BoostedSectors = []string{SectorProduce, SectorMeat, SectorButcher}

// IsBoostedSector reports whether sector receives the hybrid search boost.
func IsBoostedSector(sector string) bool {
	s := strings.ToUpper(strings.TrimSpace(sector))
	for _, b := range BoostedSectors {
		if s == b {
			return true
		}
	}
	return false
}

// Metadata is the structured part of a product record.
type Metadata struct {
	EAN         string `json:"ean"`
	Name        string `json:"produto,omitempty"`
	Sector      string `json:"setor"`
	Category    string `json:"categoria"`
	Subcategory string `json:"subcategoria"`
}

// Product is one catalog entry. Immutable once vectorized.
type Product struct {
	Text      string
	Metadata  Metadata
	Embedding []float32
}

// MetadataJSON encodes metadata for storage.
func (p Product) MetadataJSON() ([]byte, error) {
	return json.Marshal(p.Metadata)
}

var lineRe = regexp.MustCompile(`^ean\s+(\S+)\s+(.+?)\s+setor\s+(.*?)\s+categoria\s*(.*?)\s*subcategoria\s*(.*)$`)

// ParseLine parses one line of the processed catalog export:
//
//	ean 102 ABACATE  kg setor HORTI-FRUTI categoria FRUTAS subcategoria
//
// Categories may be empty.
func ParseLine(line string) (Product, error) {
	m := lineRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Product{}, fmt.Errorf("unrecognized catalog line %q", truncate(line, 50))
	}

	p := Product{
		Metadata: Metadata{
			EAN:         strings.TrimSpace(m[1]),
			Name:        strings.TrimSpace(m[2]),
			Sector:      strings.TrimSpace(m[3]),
			Category:    strings.TrimSpace(m[4]),
			Subcategory: strings.TrimSpace(m[5]),
		},
	}
	p.Text = EmbeddingText(p.Metadata)
	return p, nil
}

// EmbeddingText renders the text that is embedded and full-text indexed:
//
//	ABACATE kg - setor: HORTI-FRUTI - categoria: FRUTAS
func EmbeddingText(m Metadata) string {
	var b strings.Builder
	b.WriteString(m.Name)
	if m.Sector != "" {
		b.WriteString(" - setor: ")
		b.WriteString(m.Sector)
	}
	if m.Category != "" {
		b.WriteString(" - categoria: ")
		b.WriteString(m.Category)
	}
	if m.Subcategory != "" {
		b.WriteString(" - subcategoria: ")
		b.WriteString(m.Subcategory)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
