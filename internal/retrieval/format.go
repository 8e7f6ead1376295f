package retrieval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/index"
)

// Messages returned to the conversation instead of a result list.
const (
	ResultsHeader     = "EANS_ENCONTRADOS:"
	MsgNoResults      = "Nenhum produto encontrado com esse termo."
	MsgNoValidResults = "Nenhum produto com EAN válido encontrado."
	MsgEmptyQuery     = "Nenhum termo de busca informado."
	MsgSearchFailed   = "Erro ao buscar produtos no catálogo. Tente novamente."
)

const nameFallbackLen = 100

// SearchResult is one formatted candidate.
type SearchResult struct {
	EAN      string  `json:"ean"`
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Sector   string  `json:"sector,omitempty"`
	Category string  `json:"category,omitempty"`
}

var (
	textEANRe  = regexp.MustCompile(`"codigo_ean":\s*"?(\d+)"?`)
	textNameRe = regexp.MustCompile(`"produto":\s*"([^"]+)"`)
)

// ExtractResult pulls identifier and display name out of a row. Metadata
// wins; the raw text is searched next; the truncated text is the last-resort
// name. EAN is empty when nothing usable was found.
func ExtractResult(row index.Row) SearchResult {
	r := SearchResult{Score: row.Score}
	meta := decodeMetadata(row.Metadata)

	r.EAN = firstNonEmpty(metaString(meta, "codigo_ean"), metaString(meta, "ean"))
	r.Name = firstNonEmpty(metaString(meta, "produto"), metaString(meta, "nome"))
	r.Sector = metaString(meta, "setor")
	r.Category = firstNonEmpty(metaString(meta, "categoria"), metaString(meta, "categoria1"))

	if r.EAN == "" || r.Name == "" {
		if m := textEANRe.FindStringSubmatch(row.Text); m != nil && r.EAN == "" {
			r.EAN = m[1]
		}
		if m := textNameRe.FindStringSubmatch(row.Text); m != nil && r.Name == "" {
			r.Name = m[1]
		}
	}

	if r.Name == "" {
		if i := strings.Index(row.Text, " - setor:"); i > 0 {
			r.Name = strings.TrimSpace(row.Text[:i])
		}
	}

	if r.Name == "" {
		r.Name = truncateRunes(strings.TrimSpace(row.Text), nameFallbackLen)
	}

	return r
}

// Results extracts rows in order, dropping rows without an EAN and repeats
// of an EAN already seen.
func Results(rows []index.Row) []SearchResult {
	seen := make(map[string]struct{}, len(rows))
	out := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		r := ExtractResult(row)
		if r.EAN == "" || r.Name == "" {
			continue
		}
		if _, dup := seen[r.EAN]; dup {
			continue
		}
		seen[r.EAN] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Format renders rows for the agent:
//
//	EANS_ENCONTRADOS:
//	1) 7891000100103 - LEITE COND MOCOCA 395G
func Format(rows []index.Row) string {
	if len(rows) == 0 {
		return MsgNoResults
	}
	return FormatResults(Results(rows))
}

// FormatResults renders already extracted results.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return MsgNoValidResults
	}

	var b strings.Builder
	b.WriteString(ResultsHeader)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d) %s - %s", i+1, r.EAN, r.Name)
	}
	return b.String()
}

func decodeMetadata(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var meta map[string]interface{}
	if err := dec.Decode(&meta); err == nil {
		return meta
	}

	// Some loaders stored metadata as a JSON string holding the object.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		dec = json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		if err := dec.Decode(&meta); err == nil {
			return meta
		}
	}
	return nil
}

func metaString(meta map[string]interface{}, key string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
