package index

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/catalog"
)

// Document is a stored product as seen by the in-process ranker.
type Document struct {
	ID        int64
	Text      string
	Metadata  json.RawMessage
	Sector    string
	Embedding []float32
}

// DocumentFromProduct converts a catalog product for in-process ranking.
func DocumentFromProduct(id int64, p catalog.Product) (Document, error) {
	meta, err := p.MetadataJSON()
	if err != nil {
		return Document{}, err
	}
	return Document{
		ID:        id,
		Text:      p.Text,
		Metadata:  meta,
		Sector:    p.Metadata.Sector,
		Embedding: p.Embedding,
	}, nil
}

// Fuse ranks docs the way hybrid_search_v2 does: reciprocal rank fusion of
// a token-overlap ranking and a cosine ranking, each truncated to 2*limit
// candidates, plus the sector boost counted as a rank-1 hit in a third list.
// Scores are divided by the best attainable sum so they fall in [0, 1].
func Fuse(q HybridQuery, docs []Document) []Row {
	q = q.withDefaults()
	pool := q.Limit * 2
	k := float64(q.RRFConstant)

	lexical := lexicalRanks(q.Text, docs, pool)
	semantic := semanticRanks(q.Vector, docs, pool)

	maxScore := (q.LexicalWeight + q.SemanticWeight + q.SectorBoost) / (k + 1)
	if maxScore <= 0 {
		return nil
	}

	type scored struct {
		doc   Document
		score float64
	}
	var candidates []scored
	for i, d := range docs {
		lr, inLex := lexical[i]
		sr, inSem := semantic[i]
		if !inLex && !inSem {
			continue
		}
		var s float64
		if inLex {
			s += q.LexicalWeight / (k + float64(lr))
		}
		if inSem {
			s += q.SemanticWeight / (k + float64(sr))
		}
		if catalog.IsBoostedSector(d.Sector) {
			s += q.SectorBoost / (k + 1)
		}
		candidates = append(candidates, scored{doc: d, score: s / maxScore})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].doc.ID < candidates[j].doc.ID
	})

	if len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}

	rows := make([]Row, len(candidates))
	for i, c := range candidates {
		rows[i] = Row{Text: c.doc.Text, Metadata: c.doc.Metadata, Score: c.score}
	}
	return rows
}

// lexicalRanks ranks docs by the number of distinct query tokens they
// contain, shorter documents first on ties. Docs with no overlap are not ranked.
func lexicalRanks(text string, docs []Document, pool int) map[int]int {
	terms := tokenize(text)
	if len(terms) == 0 {
		return nil
	}

	type hit struct {
		idx     int
		overlap int
		length  int
	}
	var hits []hit
	for i, d := range docs {
		docTerms := make(map[string]struct{})
		for _, t := range tokenize(d.Text) {
			docTerms[t] = struct{}{}
		}
		n := 0
		for _, t := range terms {
			if _, ok := docTerms[t]; ok {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, hit{idx: i, overlap: n, length: len(docTerms)})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].overlap != hits[j].overlap {
			return hits[i].overlap > hits[j].overlap
		}
		return hits[i].length < hits[j].length
	})

	ranks := make(map[int]int, len(hits))
	for r, h := range hits {
		if r >= pool {
			break
		}
		ranks[h.idx] = r + 1
	}
	return ranks
}

func semanticRanks(vec []float32, docs []Document, pool int) map[int]int {
	if len(vec) == 0 {
		return nil
	}

	type hit struct {
		idx int
		sim float64
	}
	var hits []hit
	for i, d := range docs {
		if len(d.Embedding) != len(vec) {
			continue
		}
		hits = append(hits, hit{idx: i, sim: cosine(vec, d.Embedding)})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].sim > hits[j].sim })

	ranks := make(map[int]int, len(hits))
	for r, h := range hits {
		if r >= pool {
			break
		}
		ranks[h.idx] = r + 1
	}
	return ranks
}

var stripAccents = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

// tokenize lowercases, folds Portuguese accents and splits on anything that
// is not a letter or digit. Single-character tokens are dropped.
func tokenize(s string) []string {
	s = stripAccents.Replace(strings.ToLower(s))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
