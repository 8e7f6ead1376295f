// Package ingest vectorizes the processed catalog export into the product
// index.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/catalog"
)

const previewLen = 50

// SkippedLine is a catalog line that could not be parsed.
type SkippedLine struct {
	Line    int    `json:"line"`
	Preview string `json:"preview"`
}

// ParsedCatalog is the result of reading a catalog export.
type ParsedCatalog struct {
	Products []catalog.Product
	Skipped  []SkippedLine
	Lines    int
}

// ParseCatalog reads one product per line. Blank lines are ignored and
// unparsable lines are reported, not fatal.
func ParseCatalog(r io.Reader) (*ParsedCatalog, error) {
	out := &ParsedCatalog{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		out.Lines++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		p, err := catalog.ParseLine(line)
		if err != nil {
			out.Skipped = append(out.Skipped, SkippedLine{Line: out.Lines, Preview: preview(line)})
			continue
		}
		out.Products = append(out.Products, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	return out, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen])
}
