package recognizer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/MeKo-Tech/rapidocr-go/internal/common"
)

// BlankToken occupies class 0 of every character table.
const BlankToken = "blank"

// Charset maps model class indices to glyphs. Index 0 is the CTC blank and
// the last index is a space; the dictionary glyphs sit in between in file
// order.
type Charset struct {
	table []string
}

// NewCharset builds a table from dictionary glyphs. Glyphs are NFC
// normalized; duplicates keep their position so indices match the model.
func NewCharset(glyphs []string) (*Charset, error) {
	if len(glyphs) == 0 {
		return nil, common.ErrEmptyCharset
	}
	table := make([]string, 0, len(glyphs)+2)
	table = append(table, BlankToken)
	for _, g := range glyphs {
		table = append(table, norm.NFC.String(g))
	}
	table = append(table, " ")
	return &Charset{table: table}, nil
}

// ParseCharset reads one glyph per line. Lines are trimmed, a leading UTF-8
// BOM is dropped and empty lines are skipped.
func ParseCharset(r io.Reader) (*Charset, error) {
	scanner := bufio.NewScanner(r)
	glyphs := make([]string, 0, 512)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		glyphs = append(glyphs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading dictionary: %w", err)
	}
	return NewCharset(glyphs)
}

// LoadCharset reads a dictionary file.
func LoadCharset(path string) (*Charset, error) {
	if path == "" {
		return nil, errors.New("dictionary path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: dictionary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer func() { _ = f.Close() }()

	cs, err := ParseCharset(f)
	if err != nil {
		return nil, fmt.Errorf("dictionary %s: %w", path, err)
	}
	return cs, nil
}

// Len returns the number of classes, blank and space included.
func (c *Charset) Len() int { return len(c.table) }

// Token returns the glyph for class i. Indices outside the table decode
// as a space.
func (c *Charset) Token(i int) string {
	if i < 0 || i >= len(c.table) {
		return " "
	}
	return c.table[i]
}
