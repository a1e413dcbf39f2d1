package recognizer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MeKo-Tech/rapidocr-go/internal/common"
	"github.com/MeKo-Tech/rapidocr-go/internal/onnx"
)

// Script classifies a glyph for word segmentation.
type Script int

const (
	// ScriptLatinOrDigit covers everything outside the CJK range.
	ScriptLatinOrDigit Script = iota
	// ScriptCJK covers the CJK Unified Ideographs block U+4E00..U+9FA5.
	ScriptCJK
)

func (s Script) String() string {
	if s == ScriptCJK {
		return "cjk"
	}
	return "latin"
}

// ScriptOf returns the script of the first rune of glyph.
func ScriptOf(glyph string) Script {
	r, _ := utf8.DecodeRuneInString(glyph)
	if r >= 0x4E00 && r <= 0x9FA5 {
		return ScriptCJK
	}
	return ScriptLatinOrDigit
}

// maxColumnGap is the largest timestep gap that keeps two kept glyphs in
// the same word.
const maxColumnGap = 4

// Word is a run of kept glyphs of one script with no large timestep gap.
type Word struct {
	Chars       []string
	Columns     []int // absolute timestep of each glyph, ascending
	Script      Script
	Confidences []float64
}

// Text joins the word's glyphs.
func (w Word) Text() string { return strings.Join(w.Chars, "") }

// Line is the decoded output for one text-line crop.
type Line struct {
	Text       string
	Confidence float64
	// Words is filled only when word boxes are requested.
	Words []Word
	// TimestepCount is the width of the column grid Words index into. With
	// word boxes it is scaled by the crop's share of the padded batch width.
	TimestepCount float64
}

// argmax returns the first index holding the maximum of row.
func argmax(row []float32) (int, float32) {
	idx, best := 0, row[0]
	for i := 1; i < len(row); i++ {
		if row[i] > best {
			idx, best = i, row[i]
		}
	}
	return idx, best
}

// DecodeSequence greedily decodes one sample from its per-timestep argmax
// indices and probabilities: repeats collapse, blanks drop, and the kept
// glyphs are concatenated in timestep order.
func (c *Charset) DecodeSequence(indices []int, probs []float32, wordBox bool) Line {
	var (
		sb      strings.Builder
		glyphs  []string
		columns []int
		confs   []float64
	)
	for t, idx := range indices {
		if idx == 0 || (t > 0 && idx == indices[t-1]) {
			continue
		}
		g := c.Token(idx)
		sb.WriteString(g)
		glyphs = append(glyphs, g)
		columns = append(columns, t)
		confs = append(confs, float64(probs[t]))
	}

	line := Line{Text: sb.String(), TimestepCount: float64(len(indices))}
	if len(confs) > 0 {
		var sum float64
		for _, p := range confs {
			sum += p
		}
		line.Confidence = sum / float64(len(confs))
	}
	if wordBox {
		line.Words = segmentWords(glyphs, columns, confs)
	}
	return line
}

// segmentWords splits kept glyphs into words on a script change or a
// timestep gap wider than maxColumnGap.
func segmentWords(glyphs []string, columns []int, confs []float64) []Word {
	if len(glyphs) == 0 {
		return nil
	}
	var (
		words []Word
		cur   Word
	)
	cur.Script = ScriptOf(glyphs[0])
	for i, g := range glyphs {
		script := ScriptOf(g)
		// The first glyph's gap is a fixed 2 or 3, never a split.
		split := script != cur.Script || (i > 0 && columns[i]-columns[i-1] > maxColumnGap)
		if split {
			if len(cur.Chars) > 0 {
				words = append(words, cur)
			}
			cur = Word{Script: script}
		}
		cur.Chars = append(cur.Chars, g)
		cur.Columns = append(cur.Columns, columns[i])
		cur.Confidences = append(cur.Confidences, confs[i])
	}
	return append(words, cur)
}

// Decode decodes recognizer output shaped [N, T, C]. When wordBox is set,
// ratios holds each sample's width/height ratio and maxRatio the ratio the
// batch was padded to; each sample's TimestepCount is scaled by
// ratio/maxRatio.
func Decode(out onnx.Tensor, cs *Charset, wordBox bool, ratios []float64, maxRatio float64) ([]Line, error) {
	if len(out.Shape) != 3 {
		return nil, fmt.Errorf("%w: recognizer output shape %v", common.ErrInvalidShape, out.Shape)
	}
	n, steps, classes := out.Dim(0), out.Dim(1), out.Dim(2)
	if n <= 0 || steps <= 0 || classes <= 0 || len(out.Data) != n*steps*classes {
		return nil, fmt.Errorf("%w: recognizer output shape %v with %d values",
			common.ErrInvalidShape, out.Shape, len(out.Data))
	}
	if wordBox && (len(ratios) != n || maxRatio <= 0) {
		return nil, fmt.Errorf("word boxes need %d aspect ratios and a positive max ratio, got %d and %v",
			n, len(ratios), maxRatio)
	}

	lines := make([]Line, n)
	indices := make([]int, steps)
	probs := make([]float32, steps)
	for b := range n {
		base := b * steps * classes
		for t := range steps {
			off := base + t*classes
			indices[t], probs[t] = argmax(out.Data[off : off+classes])
		}
		lines[b] = cs.DecodeSequence(indices, probs, wordBox)
		if wordBox {
			lines[b].TimestepCount *= ratios[b] / maxRatio
		}
	}
	return lines, nil
}
