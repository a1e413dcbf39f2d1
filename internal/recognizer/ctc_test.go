package recognizer

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/rapidocr-go/internal/common"
	"github.com/MeKo-Tech/rapidocr-go/internal/onnx"
)

// testCharset has classes: 0 blank, 1..6 a..f, 7 space.
func testCharset(t *testing.T) *Charset {
	t.Helper()
	cs, err := NewCharset([]string{"a", "b", "c", "d", "e", "f"})
	require.NoError(t, err)
	return cs
}

func TestDecodeSequenceCollapsesAndDropsBlanks(t *testing.T) {
	cs := testCharset(t)
	indices := []int{0, 3, 3, 5, 0, 0, 7}
	probs := []float32{0.9, 0.8, 0.7, 0.6, 0.9, 0.9, 0.4}

	line := cs.DecodeSequence(indices, probs, false)
	assert.Equal(t, "ce ", line.Text)
	assert.InDelta(t, (0.8+0.6+0.4)/3, line.Confidence, 1e-6)
	assert.Nil(t, line.Words)
	assert.InDelta(t, 7.0, line.TimestepCount, 1e-12)
}

func TestDecodeSequenceRepeatAfterBlankIsKept(t *testing.T) {
	cs := testCharset(t)
	line := cs.DecodeSequence([]int{1, 0, 1, 1}, []float32{0.5, 0.5, 0.7, 0.9}, false)
	assert.Equal(t, "aa", line.Text)
	assert.InDelta(t, 0.6, line.Confidence, 1e-6)
}

func TestDecodeSequenceNothingKept(t *testing.T) {
	cs := testCharset(t)
	line := cs.DecodeSequence([]int{0, 0, 0}, []float32{0.9, 0.9, 0.9}, true)
	assert.Empty(t, line.Text)
	assert.Zero(t, line.Confidence)
	assert.Empty(t, line.Words)
}

func TestDecodeSequenceOutOfRangeIndexIsSpace(t *testing.T) {
	cs := testCharset(t)
	line := cs.DecodeSequence([]int{1, 99, 2}, []float32{1, 1, 1}, false)
	assert.Equal(t, "a b", line.Text)
}

func TestSegmentWords(t *testing.T) {
	cs, err := NewCharset([]string{"a", "b", "中", "文", "1"})
	require.NoError(t, err)
	// classes: 1 a, 2 b, 3 中, 4 文, 5 1
	indices := []int{1, 0, 2, 0, 0, 0, 0, 0, 5, 3, 0, 4, 0, 1}
	probs := make([]float32, len(indices))
	for i := range probs {
		probs[i] = float32(i) / 20
	}

	line := cs.DecodeSequence(indices, probs, true)
	assert.Equal(t, "ab1中文a", line.Text)
	require.Len(t, line.Words, 4)

	// gap 2 keeps "ab" together, gap 6 splits before "1"
	assert.Equal(t, []string{"a", "b"}, line.Words[0].Chars)
	assert.Equal(t, []int{0, 2}, line.Words[0].Columns)
	assert.Equal(t, ScriptLatinOrDigit, line.Words[0].Script)

	assert.Equal(t, "1", line.Words[1].Text())
	assert.Equal(t, []int{8}, line.Words[1].Columns)

	// script change
	assert.Equal(t, "中文", line.Words[2].Text())
	assert.Equal(t, []int{9, 11}, line.Words[2].Columns)
	assert.Equal(t, ScriptCJK, line.Words[2].Script)
	assert.InDeltaSlice(t, []float64{9.0 / 20, 11.0 / 20}, line.Words[2].Confidences, 1e-6)

	assert.Equal(t, "a", line.Words[3].Text())
	assert.Equal(t, ScriptLatinOrDigit, line.Words[3].Script)
}

func TestScriptOf(t *testing.T) {
	assert.Equal(t, ScriptCJK, ScriptOf("一"))
	assert.Equal(t, ScriptCJK, ScriptOf("龥"))
	assert.Equal(t, ScriptLatinOrDigit, ScriptOf("a"))
	assert.Equal(t, ScriptLatinOrDigit, ScriptOf("7"))
	assert.Equal(t, ScriptLatinOrDigit, ScriptOf("の"))
	assert.Equal(t, ScriptLatinOrDigit, ScriptOf(""))
	assert.Equal(t, "cjk", ScriptCJK.String())
}

func TestArgmaxFirstMaximumWins(t *testing.T) {
	idx, v := argmax([]float32{0.2, 0.4, 0.4, 0.1})
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 0.4, v, 1e-6)
}

// oneHot builds [n, steps, classes] logits where sample b at step t peaks
// at classes[b][t] with probability p.
func oneHot(seqs [][]int, classes int, p float32) onnx.Tensor {
	steps := len(seqs[0])
	data := make([]float32, len(seqs)*steps*classes)
	for b, seq := range seqs {
		for t, c := range seq {
			row := data[(b*steps+t)*classes:]
			for k := range classes {
				row[k] = (1 - p) / float32(classes-1)
			}
			row[c] = p
		}
	}
	return onnx.Tensor{Data: data, Shape: []int64{int64(len(seqs)), int64(steps), int64(classes)}}
}

func TestDecodeBatch(t *testing.T) {
	cs := testCharset(t)
	out := oneHot([][]int{
		{1, 1, 0, 2, 0, 0, 0, 0},
		{0, 6, 0, 0, 0, 0, 0, 5},
	}, cs.Len(), 0.9)

	lines, err := Decode(out, cs, false, nil, 0)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "ab", lines[0].Text)
	assert.Equal(t, "fe", lines[1].Text)
	assert.InDelta(t, 0.9, lines[0].Confidence, 1e-6)
	assert.InDelta(t, 8.0, lines[1].TimestepCount, 1e-12)

	lines, err = Decode(out, cs, true, []float64{2, 4}, 8)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, lines[0].TimestepCount, 1e-12)
	assert.InDelta(t, 4.0, lines[1].TimestepCount, 1e-12)
	require.Len(t, lines[1].Words, 2)
	assert.Equal(t, []int{1}, lines[1].Words[0].Columns)
	assert.Equal(t, []int{7}, lines[1].Words[1].Columns)
}

func TestDecodeErrors(t *testing.T) {
	cs := testCharset(t)

	_, err := Decode(onnx.Tensor{Data: make([]float32, 8), Shape: []int64{8}}, cs, false, nil, 0)
	require.ErrorIs(t, err, common.ErrInvalidShape)

	_, err = Decode(onnx.Tensor{Data: make([]float32, 5), Shape: []int64{1, 2, 3}}, cs, false, nil, 0)
	require.ErrorIs(t, err, common.ErrInvalidShape)

	out := oneHot([][]int{{1}}, cs.Len(), 0.9)
	_, err = Decode(out, cs, true, nil, 1)
	require.Error(t, err)
	_, err = Decode(out, cs, true, []float64{1}, 0)
	require.Error(t, err)
}

func TestDecodeSequenceProperties(t *testing.T) {
	cs := testCharset(t)
	properties := gopter.NewProperties(nil)

	properties.Property("kept glyphs are bounded, ordered and never adjacent duplicates", prop.ForAll(
		func(indices []int) bool {
			probs := make([]float32, len(indices))
			for i := range probs {
				probs[i] = 0.5
			}
			line := cs.DecodeSequence(indices, probs, true)

			var cols []int
			chars := 0
			for _, w := range line.Words {
				if len(w.Chars) == 0 || len(w.Chars) != len(w.Columns) || len(w.Columns) != len(w.Confidences) {
					return false
				}
				cols = append(cols, w.Columns...)
				chars += len(w.Chars)
			}
			if chars > len(indices) {
				return false
			}
			for k, c := range cols {
				if indices[c] == 0 {
					return false
				}
				if k > 0 && c <= cols[k-1] {
					return false
				}
				if c > 0 && indices[c] == indices[c-1] {
					return false
				}
			}
			if chars == 0 {
				return line.Confidence == 0 && line.Text == ""
			}
			return line.Confidence > 0.49 && line.Confidence < 0.51
		},
		gen.SliceOf(gen.IntRange(0, 9)),
	))

	properties.TestingRun(t)
}
