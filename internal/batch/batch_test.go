package batch

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/rapidocr-go/internal/testutil"
)

func TestByAspectRatio(t *testing.T) {
	sizes := []image.Point{
		{X: 100, Y: 10}, // 10
		{X: 20, Y: 10},  // 2
		{X: 50, Y: 10},  // 5
		{X: 40, Y: 20},  // 2, ties keep input order
		{X: 0, Y: 10},   // 0
	}
	groups := ByAspectRatio(sizes, 2)
	require.Len(t, groups, 3)
	assert.Equal(t, []int{4, 1}, groups[0].Indices)
	assert.Equal(t, []int{3, 2}, groups[1].Indices)
	assert.Equal(t, []int{0}, groups[2].Indices)
	assert.Equal(t, []float64{2, 5}, groups[1].Ratios)

	assert.InDelta(t, 320.0/48, groups[0].MaxRatio(320.0/48), 1e-12)
	assert.InDelta(t, 10.0, groups[2].MaxRatio(320.0/48), 1e-12)
}

func TestByAspectRatioEdgeCases(t *testing.T) {
	assert.Nil(t, ByAspectRatio(nil, 6))

	groups := ByAspectRatio([]image.Point{{X: 1, Y: 1}, {X: 2, Y: 1}}, 0)
	assert.Len(t, groups, 2, "non-positive size falls back to one per batch")
}

func TestByAspectRatioCoversEveryIndexOnce(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("each index appears exactly once and ratios ascend", prop.ForAll(
		func(widths []int, size int) bool {
			sizes := make([]image.Point, len(widths))
			for i, w := range widths {
				sizes[i] = image.Point{X: w, Y: 16}
			}
			seen := make(map[int]bool, len(sizes))
			last := -1.0
			for _, g := range ByAspectRatio(sizes, size) {
				if len(g.Indices) > size {
					return false
				}
				for k, idx := range g.Indices {
					if seen[idx] || g.Ratios[k] < last {
						return false
					}
					seen[idx] = true
					last = g.Ratios[k]
				}
			}
			return len(seen) == len(sizes)
		},
		gen.SliceOf(gen.IntRange(1, 500)),
		gen.IntRange(1, 8),
	))
	properties.TestingRun(t)
}

func TestSizes(t *testing.T) {
	imgs := []image.Image{image.NewGray(image.Rect(0, 0, 3, 4)), nil}
	assert.Equal(t, []image.Point{{X: 3, Y: 4}, {}}, Sizes(imgs))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, "b.png", "a.jpg", "notes.txt", "sub/c.png", "skip_me.png")

	t.Run("directory uses supported extensions", func(t *testing.T) {
		files, err := Discover([]string{dir}, DiscoverOptions{Exclude: []string{"skip_*"}})
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.png")}, files)
	})

	t.Run("recursive", func(t *testing.T) {
		files, err := Discover([]string{dir}, DiscoverOptions{Recursive: true, Include: []string{"*.png"}})
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(dir, "b.png"),
			filepath.Join(dir, "skip_me.png"),
			filepath.Join(dir, "sub", "c.png"),
		}, files)
	})

	t.Run("explicit file", func(t *testing.T) {
		files, err := Discover([]string{filepath.Join(dir, "notes.txt")}, DiscoverOptions{})
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := Discover([]string{filepath.Join(dir, "missing")}, DiscoverOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot access")
	})
}

func TestMatchesAnyPattern(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		patterns []string
		want     bool
	}{
		{"empty", "test.png", nil, false},
		{"extension", "dir/test.png", []string{"*.png"}, true},
		{"case sensitive", "test.PNG", []string{"*.png"}, false},
		{"prefix", "test.png", []string{"*.jpg", "test.*"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesAnyPattern(tt.path, tt.patterns))
		})
	}
}
