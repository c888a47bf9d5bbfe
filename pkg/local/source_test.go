package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLines(t *testing.T) {
	lines := []string{"h", "a", "b", "c", "d", "e", "f"}

	tests := []struct {
		name  string
		n     int
		sizes []int
	}{
		{name: "single", n: 1, sizes: []int{7}},
		{name: "even", n: 2, sizes: []int{4, 3}},
		{name: "three", n: 3, sizes: []int{3, 3, 1}},
		{name: "more splits than lines", n: 20, sizes: []int{1, 1, 1, 1, 1, 1, 1}},
		{name: "non-positive", n: 0, sizes: []int{7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			splits := SplitLines(lines, tt.n)
			require.Len(t, splits, len(tt.sizes))

			next := 0
			for i, split := range splits {
				assert.Equal(t, i, split.ID)
				assert.Equal(t, next, split.Start)
				assert.Len(t, split.Lines, tt.sizes[i])
				for j, line := range split.Lines {
					assert.Equal(t, lines[split.Index(j)], line)
				}
				next += len(split.Lines)
			}
			assert.Equal(t, len(lines), next)
		})
	}
}

func TestSplitLines_Empty(t *testing.T) {
	require.Empty(t, SplitLines(nil, 4))
}

func TestSplitInput_GlobalIndexAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("header\nr1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("r2\nr3\n"), 0o644))

	splits, err := SplitInput(filepath.Join(dir, "*.csv"), 2)
	require.NoError(t, err)
	require.Len(t, splits, 2)
	require.Equal(t, []string{"header", "r1"}, splits[0].Lines)
	require.Equal(t, []string{"r2", "r3"}, splits[1].Lines)
	require.Equal(t, 2, splits[1].Index(0))
}

func TestSplitInput_NoMatch(t *testing.T) {
	_, err := SplitInput(filepath.Join(t.TempDir(), "*.csv"), 2)
	require.ErrorContains(t, err, "no files matched")
}
