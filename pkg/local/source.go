package local

import (
	"fmt"
)

// Split is a contiguous range of dataset lines handled by one map task.
// Start is the global index of the first line.
type Split struct {
	ID    int
	Start int
	Lines []string
}

// Index returns the global line index of the i-th line of the split.
func (s Split) Index(i int) int {
	return s.Start + i
}

// SplitInput reads every file matched by pattern, in lexical order, as one
// logical dataset and cuts it into at most n contiguous splits. Line indices
// are global across files, so only the very first line of the first file is
// index 0.
func SplitInput(pattern string, n int) ([]Split, error) {
	files, err := FindFiles(pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files matched the input pattern: %s", pattern)
	}

	var lines []string
	for _, file := range files {
		fileLines, err := ReadLines(file)
		if err != nil {
			return nil, err
		}
		for _, line := range fileLines {
			lines = append(lines, line.Text)
		}
	}

	return SplitLines(lines, n), nil
}

// SplitLines cuts lines into at most n contiguous, non-empty splits of
// near-equal size.
func SplitLines(lines []string, n int) []Split {
	if n <= 0 {
		n = 1
	}
	if len(lines) == 0 {
		return nil
	}
	if n > len(lines) {
		n = len(lines)
	}

	size := (len(lines) + n - 1) / n
	splits := make([]Split, 0, n)
	for start := 0; start < len(lines); start += size {
		end := min(start+size, len(lines))
		splits = append(splits, Split{
			ID:    len(splits),
			Start: start,
			Lines: lines[start:end],
		})
	}
	return splits
}
