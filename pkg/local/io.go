package local

import (
	"bufio"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/owamns/clinmr/pkg/core"
)

const (
	DefaultBufferSize = 1024 * 1024 // 1MB
)

type Line struct {
	Filename string
	Number   int
	Text     string
}

// FindFiles expands a doublestar pattern into the regular files it matches,
// in lexical order.
func FindFiles(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, name := range matches {
		info, err := os.Lstat(name)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			files = append(files, name)
		}
	}
	slices.Sort(files)
	return files, nil
}

func ReadLines(filePath string, bufferSize ...int) ([]Line, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if len(bufferSize) == 0 {
		bufferSize = []int{DefaultBufferSize}
	}
	buffer := make([]byte, bufferSize[0])

	scanner := bufio.NewScanner(file)
	scanner.Buffer(buffer, bufferSize[0])

	var lines []Line
	for i := 1; scanner.Scan(); i++ {
		lines = append(lines, Line{
			Filename: filePath,
			Number:   i,
			Text:     scanner.Text(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// WriteLines writes each line followed by a newline.
func WriteLines(filePath string, lines iter.Seq[string]) (err error) {
	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(file)
	for line := range lines {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadRecords reads a tab-separated key/value file. Values may contain tabs;
// the key ends at the first one.
func ReadRecords(filePath string) ([]core.KeyValue, error) {
	lines, err := ReadLines(filePath)
	if err != nil {
		return nil, err
	}

	records := make([]core.KeyValue, 0, len(lines))
	for _, line := range lines {
		key, value, found := strings.Cut(line.Text, "\t")
		if !found {
			return nil, fmt.Errorf("malformed record at %s:%d", line.Filename, line.Number)
		}
		records = append(records, core.KeyValue{Key: key, Value: value})
	}
	return records, nil
}

func WriteRecords(filePath string, records iter.Seq[core.KeyValue]) error {
	return WriteLines(filePath, func(yield func(string) bool) {
		for kv := range records {
			if !yield(kv.Key + "\t" + kv.Value) {
				return
			}
		}
	})
}

func PartFilename(part int) string {
	return fmt.Sprintf("part-%04d.txt", part)
}

func MapOnlyPartFilename(part int) string {
	return fmt.Sprintf("part-m-%04d.txt", part)
}

// WritePartitions writes one part file per partition into dir.
func WritePartitions(dir string, partitions map[int][]core.KeyValue) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for part, records := range partitions {
		path := filepath.Join(dir, PartFilename(part))
		if err := WriteRecords(path, slices.Values(records)); err != nil {
			return err
		}
	}
	return nil
}

// ReadTable loads every part file in dir into a single lookup table.
func ReadTable(dir string) (core.Table, error) {
	files, err := FindFiles(filepath.Join(dir, "part-*"))
	if err != nil {
		return nil, err
	}

	table := make(core.Table)
	for _, file := range files {
		records, err := ReadRecords(file)
		if err != nil {
			return nil, err
		}
		for _, kv := range records {
			table[kv.Key] = kv.Value
		}
	}
	return table, nil
}
