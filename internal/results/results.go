// Package results turns job part files into structured rows.
package results

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/owamns/clinmr/pkg/jobs"
	"github.com/owamns/clinmr/pkg/local"
	"github.com/owamns/clinmr/pkg/records"
)

// NormalizedColumn names the value appended by the normalization job.
const NormalizedColumn = "COLESTEROL_NORMALIZADO"

type Row map[string]any

// Page is a window over a run's parsed output.
type Page struct {
	Total     int   `json:"total"`
	Offset    int   `json:"offset"`
	Limit     int   `json:"limit"`
	Truncated bool  `json:"truncated"`
	Rows      []Row `json:"rows"`
}

// OutputFiles lists the part files of an output directory in name order.
func OutputFiles(dir string) ([]string, error) {
	return local.FindFiles(filepath.Join(dir, "part-*"))
}

// ReadOutput returns every line of every part file under dir.
func ReadOutput(dir string) ([]string, error) {
	files, err := OutputFiles(dir)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, file := range files {
		fileLines, err := local.ReadLines(file)
		if err != nil {
			return nil, err
		}
		for _, line := range fileLines {
			lines = append(lines, line.Text)
		}
	}
	return lines, nil
}

// CopyOutput streams the concatenated part files of dir to w.
func CopyOutput(w io.Writer, dir string) error {
	files, err := OutputFiles(dir)
	if err != nil {
		return err
	}
	for _, file := range files {
		if err := copyFile(w, file); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// Paginate returns lines[offset:offset+limit], clamped to the slice.
func Paginate(lines []string, offset, limit int) []string {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(lines) {
		return nil
	}
	end := len(lines)
	if limit > 0 {
		end = min(offset+limit, len(lines))
	}
	return lines[offset:end]
}

type parser func(line string) (Row, error)

var parsers = map[string]parser{
	jobs.AverageAge:               parseNumeric("diagnostico", "averageAge"),
	jobs.PatientsByDepartmentSex:  parseCompositeCount("departamento", "sexo"),
	jobs.ProceduresByAreaService:  parseCompositeCount("area", "servicio"),
	jobs.CholesterolStats:         parseDescription("metric"),
	jobs.SubstringSearch:          parseRecord,
	jobs.DateRangeSearch:          parseRecord,
	jobs.CholesterolMinMax:        parseDescription("departamento"),
	jobs.GlucoseAboveAverage:      parseDescription("departamento"),
	jobs.RiskClassification:       parseRisk,
	jobs.ReadmissionPrediction:    parseCount("key"),
	jobs.CholesterolNormalization: parseNormalized,
}

// Parse converts raw output lines of job into rows.
func Parse(job string, lines []string) ([]Row, error) {
	parse, ok := parsers[job]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jobs.ErrUnknownJob, job)
	}

	rows := make([]Row, 0, len(lines))
	for i, line := range lines {
		row, err := parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d of %s output: %w", i+1, job, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func splitPair(line string) (string, string, error) {
	key, value, found := strings.Cut(line, "\t")
	if !found {
		return "", "", fmt.Errorf("missing tab in %q", line)
	}
	return key, value, nil
}

func parseNumeric(keyName, valueName string) parser {
	return func(line string) (Row, error) {
		key, value, err := splitPair(line)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, err
		}
		return Row{keyName: key, valueName: v}, nil
	}
}

func parseCount(keyName string) parser {
	return func(line string) (Row, error) {
		key, value, err := splitPair(line)
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, err
		}
		return Row{keyName: key, "count": n}, nil
	}
}

func parseCompositeCount(first, second string) parser {
	count := parseCount("key")
	return func(line string) (Row, error) {
		row, err := count(line)
		if err != nil {
			return nil, err
		}
		a, b, _ := strings.Cut(row["key"].(string), records.Delimiter)
		return Row{first: a, second: b, "count": row["count"]}, nil
	}
}

func parseDescription(keyName string) parser {
	return func(line string) (Row, error) {
		key, value, err := splitPair(line)
		if err != nil {
			return nil, err
		}
		return Row{keyName: key, "description": strings.TrimSpace(value)}, nil
	}
}

// parseRisk falls back to the raw text when the average is not numeric.
func parseRisk(line string) (Row, error) {
	key, value, err := splitPair(line)
	if err != nil {
		return nil, err
	}
	if avg, err := strconv.ParseFloat(value, 64); err == nil {
		return Row{"category": key, "avgAge": avg}, nil
	}
	return Row{"category": key, "description": value}, nil
}

func parseRecord(line string) (Row, error) {
	cols := records.Parse(line)
	row := make(Row, records.NumFields)
	for i := 0; i < len(cols) && i < records.NumFields; i++ {
		row[records.Headers[i]] = cols[i]
	}
	return row, nil
}

func parseNormalized(line string) (Row, error) {
	row, _ := parseRecord(line)
	cols := records.Parse(line)
	if len(cols) > records.NumFields {
		row[NormalizedColumn] = cols[len(cols)-1]
	}
	return row, nil
}
