package jobs

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/owamns/clinmr/pkg/core"
	"github.com/owamns/clinmr/pkg/local"
	"github.com/owamns/clinmr/pkg/records"
)

type rowSpec struct {
	department string
	province   string
	age        string
	sex        string
	diagnosis  string
	area       string
	service    string
	date       string
	proc1      string
	result1    string
	proc2      string
	result2    string
}

func (s rowSpec) line() string {
	return records.Format(map[int]string{
		records.FieldDepartment:      s.department,
		records.FieldProvince:        s.province,
		records.FieldPatientAge:      s.age,
		records.FieldPatientSex:      s.sex,
		records.FieldDiagnosis:       s.diagnosis,
		records.FieldHospitalArea:    s.area,
		records.FieldHospitalService: s.service,
		records.FieldSampleDate:      s.date,
		records.FieldProcedure1:      s.proc1,
		records.FieldResult1:         s.result1,
		records.FieldProcedure2:      s.proc2,
		records.FieldResult2:         s.result2,
	})
}

func mustBuild(t *testing.T, name string, params Params) core.Job {
	t.Helper()
	job, err := Build(name, params)
	require.NoError(t, err)
	return job
}

// runJob executes job over a dataset made of the header followed by rows and
// returns the sorted output lines.
func runJob(t *testing.T, job core.Job, rows []rowSpec, mappers, reducers int) ([]string, error) {
	t.Helper()
	tmpDir := t.TempDir()

	lines := []string{records.HeaderLine()}
	for _, row := range rows {
		lines = append(lines, row.line())
	}
	input := filepath.Join(tmpDir, "datos.csv")
	require.NoError(t, os.WriteFile(input, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	output := filepath.Join(tmpDir, "output")
	engine := local.NewEngine(local.Config{
		Job:         job,
		Input:       input,
		Output:      output,
		NumMappers:  mappers,
		NumReducers: reducers,
	})
	if _, err := engine.Run(context.Background()); err != nil {
		return nil, err
	}

	files, err := local.FindFiles(filepath.Join(output, "part-*"))
	require.NoError(t, err)
	var out []string
	for _, file := range files {
		fileLines, err := local.ReadLines(file)
		require.NoError(t, err)
		for _, line := range fileLines {
			out = append(out, line.Text)
		}
	}
	slices.Sort(out)
	return out, nil
}

func mustRun(t *testing.T, job core.Job, rows []rowSpec) []string {
	t.Helper()
	out, err := runJob(t, job, rows, 3, 2)
	require.NoError(t, err)
	return out
}
