package results

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owamns/clinmr/pkg/jobs"
	"github.com/owamns/clinmr/pkg/records"
)

func writeParts(t *testing.T, parts map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range parts {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestReadOutput(t *testing.T) {
	dir := writeParts(t, map[string]string{
		"part-0001.txt": "b\t2\n",
		"part-0000.txt": "a\t1\nc\t3\n",
		"_SUCCESS":      "",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "_broadcast"), 0o755))

	lines, err := ReadOutput(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"a\t1", "c\t3", "b\t2"}, lines)

	var buf bytes.Buffer
	require.NoError(t, CopyOutput(&buf, dir))
	require.Equal(t, "a\t1\nc\t3\nb\t2\n", buf.String())
}

func TestReadOutput_EmptyDir(t *testing.T) {
	lines, err := ReadOutput(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestPaginate(t *testing.T) {
	lines := []string{"a", "b", "c", "d"}
	assert.Equal(t, []string{"b", "c"}, Paginate(lines, 1, 2))
	assert.Equal(t, []string{"c", "d"}, Paginate(lines, 2, 10))
	assert.Equal(t, lines, Paginate(lines, 0, 0))
	assert.Equal(t, lines, Paginate(lines, -3, 0))
	assert.Empty(t, Paginate(lines, 4, 1))
}

func TestParse(t *testing.T) {
	tests := []struct {
		job  string
		line string
		want Row
	}{
		{jobs.AverageAge, "DIABETES\t55.5", Row{"diagnostico": "DIABETES", "averageAge": 55.5}},
		{jobs.PatientsByDepartmentSex, "LIMA;F\t12", Row{"departamento": "LIMA", "sexo": "F", "count": int64(12)}},
		{jobs.ProceduresByAreaService, "CONSULTA;ENDOCRINOLOGIA\t3", Row{"area": "CONSULTA", "servicio": "ENDOCRINOLOGIA", "count": int64(3)}},
		{jobs.CholesterolStats, "COLESTEROL_RESULTADO_1\tPromedio: 20.00, Mediana: 20.00, Desv. Estandar: 8.16, Registros: 3",
			Row{"metric": "COLESTEROL_RESULTADO_1", "description": "Promedio: 20.00, Mediana: 20.00, Desv. Estandar: 8.16, Registros: 3"}},
		{jobs.CholesterolMinMax, "LIMA\tMin: 1, Max: 9", Row{"departamento": "LIMA", "description": "Min: 1, Max: 9"}},
		{jobs.GlucoseAboveAverage, "LIMA\tPromedio: 190.00 (Superior al nacional de 150.00)",
			Row{"departamento": "LIMA", "description": "Promedio: 190.00 (Superior al nacional de 150.00)"}},
		{jobs.RiskClassification, "RIESGO_ALTO\t47.25", Row{"category": "RIESGO_ALTO", "avgAge": 47.25}},
		{jobs.RiskClassification, "RIESGO_ALTO\tn/a", Row{"category": "RIESGO_ALTO", "description": "n/a"}},
		{jobs.ReadmissionPrediction, "ALTA_PROBABILIDAD_REINGRESO\t7", Row{"key": "ALTA_PROBABILIDAD_REINGRESO", "count": int64(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.job, func(t *testing.T) {
			rows, err := Parse(tt.job, []string{tt.line})
			require.NoError(t, err)
			require.Equal(t, []Row{tt.want}, rows)
		})
	}
}

func TestParse_Records(t *testing.T) {
	line := records.Format(map[int]string{records.FieldDepartment: "LIMA", records.FieldResult1: "150"})

	rows, err := Parse(jobs.SubstringSearch, []string{line})
	require.NoError(t, err)
	require.Len(t, rows[0], records.NumFields)
	assert.Equal(t, "LIMA", rows[0]["DEPARTAMENTO"])
	assert.Equal(t, "150", rows[0]["RESULTADO_1"])

	rows, err = Parse(jobs.CholesterolNormalization, []string{line + ";0.5000", line + ";"})
	require.NoError(t, err)
	assert.Equal(t, "0.5000", rows[0][NormalizedColumn])
	assert.Equal(t, "", rows[1][NormalizedColumn])
	assert.Equal(t, "LIMA", rows[1]["DEPARTAMENTO"])
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("nope", nil)
	require.ErrorIs(t, err, jobs.ErrUnknownJob)

	_, err = Parse(jobs.AverageAge, []string{"no tab here"})
	require.ErrorContains(t, err, "line 1")

	_, err = Parse(jobs.PatientsByDepartmentSex, []string{"LIMA;F\tmany"})
	require.Error(t, err)
}

func TestParse_CoversCatalogue(t *testing.T) {
	for _, def := range jobs.List() {
		_, ok := parsers[def.Name]
		assert.True(t, ok, "no parser for %s", def.Name)
	}
}
