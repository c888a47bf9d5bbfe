package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owamns/clinmr/pkg/records"
)

func TestRiskCategory(t *testing.T) {
	tests := []struct {
		glucose     float64
		cholesterol float64
		want        string
	}{
		{glucose: 130, cholesterol: 250, want: RiskCritical},
		{glucose: 126, cholesterol: 240, want: RiskCritical},
		{glucose: 130, cholesterol: 150, want: RiskHigh},
		{glucose: 90, cholesterol: 260, want: RiskHigh},
		{glucose: 110, cholesterol: 150, want: RiskModerate},
		{glucose: 90, cholesterol: 200, want: RiskModerate},
		{glucose: 90, cholesterol: 150, want: RiskLow},
		{glucose: 99.9, cholesterol: 199.9, want: RiskLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskCategory(tt.glucose, tt.cholesterol), "glucose=%v cholesterol=%v", tt.glucose, tt.cholesterol)
	}
}

func TestLabValues(t *testing.T) {
	tests := []struct {
		name        string
		row         rowSpec
		glucose     float64
		cholesterol float64
		ok          bool
	}{
		{
			name:    "one per slot",
			row:     rowSpec{proc1: "DOSAJE DE GLUCOSA", result1: "130", proc2: "COLESTEROL TOTAL", result2: "250"},
			glucose: 130, cholesterol: 250, ok: true,
		},
		{
			name:    "reversed slots",
			row:     rowSpec{proc1: "COLESTEROL TOTAL", result1: "250", proc2: "GLUCOSA", result2: "130"},
			glucose: 130, cholesterol: 250, ok: true,
		},
		{
			name:    "glucose wins when both markers appear",
			row:     rowSpec{proc1: "GLUCOSA Y COLESTEROL", result1: "140", proc2: "COLESTEROL", result2: "210"},
			glucose: 140, cholesterol: 210, ok: true,
		},
		{
			name:    "second slot overrides first",
			row:     rowSpec{proc1: "GLUCOSA BASAL", result1: "90", proc2: "GLUCOSA POSTPRANDIAL", result2: "160"},
			glucose: 160, ok: true,
		},
		{
			name: "unparsable matching result",
			row:  rowSpec{proc1: "GLUCOSA", result1: "x", proc2: "COLESTEROL", result2: "210"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			glucose, cholesterol, ok := labValues(records.Parse(tt.row.line()))
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.glucose, glucose)
				assert.Equal(t, tt.cholesterol, cholesterol)
			}
		})
	}
}

func TestRiskClassification(t *testing.T) {
	rows := []rowSpec{
		{age: "60", proc1: "GLUCOSA", result1: "130", proc2: "COLESTEROL", result2: "250"},
		{age: "70", proc1: "GLUCOSA", result1: "140", proc2: "COLESTEROL", result2: "300"},
		{age: "40", proc1: "GLUCOSA", result1: "130", proc2: "COLESTEROL", result2: "150"},
		{age: "35", proc1: "GLUCOSA", result1: "110", proc2: "COLESTEROL", result2: "150"},
		{age: "20", proc1: "GLUCOSA", result1: "90", proc2: "COLESTEROL", result2: "150"},
		{age: "50", proc1: "GLUCOSA", result1: "90"},
		{age: "", proc1: "GLUCOSA", result1: "200", proc2: "COLESTEROL", result2: "300"},
	}

	out := mustRun(t, mustBuild(t, RiskClassification, nil), rows)
	require.Equal(t, []string{
		"RIESGO_ALTO\t40",
		"RIESGO_BAJO\t20",
		"RIESGO_CRITICO\t65",
		"RIESGO_MODERADO\t35",
	}, out)
}

func TestReadmissionModel_Predict(t *testing.T) {
	model := ReadmissionModel{WeightAge: DefaultWeightAge, WeightGlucose: DefaultWeightGlucose, Threshold: DefaultThreshold}
	assert.Equal(t, ReadmissionHigh, model.Predict(60, 200))
	assert.Equal(t, ReadmissionLow, model.Predict(30, 100))

	// The threshold itself is not above the threshold.
	exact := ReadmissionModel{WeightAge: 1, WeightGlucose: 0, Threshold: 50}
	assert.Equal(t, ReadmissionLow, exact.Predict(50, 1))
}

func TestReadmissionPrediction(t *testing.T) {
	rows := []rowSpec{
		{age: "60", proc1: "GLUCOSA", result1: "200"},
		{age: "80", proc2: "GLUCOSA", result2: "150"},
		{age: "30", proc1: "GLUCOSA", result1: "100"},
		{age: "30", proc1: "GLUCOSA", result1: "0"},
		{age: "30", proc1: "COLESTEROL", result1: "400"},
	}

	out := mustRun(t, mustBuild(t, ReadmissionPrediction, nil), rows)
	require.Equal(t, []string{
		"ALTA_PROBABILIDAD_REINGRESO\t2",
		"BAJA_PROBABILIDAD_REINGRESO\t1",
	}, out)

	strict := mustBuild(t, ReadmissionPrediction, Params{ParamThreshold: "10"})
	out = mustRun(t, strict, rows)
	require.Equal(t, []string{"BAJA_PROBABILIDAD_REINGRESO\t3"}, out)
}
