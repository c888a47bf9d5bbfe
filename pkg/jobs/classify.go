package jobs

import (
	"strconv"

	"github.com/owamns/clinmr/pkg/core"
	"github.com/owamns/clinmr/pkg/records"
)

const (
	RiskClassification    = "risk-classification"
	ReadmissionPrediction = "readmission-prediction"
)

// Cardiovascular risk categories.
const (
	RiskCritical = "RIESGO_CRITICO"
	RiskHigh     = "RIESGO_ALTO"
	RiskModerate = "RIESGO_MODERADO"
	RiskLow      = "RIESGO_BAJO"
)

// Readmission prediction labels.
const (
	ReadmissionHigh = "ALTA_PROBABILIDAD_REINGRESO"
	ReadmissionLow  = "BAJA_PROBABILIDAD_REINGRESO"
)

// Default readmission model weights.
const (
	DefaultWeightAge     = 0.03
	DefaultWeightGlucose = 0.015
	DefaultThreshold     = 4.0
)

func init() {
	mustRegister(Definition{
		Name:        RiskClassification,
		Description: "Mean patient age per cardiovascular risk category derived from glucose and cholesterol",
		Build: func(Params) (core.Job, error) {
			return core.Job{Stage: core.Stage{
				Name:   RiskClassification,
				Map:    mapRiskCategory,
				Reduce: averageOf,
			}}, nil
		},
	})
	mustRegister(Definition{
		Name:        ReadmissionPrediction,
		Description: "Patients per readmission label from a linear age and glucose score",
		Params: []Param{
			{Name: ParamWeightAge, Description: "Weight of the patient age", Default: formatFloat(DefaultWeightAge)},
			{Name: ParamWeightGlucose, Description: "Weight of the glucose result", Default: formatFloat(DefaultWeightGlucose)},
			{Name: ParamThreshold, Description: "Scores above this are high probability", Default: formatFloat(DefaultThreshold)},
		},
		Build: buildReadmissionPrediction,
	})
}

// RiskCategory classifies a glucose and cholesterol pair, in mg/dL.
func RiskCategory(glucose, cholesterol float64) string {
	highGlucose := glucose >= 126
	borderlineGlucose := glucose >= 100 && glucose < 126
	highCholesterol := cholesterol >= 240
	borderlineCholesterol := cholesterol >= 200 && cholesterol < 240

	switch {
	case highGlucose && highCholesterol:
		return RiskCritical
	case highGlucose || highCholesterol:
		return RiskHigh
	case borderlineGlucose || borderlineCholesterol:
		return RiskModerate
	default:
		return RiskLow
	}
}

// labValues scans both slots in order; a later slot overrides an earlier one
// for the same analyte. A slot is checked for glucose before cholesterol.
func labValues(r records.Record) (glucose, cholesterol float64, ok bool) {
	for _, slot := range records.Slots {
		var target *float64
		switch {
		case r.IsProcedure(slot, records.MarkerGlucose):
			target = &glucose
		case r.IsProcedure(slot, records.MarkerCholesterol):
			target = &cholesterol
		default:
			continue
		}
		v, parsed := r.Float(slot.Result)
		if !parsed {
			return 0, 0, false
		}
		*target = v
	}
	return glucose, cholesterol, true
}

func mapRiskCategory(_ int, line string) []core.KeyValue {
	r := records.Parse(line)
	if !r.Has(records.FieldResult2) {
		return nil
	}
	age, ok := r.Int(records.FieldPatientAge)
	if !ok {
		return nil
	}
	glucose, cholesterol, ok := labValues(r)
	if !ok || glucose <= 0 || cholesterol <= 0 {
		return nil
	}
	return []core.KeyValue{{Key: RiskCategory(glucose, cholesterol), Value: strconv.Itoa(age)}}
}

// ReadmissionModel scores patients with a linear combination of age and
// glucose.
type ReadmissionModel struct {
	WeightAge     float64
	WeightGlucose float64
	Threshold     float64
}

func (m ReadmissionModel) Predict(age int, glucose float64) string {
	score := m.WeightAge*float64(age) + m.WeightGlucose*glucose
	if score > m.Threshold {
		return ReadmissionHigh
	}
	return ReadmissionLow
}

func buildReadmissionPrediction(params Params) (core.Job, error) {
	var model ReadmissionModel
	var err error
	if model.WeightAge, err = params.Float(ParamWeightAge, DefaultWeightAge); err != nil {
		return core.Job{}, err
	}
	if model.WeightGlucose, err = params.Float(ParamWeightGlucose, DefaultWeightGlucose); err != nil {
		return core.Job{}, err
	}
	if model.Threshold, err = params.Float(ParamThreshold, DefaultThreshold); err != nil {
		return core.Job{}, err
	}

	return core.Job{Stage: core.Stage{
		Name: ReadmissionPrediction,
		Map: func(_ int, line string) []core.KeyValue {
			r := records.Parse(line)
			if !r.Has(records.FieldResult2) {
				return nil
			}
			age, ok := r.Int(records.FieldPatientAge)
			if !ok {
				return nil
			}
			glucose, ok := r.FirstResult(records.MarkerGlucose)
			if !ok || glucose <= 0 {
				return nil
			}
			return []core.KeyValue{{Key: model.Predict(age, glucose), Value: "1"}}
		},
		Combine: sumCounts,
		Reduce:  sumCounts,
	}}, nil
}
