package jobs

import (
	"strconv"

	"github.com/owamns/clinmr/pkg/core"
	"github.com/owamns/clinmr/pkg/records"
)

const (
	AverageAge              = "average-age"
	PatientsByDepartmentSex = "patients-by-department-sex"
	ProceduresByAreaService = "procedures-by-area-service"
)

func init() {
	mustRegister(Definition{
		Name:        AverageAge,
		Description: "Mean patient age per diagnosis",
		Build: func(Params) (core.Job, error) {
			return core.Job{Stage: core.Stage{
				Name:   AverageAge,
				Map:    mapAgeByDiagnosis,
				Reduce: averageOf,
			}}, nil
		},
	})
	mustRegister(Definition{
		Name:        PatientsByDepartmentSex,
		Description: "Number of records per department and patient sex",
		Build: func(Params) (core.Job, error) {
			return core.Job{Stage: core.Stage{
				Name:    PatientsByDepartmentSex,
				Map:     mapDepartmentSex,
				Combine: sumCounts,
				Reduce:  sumCounts,
			}}, nil
		},
	})
	mustRegister(Definition{
		Name:        ProceduresByAreaService,
		Description: "Number of lab procedures per hospital area and service",
		Build: func(Params) (core.Job, error) {
			return core.Job{Stage: core.Stage{
				Name:    ProceduresByAreaService,
				Map:     mapProceduresByAreaService,
				Combine: sumCounts,
				Reduce:  sumCounts,
			}}, nil
		},
	})
}

func mapAgeByDiagnosis(_ int, line string) []core.KeyValue {
	r := records.Parse(line)
	if !r.Has(records.FieldDiagnosis) {
		return nil
	}
	age, ok := r.Int(records.FieldPatientAge)
	if !ok {
		return nil
	}
	return []core.KeyValue{{Key: r.Field(records.FieldDiagnosis), Value: strconv.Itoa(age)}}
}

func mapDepartmentSex(_ int, line string) []core.KeyValue {
	r := records.Parse(line)
	if !r.Has(records.FieldPatientSex) {
		return nil
	}
	key := core.CompositeKey(r.Field(records.FieldDepartment), r.Field(records.FieldPatientSex))
	return []core.KeyValue{{Key: key, Value: "1"}}
}

// mapProceduresByAreaService counts each non-empty procedure slot separately.
func mapProceduresByAreaService(_ int, line string) []core.KeyValue {
	r := records.Parse(line)
	if !r.Has(records.FieldHospitalService) {
		return nil
	}
	key := core.CompositeKey(r.Field(records.FieldHospitalArea), r.Field(records.FieldHospitalService))

	var kvs []core.KeyValue
	for _, slot := range records.Slots {
		if r.Field(slot.Procedure) != "" {
			kvs = append(kvs, core.KeyValue{Key: key, Value: "1"})
		}
	}
	return kvs
}
