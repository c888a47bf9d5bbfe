package jobs

import (
	"github.com/owamns/clinmr/pkg/core"
	"github.com/owamns/clinmr/pkg/records"
)

const CholesterolMinMax = "cholesterol-min-max"

func init() {
	mustRegister(Definition{
		Name:        CholesterolMinMax,
		Description: "Lowest and highest first lab result per department",
		Build: func(Params) (core.Job, error) {
			return core.Job{Stage: core.Stage{
				Name:   CholesterolMinMax,
				Map:    mapFirstResultByDepartment,
				Reduce: reduceMinMax,
			}}, nil
		},
	})
}

// mapFirstResultByDepartment reads the first result slot whatever its
// procedure is.
func mapFirstResultByDepartment(_ int, line string) []core.KeyValue {
	r := records.Parse(line)
	v, ok := r.Float(records.FieldResult1)
	if !ok {
		return nil
	}
	return []core.KeyValue{{Key: r.Field(records.FieldDepartment), Value: formatFloat(v)}}
}

func reduceMinMax(key string, values []string) (core.KeyValue, bool) {
	r, ok := rangeOf(parseFloats(values))
	if !ok {
		return core.KeyValue{}, false
	}
	return core.KeyValue{Key: key, Value: "Min: " + formatFloat(r.Min) + ", Max: " + formatFloat(r.Max)}, true
}
