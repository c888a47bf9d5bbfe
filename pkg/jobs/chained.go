package jobs

import (
	"fmt"
	"strconv"

	"github.com/owamns/clinmr/pkg/core"
	"github.com/owamns/clinmr/pkg/records"
)

const (
	GlucoseAboveAverage      = "glucose-above-average"
	CholesterolNormalization = "cholesterol-normalization"
)

// GlobalKey holds the national mean in the first stage of the glucose job.
const GlobalKey = "GLOBAL"

func init() {
	mustRegister(Definition{
		Name:        GlucoseAboveAverage,
		Description: "Departments whose mean glucose is above the national mean",
		Chained:     true,
		Build: func(Params) (core.Job, error) {
			return core.Job{
				Stage: core.Stage{
					Name:    "glucose-national-mean",
					Map:     mapGlucoseTo(func(records.Record) string { return GlobalKey }),
					Combine: combinePartialMeans,
					Reduce:  reduceMean,
				},
				Then: departmentsAboveMean,
			}, nil
		},
	})
	mustRegister(Definition{
		Name:        CholesterolNormalization,
		Description: "Every record with its cholesterol result min-max normalized within its province",
		Chained:     true,
		MapOnly:     true,
		Build: func(Params) (core.Job, error) {
			return core.Job{
				Stage: core.Stage{
					Name:    "cholesterol-province-range",
					Map:     mapCholesterolByProvince,
					Combine: reduceRanges,
					Reduce:  reduceRanges,
				},
				Then: normalizeByProvince,
			}, nil
		},
	})
}

// mapGlucoseTo emits a positive glucose reading as a "value,1" partial mean
// under the key chosen by keyOf. Rows with an empty key are skipped.
func mapGlucoseTo(keyOf func(records.Record) string) core.MapFunc {
	return func(_ int, line string) []core.KeyValue {
		r := records.Parse(line)
		if !r.Has(records.FieldResult2) {
			return nil
		}
		glucose, ok := r.FirstResult(records.MarkerGlucose)
		if !ok || glucose <= 0 {
			return nil
		}
		key := keyOf(r)
		if key == "" {
			return nil
		}
		return []core.KeyValue{{Key: key, Value: partialMean{Sum: glucose, Count: 1}.String()}}
	}
}

func reduceMean(key string, values []string) (core.KeyValue, bool) {
	total := mergePartialMeans(values)
	if total.Count == 0 {
		return core.KeyValue{}, false
	}
	return core.KeyValue{Key: key, Value: formatFloat(total.Mean())}, true
}

func departmentsAboveMean(table core.Table) (core.Stage, error) {
	raw, ok := table[GlobalKey]
	if !ok {
		return core.Stage{}, fmt.Errorf("%w: no %s mean", core.ErrMissingDependency, GlobalKey)
	}
	national, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return core.Stage{}, fmt.Errorf("%w: national mean %q: %v", core.ErrMissingDependency, raw, err)
	}

	return core.Stage{
		Name: "glucose-department-filter",
		Map: mapGlucoseTo(func(r records.Record) string {
			return r.Field(records.FieldDepartment)
		}),
		Combine: combinePartialMeans,
		Reduce: func(key string, values []string) (core.KeyValue, bool) {
			total := mergePartialMeans(values)
			if total.Count == 0 || total.Mean() <= national {
				return core.KeyValue{}, false
			}
			value := fmt.Sprintf("Promedio: %.2f (Superior al nacional de %.2f)", total.Mean(), national)
			return core.KeyValue{Key: key, Value: value}, true
		},
	}, nil
}

func mapCholesterolByProvince(_ int, line string) []core.KeyValue {
	r := records.Parse(line)
	province := r.Field(records.FieldProvince)
	cholesterol, ok := r.FirstResult(records.MarkerCholesterol)
	if !ok || cholesterol <= 0 || province == "" {
		return nil
	}
	return []core.KeyValue{{Key: province, Value: valueRange{Min: cholesterol, Max: cholesterol}.String()}}
}

// reduceRanges merges "min;max" intervals. Map values are degenerate
// intervals, so the same function combines and reduces.
func reduceRanges(key string, values []string) (core.KeyValue, bool) {
	var merged valueRange
	seen := false
	for _, value := range values {
		r, err := parseValueRange(value)
		if err != nil {
			continue
		}
		if !seen {
			merged, seen = r, true
			continue
		}
		merged.Min = min(merged.Min, r.Min)
		merged.Max = max(merged.Max, r.Max)
	}
	if !seen {
		return core.KeyValue{}, false
	}
	return core.KeyValue{Key: key, Value: merged.String()}, true
}

// normalize maps v into [0, 1] relative to r, or 0 when the range is empty.
func normalize(v float64, r valueRange) float64 {
	if r.Max == r.Min {
		return 0
	}
	return (v - r.Min) / (r.Max - r.Min)
}

func normalizeByProvince(table core.Table) (core.Stage, error) {
	ranges := make(map[string]valueRange, len(table))
	for province, raw := range table {
		r, err := parseValueRange(raw)
		if err != nil {
			return core.Stage{}, fmt.Errorf("%w: province %s: %v", core.ErrMissingDependency, province, err)
		}
		ranges[province] = r
	}

	return core.Stage{
		Name: "cholesterol-normalize",
		Map: func(_ int, line string) []core.KeyValue {
			r := records.Parse(line)
			if bounds, ok := ranges[r.Field(records.FieldProvince)]; ok {
				cholesterol, found := r.FirstResult(records.MarkerCholesterol)
				if found && cholesterol > 0 {
					normalized := strconv.FormatFloat(normalize(cholesterol, bounds), 'f', 4, 64)
					return []core.KeyValue{{Value: line + records.Delimiter + normalized}}
				}
			}
			return []core.KeyValue{{Value: line + records.Delimiter}}
		},
	}, nil
}
