package jobs

import (
	"fmt"
	"math"
	"slices"

	"github.com/owamns/clinmr/pkg/core"
	"github.com/owamns/clinmr/pkg/records"
)

const CholesterolStats = "cholesterol-stats"

// CholesterolStatsKey is the single output key of the statistics job.
const CholesterolStatsKey = "COLESTEROL_RESULTADO_1"

func init() {
	mustRegister(Definition{
		Name:        CholesterolStats,
		Description: "Mean, median and population standard deviation of cholesterol results",
		Build: func(Params) (core.Job, error) {
			// The median needs every value, so there is no combiner.
			return core.Job{Stage: core.Stage{
				Name:   CholesterolStats,
				Map:    mapCholesterol,
				Reduce: reduceDescriptiveStats,
			}}, nil
		},
	})
}

func mapCholesterol(_ int, line string) []core.KeyValue {
	r := records.Parse(line)
	v, ok := r.FirstResult(records.MarkerCholesterol)
	if !ok {
		return nil
	}
	return []core.KeyValue{{Key: CholesterolStatsKey, Value: formatFloat(v)}}
}

// Summary holds the descriptive statistics of one group.
type Summary struct {
	Mean   float64
	Median float64
	StdDev float64
	Count  int
}

// Describe computes mean, median and population standard deviation. It
// reports false for an empty group.
func Describe(values []float64) (Summary, bool) {
	n := len(values)
	if n == 0 {
		return Summary{}, false
	}

	var sum, sumSq float64
	for _, v := range values {
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	// Rounding can push the variance slightly below zero for constant groups.
	variance := max(sumSq/float64(n)-mean*mean, 0)

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return Summary{Mean: mean, Median: median, StdDev: math.Sqrt(variance), Count: n}, true
}

func (s Summary) String() string {
	return fmt.Sprintf("Promedio: %.2f, Mediana: %.2f, Desv. Estandar: %.2f, Registros: %d",
		s.Mean, s.Median, s.StdDev, s.Count)
}

func reduceDescriptiveStats(key string, values []string) (core.KeyValue, bool) {
	summary, ok := Describe(parseFloats(values))
	if !ok {
		return core.KeyValue{}, false
	}
	return core.KeyValue{Key: key, Value: summary.String()}, true
}
