package jobs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/owamns/clinmr/pkg/core"
)

// formatFloat renders v with the fewest digits that round-trip.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloats(values []string) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}

// sumCounts adds integer counts. It serves as both combiner and reducer.
func sumCounts(key string, values []string) (core.KeyValue, bool) {
	total := 0
	for _, value := range values {
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		total += n
	}
	return core.KeyValue{Key: key, Value: strconv.Itoa(total)}, true
}

// averageOf reduces numeric values to their arithmetic mean.
func averageOf(key string, values []string) (core.KeyValue, bool) {
	nums := parseFloats(values)
	if len(nums) == 0 {
		return core.KeyValue{}, false
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return core.KeyValue{Key: key, Value: formatFloat(sum / float64(len(nums)))}, true
}

// partialMean is a running sum and count, framed as "sum,count".
type partialMean struct {
	Sum   float64
	Count int64
}

func (m partialMean) String() string {
	return formatFloat(m.Sum) + "," + strconv.FormatInt(m.Count, 10)
}

func (m partialMean) Mean() float64 {
	return m.Sum / float64(m.Count)
}

func parsePartialMean(value string) (partialMean, error) {
	rawSum, rawCount, found := strings.Cut(value, ",")
	if !found {
		return partialMean{}, fmt.Errorf("malformed partial mean %q", value)
	}
	sum, err := strconv.ParseFloat(rawSum, 64)
	if err != nil {
		return partialMean{}, err
	}
	count, err := strconv.ParseInt(rawCount, 10, 64)
	if err != nil {
		return partialMean{}, err
	}
	return partialMean{Sum: sum, Count: count}, nil
}

func mergePartialMeans(values []string) partialMean {
	var total partialMean
	for _, value := range values {
		m, err := parsePartialMean(value)
		if err != nil {
			continue
		}
		total.Sum += m.Sum
		total.Count += m.Count
	}
	return total
}

// combinePartialMeans folds "sum,count" values into one, dropping empty groups.
func combinePartialMeans(key string, values []string) (core.KeyValue, bool) {
	total := mergePartialMeans(values)
	if total.Count == 0 {
		return core.KeyValue{}, false
	}
	return core.KeyValue{Key: key, Value: total.String()}, true
}

// valueRange is a closed [Min, Max] interval framed as "min;max".
type valueRange struct {
	Min float64
	Max float64
}

func (r valueRange) String() string {
	return formatFloat(r.Min) + ";" + formatFloat(r.Max)
}

func parseValueRange(value string) (valueRange, error) {
	rawMin, rawMax, found := strings.Cut(value, ";")
	if !found {
		return valueRange{}, fmt.Errorf("malformed range %q", value)
	}
	lo, err := strconv.ParseFloat(rawMin, 64)
	if err != nil {
		return valueRange{}, err
	}
	hi, err := strconv.ParseFloat(rawMax, 64)
	if err != nil {
		return valueRange{}, err
	}
	if lo > hi {
		return valueRange{}, fmt.Errorf("range %q has min above max", value)
	}
	return valueRange{Min: lo, Max: hi}, nil
}

// rangeOf returns the extremes of nums, starting from the first value.
func rangeOf(nums []float64) (valueRange, bool) {
	if len(nums) == 0 {
		return valueRange{}, false
	}
	r := valueRange{Min: nums[0], Max: nums[0]}
	for _, n := range nums[1:] {
		r.Min = min(r.Min, n)
		r.Max = max(r.Max, n)
	}
	return r, true
}
