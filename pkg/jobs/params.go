package jobs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	ParamTerm          = "term"
	ParamStart         = "start"
	ParamEnd           = "end"
	ParamWeightAge     = "weight-age"
	ParamWeightGlucose = "weight-glucose"
	ParamThreshold     = "threshold"
)

// Params are the string-valued arguments of a job run.
type Params map[string]string

func (p Params) Get(name string) string {
	return strings.TrimSpace(p[name])
}

func (p Params) Int(name string) (int, error) {
	raw := p.Get(name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidParams, name, raw)
	}
	return v, nil
}

// Float parses name as a finite number, falling back to def when unset.
func (p Params) Float(name string, def float64) (float64, error) {
	raw := p.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidParams, name, raw)
	}
	return v, nil
}
