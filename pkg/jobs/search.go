package jobs

import (
	"fmt"
	"strings"

	"github.com/owamns/clinmr/pkg/core"
	"github.com/owamns/clinmr/pkg/records"
)

const (
	SubstringSearch = "substring-search"
	DateRangeSearch = "date-range-search"
)

func init() {
	mustRegister(Definition{
		Name:        SubstringSearch,
		Description: "Records whose diagnosis or first procedure contains a term, ignoring case",
		Params: []Param{
			{Name: ParamTerm, Description: "Text to look for", Required: true},
		},
		MapOnly: true,
		Build:   buildSubstringSearch,
	})
	mustRegister(Definition{
		Name:        DateRangeSearch,
		Description: "Records whose sample date (YYYYMMDD) lies in an inclusive range",
		Params: []Param{
			{Name: ParamStart, Description: "First sample date, as an integer such as 20240101", Required: true},
			{Name: ParamEnd, Description: "Last sample date, inclusive", Required: true},
		},
		MapOnly: true,
		Build:   buildDateRangeSearch,
	})
}

func buildSubstringSearch(params Params) (core.Job, error) {
	term := strings.ToUpper(params.Get(ParamTerm))
	if term == "" {
		return core.Job{}, fmt.Errorf("%w: %s must not be empty", ErrInvalidParams, ParamTerm)
	}

	return core.Job{Stage: core.Stage{
		Name: SubstringSearch,
		Map: func(_ int, line string) []core.KeyValue {
			r := records.Parse(line)
			if !r.Has(records.FieldProcedure1) {
				return nil
			}
			if strings.Contains(strings.ToUpper(r[records.FieldDiagnosis]), term) ||
				strings.Contains(strings.ToUpper(r[records.FieldProcedure1]), term) {
				return []core.KeyValue{{Value: line}}
			}
			return nil
		},
	}}, nil
}

func buildDateRangeSearch(params Params) (core.Job, error) {
	start, err := params.Int(ParamStart)
	if err != nil {
		return core.Job{}, err
	}
	end, err := params.Int(ParamEnd)
	if err != nil {
		return core.Job{}, err
	}
	if start > end {
		return core.Job{}, fmt.Errorf("%w: %s %d is after %s %d", ErrInvalidParams, ParamStart, start, ParamEnd, end)
	}

	return core.Job{Stage: core.Stage{
		Name: DateRangeSearch,
		Map: func(_ int, line string) []core.KeyValue {
			date, ok := records.Parse(line).Int(records.FieldSampleDate)
			if !ok || date < start || date > end {
				return nil
			}
			return []core.KeyValue{{Value: line}}
		},
	}}, nil
}
