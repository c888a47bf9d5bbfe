package core

import (
	"errors"
	"strings"
)

// ErrMissingDependency is returned when the broadcast table produced by the
// first stage of a chained job is empty or cannot be parsed.
var ErrMissingDependency = errors.New("missing broadcast dependency")

// MapFunc receives a record's global line index and its raw text and emits
// zero or more pairs. The header line never reaches a MapFunc.
type MapFunc func(index int, line string) []KeyValue

// ReduceFunc folds every value of one key into at most one pair. Combiners
// share the same signature.
type ReduceFunc func(key string, values []string) (KeyValue, bool)

type KeyValue struct {
	Key   string
	Value string
}

// Stage is one map/shuffle/reduce pass. A nil Reduce makes the stage map-only:
// emitted values are written to the output as-is and keys are ignored.
type Stage struct {
	Name    string
	Map     MapFunc
	Combine ReduceFunc
	Reduce  ReduceFunc
}

func (s Stage) MapOnly() bool {
	return s.Reduce == nil
}

// Table is the fully materialized output of a stage, keyed by reduce key.
type Table map[string]string

// BroadcastFunc builds the second stage of a chained job from the first
// stage's complete output.
type BroadcastFunc func(Table) (Stage, error)

type Job struct {
	Name  string
	Stage Stage
	Then  BroadcastFunc
}

func (j Job) Chained() bool {
	return j.Then != nil
}

// KeySeparator joins the components of composite keys such as "department;sex".
const KeySeparator = ";"

func CompositeKey(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

// ValidKey reports whether key can be framed in a tab-separated shuffle file.
func ValidKey(key string) bool {
	return !strings.ContainsAny(key, "\t\r\n")
}
