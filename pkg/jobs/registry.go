// Package jobs holds the catalogue of analytics jobs that run over the
// clinical dataset.
package jobs

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/owamns/clinmr/pkg/core"
)

var (
	ErrUnknownJob    = errors.New("unknown job")
	ErrInvalidParams = errors.New("invalid job parameters")
)

// Param describes one named job parameter.
type Param struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     string `json:"default,omitempty"`
}

// Definition is a catalogue entry. Build turns validated parameters into a
// runnable job.
type Definition struct {
	Name        string
	Description string
	Params      []Param
	MapOnly     bool
	Chained     bool
	Build       func(Params) (core.Job, error)
}

// Accepts reports whether name is one of the definition's parameters.
func (d Definition) Accepts(name string) bool {
	return slices.ContainsFunc(d.Params, func(p Param) bool { return p.Name == name })
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Definition)
)

func Register(def Definition) error {
	if def.Name == "" || def.Build == nil {
		return fmt.Errorf("job definition needs a name and a builder")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[def.Name]; exists {
		return fmt.Errorf("job already registered: %s", def.Name)
	}
	registry[def.Name] = def
	return nil
}

func mustRegister(def Definition) {
	if err := Register(def); err != nil {
		panic(err)
	}
}

func Get(name string) (Definition, error) {
	mu.RLock()
	defer mu.RUnlock()
	def, exists := registry[name]
	if !exists {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return def, nil
}

// List returns every registered definition sorted by name.
func List() []Definition {
	mu.RLock()
	defer mu.RUnlock()
	defs := make([]Definition, 0, len(registry))
	for _, def := range registry {
		defs = append(defs, def)
	}
	slices.SortFunc(defs, func(a, b Definition) int {
		return strings.Compare(a.Name, b.Name)
	})
	return defs
}

// Build looks up name, rejects parameters the job does not declare and
// builds the job.
func Build(name string, params Params) (core.Job, error) {
	def, err := Get(name)
	if err != nil {
		return core.Job{}, err
	}
	for key := range params {
		if !def.Accepts(key) {
			return core.Job{}, fmt.Errorf("%w: %s does not accept %q", ErrInvalidParams, name, key)
		}
	}
	for _, p := range def.Params {
		if p.Required && params.Get(p.Name) == "" {
			return core.Job{}, fmt.Errorf("%w: %s requires %q", ErrInvalidParams, name, p.Name)
		}
	}

	job, err := def.Build(params)
	if err != nil {
		return core.Job{}, err
	}
	job.Name = name
	return job, nil
}
