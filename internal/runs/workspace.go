package runs

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace lays out run outputs as <base>/<run id>/<job>.
type Workspace struct {
	base string
}

func NewWorkspace(base string) (*Workspace, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	return &Workspace{base: abs}, nil
}

func (w *Workspace) Base() string {
	return w.base
}

func (w *Workspace) OutputDir(id uuid.UUID, job string) string {
	return filepath.Join(w.base, id.String(), job)
}

// Remove deletes everything a run wrote. Missing directories are not an error.
func (w *Workspace) Remove(id uuid.UUID) error {
	return os.RemoveAll(filepath.Join(w.base, id.String()))
}
