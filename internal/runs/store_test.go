package runs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owamns/clinmr/internal/shared/config"
	"github.com/owamns/clinmr/pkg/jobs"
	"github.com/owamns/clinmr/pkg/local"
)

func newTestRun(job string, submitted time.Time) *Run {
	return &Run{
		ID:          uuid.New(),
		Job:         job,
		Params:      jobs.Params{jobs.ParamTerm: "diabetes"},
		Status:      StatusPending,
		OutputDir:   "/tmp/out/" + job,
		SubmittedAt: submitted.UTC(),
	}
}

func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewInMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
			require.NoError(t, err)
			t.Cleanup(func() { store.Close() })
			return store
		},
	}
}

func TestStore_SaveGetUpdate(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			run := newTestRun(jobs.SubstringSearch, time.Now())
			require.NoError(t, store.Save(run))
			require.Error(t, store.Save(run))

			got, err := store.Get(run.ID)
			require.NoError(t, err)
			assert.Equal(t, run.ID, got.ID)
			assert.Equal(t, run.Params, got.Params)
			assert.Equal(t, StatusPending, got.Status)
			assert.True(t, run.SubmittedAt.Equal(got.SubmittedAt))
			assert.Nil(t, got.StartedAt)

			run.Status = StatusCompleted
			run.StartedAt = ptrTimeNow()
			run.CompletedAt = ptrTimeNow()
			run.Stats = local.Stats{RecordsRead: 10, LinesWritten: 3}
			require.NoError(t, store.Update(run))

			got, err = store.Get(run.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusCompleted, got.Status)
			assert.Equal(t, run.Stats, got.Stats)
			require.NotNil(t, got.CompletedAt)
			assert.True(t, run.CompletedAt.Equal(*got.CompletedAt))
		})
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			run := newTestRun(jobs.AverageAge, time.Now())
			require.NoError(t, store.Save(run))

			got, err := store.Get(run.ID)
			require.NoError(t, err)
			got.Status = StatusFailed
			got.Params["x"] = "y"

			again, err := store.Get(run.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusPending, again.Status)
			assert.NotContains(t, again.Params, "x")
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			missing := newTestRun(jobs.AverageAge, time.Now())

			_, err := store.Get(missing.ID)
			require.ErrorIs(t, err, ErrRunNotFound)
			require.ErrorIs(t, store.Update(missing), ErrRunNotFound)
			require.ErrorIs(t, store.Delete(missing.ID), ErrRunNotFound)
		})
	}
}

func TestStore_ListFilterAndPaginate(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

			var ids []uuid.UUID
			for i := 0; i < 5; i++ {
				job := jobs.AverageAge
				if i%2 == 1 {
					job = jobs.CholesterolStats
				}
				run := newTestRun(job, base.Add(time.Duration(i)*time.Minute))
				if i == 4 {
					run.Status = StatusFailed
				}
				require.NoError(t, store.Save(run))
				ids = append(ids, run.ID)
			}

			all, total, err := store.List(Filter{})
			require.NoError(t, err)
			require.Equal(t, 5, total)
			require.Len(t, all, 5)
			for i, run := range all {
				assert.Equal(t, ids[4-i], run.ID, "newest first")
			}

			page, total, err := store.List(Filter{Limit: 2, Offset: 1})
			require.NoError(t, err)
			assert.Equal(t, 5, total)
			require.Len(t, page, 2)
			assert.Equal(t, ids[3], page[0].ID)
			assert.Equal(t, ids[2], page[1].ID)

			byJob, total, err := store.List(Filter{Job: jobs.CholesterolStats})
			require.NoError(t, err)
			assert.Equal(t, 2, total)
			assert.Len(t, byJob, 2)

			failed := StatusFailed
			byStatus, total, err := store.List(Filter{Status: &failed})
			require.NoError(t, err)
			assert.Equal(t, 1, total)
			assert.Equal(t, ids[4], byStatus[0].ID)

			beyond, total, err := store.List(Filter{Offset: 10})
			require.NoError(t, err)
			assert.Equal(t, 5, total)
			assert.Empty(t, beyond)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			run := newTestRun(jobs.AverageAge, time.Now())
			require.NoError(t, store.Save(run))
			require.NoError(t, store.Delete(run.ID))

			_, err := store.Get(run.ID)
			require.ErrorIs(t, err, ErrRunNotFound)
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	run := newTestRun(jobs.AverageAge, time.Now())
	require.NoError(t, store.Save(run))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(run.ID)
	require.NoError(t, err)
	require.Equal(t, run.Job, got.Job)
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	require.IsType(t, &InMemoryStore{}, store)

	store, err = NewStore(config.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())

	_, err = NewStore(config.StoreConfig{Driver: "redis"})
	require.Error(t, err)
}
