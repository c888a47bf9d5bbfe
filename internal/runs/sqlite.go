package runs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/owamns/clinmr/pkg/jobs"
	"github.com/owamns/clinmr/pkg/local"
)

const runsTable = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	job TEXT NOT NULL,
	params TEXT NOT NULL,
	status TEXT NOT NULL,
	output_dir TEXT NOT NULL,
	submitted_at DATETIME NOT NULL,
	started_at DATETIME,
	completed_at DATETIME,
	stats TEXT NOT NULL,
	error TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_submitted_at ON runs (submitted_at);
`

// SQLiteStore keeps run history in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; one connection also keeps ":memory:"
	// databases from splitting across the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(runsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating runs table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(run *Run) error {
	params, stats, err := encodeRun(run)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO runs (id, job, params, status, output_dir, submitted_at, started_at, completed_at, stats, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Job, params, string(run.Status), run.OutputDir,
		run.SubmittedAt.UTC(), nullTime(run.StartedAt), nullTime(run.CompletedAt), stats, run.Error)
	return err
}

func (s *SQLiteStore) Update(run *Run) error {
	params, stats, err := encodeRun(run)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE runs SET job = ?, params = ?, status = ?, output_dir = ?, submitted_at = ?,
		started_at = ?, completed_at = ?, stats = ?, error = ? WHERE id = ?`,
		run.Job, params, string(run.Status), run.OutputDir, run.SubmittedAt.UTC(),
		nullTime(run.StartedAt), nullTime(run.CompletedAt), stats, run.Error, run.ID.String())
	if err != nil {
		return err
	}
	return requireAffected(res, run.ID)
}

func (s *SQLiteStore) Get(id uuid.UUID) (*Run, error) {
	row := s.db.QueryRow(`SELECT id, job, params, status, output_dir, submitted_at, started_at, completed_at, stats, error
		FROM runs WHERE id = ?`, id.String())
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

func (s *SQLiteStore) List(filter Filter) ([]*Run, int, error) {
	var where []string
	var args []any
	if filter.Job != "" {
		where = append(where, "job = ?")
		args = append(args, filter.Job)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs"+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := -1
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	query := `SELECT id, job, params, status, output_dir, submitted_at, started_at, completed_at, stats, error
		FROM runs` + clause + ` ORDER BY submitted_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.Query(query, append(args, limit, max(filter.Offset, 0))...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

func (s *SQLiteStore) Delete(id uuid.UUID) error {
	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		id, job, params, status, outputDir, stats, errMsg string
		submittedAt                                       time.Time
		startedAt, completedAt                            sql.NullTime
	)
	if err := row.Scan(&id, &job, &params, &status, &outputDir, &submittedAt, &startedAt, &completedAt, &stats, &errMsg); err != nil {
		return nil, err
	}

	run := &Run{
		Job:         job,
		Status:      Status(status),
		OutputDir:   outputDir,
		SubmittedAt: submittedAt.UTC(),
		StartedAt:   timePtr(startedAt),
		CompletedAt: timePtr(completedAt),
		Error:       errMsg,
	}
	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	run.Params = jobs.Params{}
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return nil, fmt.Errorf("decoding params of run %s: %w", id, err)
	}
	run.Stats = local.Stats{}
	if err := json.Unmarshal([]byte(stats), &run.Stats); err != nil {
		return nil, fmt.Errorf("decoding stats of run %s: %w", id, err)
	}
	return run, nil
}

func encodeRun(run *Run) (params, stats string, err error) {
	p := run.Params
	if p == nil {
		p = jobs.Params{}
	}
	rawParams, err := json.Marshal(p)
	if err != nil {
		return "", "", err
	}
	rawStats, err := json.Marshal(run.Stats)
	if err != nil {
		return "", "", err
	}
	return string(rawParams), string(rawStats), nil
}

func requireAffected(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
