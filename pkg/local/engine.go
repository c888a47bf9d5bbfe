package local

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/owamns/clinmr/internal/shared/logging"
	"github.com/owamns/clinmr/pkg/core"
	"github.com/owamns/clinmr/pkg/records"
)

// BroadcastDir is the subdirectory of the output that holds the first stage
// of a chained job while the second stage runs.
const BroadcastDir = "_broadcast"

// How often a map task checks for cancellation, in lines.
const cancelCheckInterval = 4096

type Config struct {
	Job         core.Job
	Input       string
	Shuffle     *string
	Output      string
	NumMappers  int
	NumReducers int
	Logger      logging.Logger
}

// Stats counts work done by a run. Chained jobs report the sum of both stages.
type Stats struct {
	RecordsRead   int `json:"recordsRead"`
	PairsEmitted  int `json:"pairsEmitted"`
	PairsShuffled int `json:"pairsShuffled"`
	GroupsReduced int `json:"groupsReduced"`
	LinesWritten  int `json:"linesWritten"`
}

func (s *Stats) add(other Stats) {
	s.RecordsRead += other.RecordsRead
	s.PairsEmitted += other.PairsEmitted
	s.PairsShuffled += other.PairsShuffled
	s.GroupsReduced += other.GroupsReduced
	s.LinesWritten += other.LinesWritten
}

type Engine struct {
	config Config
	logger logging.Logger
}

func NewEngine(config Config) *Engine {
	if config.NumMappers <= 0 {
		config.NumMappers = 1
	}
	if config.NumReducers <= 0 {
		config.NumReducers = 1
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{
		config: config,
		logger: logger.With("job", config.Job.Name),
	}
}

func (e *Engine) Run(ctx context.Context) (Stats, error) {
	if e.config.Job.Stage.Map == nil {
		return Stats{}, fmt.Errorf("job %q has no map function", e.config.Job.Name)
	}
	if err := ensureEmptyDir(e.config.Output); err != nil {
		return Stats{}, err
	}

	splits, err := SplitInput(e.config.Input, e.config.NumMappers)
	if err != nil {
		return Stats{}, err
	}
	e.logger.Info("Starting job", "input", e.config.Input, "splits", len(splits), "reducers", e.config.NumReducers)

	if !e.config.Job.Chained() {
		stats, err := e.runStage(ctx, e.config.Job.Stage, splits, e.config.Output)
		if err != nil {
			return Stats{}, err
		}
		e.logger.Info("Completed job", "records", stats.RecordsRead, "lines", stats.LinesWritten)
		return stats, nil
	}

	return e.runChained(ctx, splits)
}

func (e *Engine) runChained(ctx context.Context, splits []Split) (Stats, error) {
	broadcastDir := filepath.Join(e.config.Output, BroadcastDir)
	defer os.RemoveAll(broadcastDir)

	first := e.config.Job.Stage
	stats, err := e.runStage(ctx, first, splits, broadcastDir)
	if err != nil {
		return Stats{}, err
	}

	table, err := ReadTable(broadcastDir)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: reading %s output: %v", core.ErrMissingDependency, first.Name, err)
	}
	if len(table) == 0 {
		return Stats{}, fmt.Errorf("%w: %s produced no output", core.ErrMissingDependency, first.Name)
	}

	next, err := e.config.Job.Then(table)
	if err != nil {
		if errors.Is(err, core.ErrMissingDependency) {
			return Stats{}, err
		}
		return Stats{}, fmt.Errorf("%w: %v", core.ErrMissingDependency, err)
	}
	e.logger.Debug("Loaded broadcast table", "stage", first.Name, "entries", len(table))

	nextStats, err := e.runStage(ctx, next, splits, e.config.Output)
	if err != nil {
		return Stats{}, err
	}
	stats.add(nextStats)

	e.logger.Info("Completed job", "records", stats.RecordsRead, "lines", stats.LinesWritten)
	return stats, nil
}

func (e *Engine) runStage(ctx context.Context, stage core.Stage, splits []Split, output string) (Stats, error) {
	if err := os.MkdirAll(output, 0o755); err != nil {
		return Stats{}, err
	}
	logger := e.logger.With("stage", stage.Name)
	logger.Debug("Starting stage", "splits", len(splits))

	if stage.MapOnly() {
		return e.runMapOnly(ctx, logger, stage, splits, output)
	}

	// Intermediate shuffle files live in a fresh directory for every stage.
	root := ""
	if e.config.Shuffle != nil {
		root = *e.config.Shuffle
		if err := os.MkdirAll(root, 0o755); err != nil {
			return Stats{}, err
		}
	}
	shuffleDir, err := os.MkdirTemp(root, "clinmr-shuffle-*")
	if err != nil {
		return Stats{}, err
	}
	defer os.RemoveAll(shuffleDir)

	mapStats := make([]Stats, len(splits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.NumMappers)
	for _, split := range splits {
		g.Go(func() error {
			logger.Debug("Starting map task", "task", split.ID)
			stats, err := e.runMapTask(gctx, stage, split, shuffleDir)
			if err != nil {
				return fmt.Errorf("map task %d: %w", split.ID, err)
			}
			mapStats[split.ID] = stats
			logger.Debug("Completed map task", "task", split.ID, "emitted", stats.PairsEmitted)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	reduceStats := make([]Stats, e.config.NumReducers)
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(e.config.NumReducers)
	for reducerID := 0; reducerID < e.config.NumReducers; reducerID++ {
		g.Go(func() error {
			logger.Debug("Starting reduce task", "task", reducerID)
			stats, err := e.runReduceTask(gctx, stage, reducerID, shuffleDir, output)
			if err != nil {
				return fmt.Errorf("reduce task %d: %w", reducerID, err)
			}
			reduceStats[reducerID] = stats
			logger.Debug("Completed reduce task", "task", reducerID, "groups", stats.GroupsReduced)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, s := range mapStats {
		stats.add(s)
	}
	for _, s := range reduceStats {
		stats.add(s)
	}
	logger.Debug("Completed stage", "records", stats.RecordsRead, "groups", stats.GroupsReduced)
	return stats, nil
}

// mapSplit applies the stage's map function to every non-header line of split.
func (e *Engine) mapSplit(ctx context.Context, stage core.Stage, split Split) ([]core.KeyValue, Stats, error) {
	var stats Stats
	var mapped []core.KeyValue
	for i, line := range split.Lines {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, Stats{}, err
			}
		}
		index := split.Index(i)
		if records.IsHeader(index) {
			continue
		}
		stats.RecordsRead++
		for _, kv := range stage.Map(index, line) {
			if !core.ValidKey(kv.Key) {
				e.logger.Debug("Dropping unframeable key", "stage", stage.Name, "line", index)
				continue
			}
			mapped = append(mapped, kv)
		}
	}
	stats.PairsEmitted = len(mapped)
	return mapped, stats, nil
}

func (e *Engine) runMapTask(ctx context.Context, stage core.Stage, split Split, shuffleDir string) (Stats, error) {
	mapped, stats, err := e.mapSplit(ctx, stage, split)
	if err != nil {
		return Stats{}, err
	}

	partitioned := make(map[int][]core.KeyValue)
	for _, kv := range mapped {
		partition := core.Partition(kv.Key, e.config.NumReducers)
		partitioned[partition] = append(partitioned[partition], kv)
	}

	if stage.Combine != nil {
		for part, kvs := range partitioned {
			partitioned[part] = groupAndReduce(kvs, stage.Combine)
		}
	}
	for _, kvs := range partitioned {
		stats.PairsShuffled += len(kvs)
	}

	// Each mapper writes one file per reducer and each reducer reads its
	// partition from every mapper.
	mapDir := filepath.Join(shuffleDir, fmt.Sprintf("map-%04d", split.ID))
	if err := WritePartitions(mapDir, partitioned); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (e *Engine) runReduceTask(ctx context.Context, stage core.Stage, reducerID int, shuffleDir, output string) (Stats, error) {
	matches, err := FindFiles(filepath.Join(shuffleDir, "map-*", PartFilename(reducerID)))
	if err != nil {
		return Stats{}, err
	}
	if len(matches) == 0 {
		return Stats{}, nil
	}

	var allRecords []core.KeyValue
	for _, file := range matches {
		if err := ctx.Err(); err != nil {
			return Stats{}, err
		}
		kvs, err := ReadRecords(file)
		if err != nil {
			return Stats{}, err
		}
		allRecords = append(allRecords, kvs...)
	}

	results := groupAndReduce(allRecords, stage.Reduce)
	stats := Stats{GroupsReduced: countGroups(allRecords), LinesWritten: len(results)}
	if len(results) == 0 {
		return stats, nil
	}
	if err := WriteRecords(filepath.Join(output, PartFilename(reducerID)), slices.Values(results)); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (e *Engine) runMapOnly(ctx context.Context, logger logging.Logger, stage core.Stage, splits []Split, output string) (Stats, error) {
	taskStats := make([]Stats, len(splits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.NumMappers)
	for _, split := range splits {
		g.Go(func() error {
			mapped, stats, err := e.mapSplit(gctx, stage, split)
			if err != nil {
				return fmt.Errorf("map task %d: %w", split.ID, err)
			}
			stats.LinesWritten = len(mapped)
			taskStats[split.ID] = stats
			if len(mapped) == 0 {
				return nil
			}
			values := func(yield func(string) bool) {
				for _, kv := range mapped {
					if !yield(kv.Value) {
						return
					}
				}
			}
			if err := WriteLines(filepath.Join(output, MapOnlyPartFilename(split.ID)), values); err != nil {
				return fmt.Errorf("map task %d: %w", split.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, s := range taskStats {
		stats.add(s)
	}
	logger.Debug("Completed map-only stage", "records", stats.RecordsRead, "lines", stats.LinesWritten)
	return stats, nil
}

// groupAndReduce sorts pairs by key, keeping the arrival order of values, and
// folds each run of equal keys with fn.
func groupAndReduce(kvs []core.KeyValue, fn core.ReduceFunc) []core.KeyValue {
	slices.SortStableFunc(kvs, func(left, right core.KeyValue) int {
		return cmp.Compare(left.Key, right.Key)
	})

	var results []core.KeyValue
	for i := 0; i < len(kvs); {
		key := kvs[i].Key
		values := []string{}
		for i < len(kvs) && kvs[i].Key == key {
			values = append(values, kvs[i].Value)
			i++
		}
		if kv, ok := fn(key, values); ok {
			results = append(results, kv)
		}
	}
	return results
}

// countGroups expects kvs sorted by key.
func countGroups(kvs []core.KeyValue) int {
	groups := 0
	for i := range kvs {
		if i == 0 || kvs[i].Key != kvs[i-1].Key {
			groups++
		}
	}
	return groups
}

// ensureEmptyDir fails when dir already holds files, so stale part files
// from an earlier run never mix with new output.
func ensureEmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("output directory %s is not empty", dir)
	}
	return nil
}
