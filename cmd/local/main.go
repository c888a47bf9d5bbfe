package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/owamns/clinmr/internal/shared/logging"
	"github.com/owamns/clinmr/pkg/jobs"
	"github.com/owamns/clinmr/pkg/local"
)

// paramFlag collects repeated -param name=value flags.
type paramFlag jobs.Params

func (p paramFlag) String() string {
	pairs := make([]string, 0, len(p))
	for k, v := range p {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (p paramFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	p[strings.TrimSpace(name)] = value
	return nil
}

func main() {
	params := paramFlag{}
	var (
		input     = flag.String("input", "", "input files glob pattern")
		output    = flag.String("output", "", "output directory (must be empty or absent)")
		shuffle   = flag.String("shuffle", "", "directory for intermediate files (default: system temp)")
		mappers   = flag.Int("mappers", 4, "number of concurrent map tasks")
		reducers  = flag.Int("reducers", 4, "number of reduce partitions")
		jobName   = flag.String("job", "", "job to run (see -list)")
		list      = flag.Bool("list", false, "list available jobs and exit")
		logLevel  = flag.String("log-level", "info", "log level (debug, info, warn, error)")
		logFormat = flag.String("log-format", "text", "log format (text, json)")
	)
	flag.Var(params, "param", "job parameter as name=value (repeatable)")
	flag.Parse()

	if *list {
		printJobs()
		return
	}

	logger := logging.NewSlogLogger(os.Stderr, logging.ParseLevel(*logLevel), *logFormat)

	if *input == "" {
		logger.Fatal("Input pattern must be specified using the -input flag")
	}
	if *output == "" {
		logger.Fatal("Output directory must be specified using the -output flag")
	}
	if *mappers <= 0 || *reducers <= 0 {
		logger.Fatal("Number of mappers and reducers must be > 0", "mappers", *mappers, "reducers", *reducers)
	}

	job, err := jobs.Build(*jobName, jobs.Params(params))
	if err != nil {
		logger.Fatal("Cannot build job", "job", *jobName, "error", err)
	}

	cfg := local.Config{
		Job:         job,
		Input:       *input,
		Output:      *output,
		NumMappers:  *mappers,
		NumReducers: *reducers,
		Logger:      logger,
	}
	if *shuffle != "" {
		cfg.Shuffle = shuffle
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting job",
		"job", job.Name,
		"input", cfg.Input,
		"output", cfg.Output,
		"mappers", cfg.NumMappers,
		"reducers", cfg.NumReducers,
	)

	stats, err := local.NewEngine(cfg).Run(ctx)
	if err != nil {
		logger.Fatal("Job failed", "job", job.Name, "error", err)
	}

	logger.Info("Job completed successfully",
		"records", stats.RecordsRead,
		"groups", stats.GroupsReduced,
		"lines", stats.LinesWritten,
	)
}

func printJobs() {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, def := range jobs.List() {
		fmt.Fprintf(w, "%s\t%s\n", def.Name, def.Description)
		for _, p := range def.Params {
			req := ""
			if p.Required {
				req = " (required)"
			} else if p.Default != "" {
				req = fmt.Sprintf(" (default %s)", p.Default)
			}
			fmt.Fprintf(w, "\t  -param %s=...\t%s%s\n", p.Name, p.Description, req)
		}
	}
	w.Flush()
}
