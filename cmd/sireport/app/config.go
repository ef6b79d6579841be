package app

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// Config drives the comparison report. Runs are compared against the first
// listed run, which acts as the baseline condition.
type Config struct {
	DBPath    string
	RunIDs    []int64
	OutputDir string

	Iterations int
	Seed       uint64
	BlockSize  int
	Workers    int

	Plots   bool
	Verbose bool
}

func NewConfig() *Config {
	return &Config{
		Iterations: 1000,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var runList string
	var seed uint64
	flag.StringVar(&c.DBPath, "db", "", "Path to the run database file")
	flag.StringVar(&runList, "runs", "", "Comma-separated run IDs, baseline first")
	flag.StringVar(&c.OutputDir, "o", ".", "Output directory for report artifacts")
	flag.IntVar(&c.Iterations, "iterations", c.Iterations, "Bootstrap iterations per run")
	flag.Uint64Var(&seed, "seed", 0, "Bootstrap random seed")
	flag.IntVar(&c.BlockSize, "block-size", 0, "Moving-block bootstrap block size, 0 for i.i.d. resampling")
	flag.IntVar(&c.Workers, "workers", 0, "Bootstrap worker goroutines, 0 for all CPUs")
	flag.BoolVar(&c.Plots, "plots", false, "Render comparison plots")
	flag.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	flag.Parse()

	c.Seed = seed

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if runList == "" {
		err = errors.New("at least one run ID is required")
	} else if c.RunIDs, err = parseRunIDs(runList); err == nil && c.Iterations <= 0 {
		err = errors.New("iterations must be positive")
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}
	return c, nil
}

func parseRunIDs(list string) ([]int64, error) {
	parts := strings.Split(list, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid run ID '%s'", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
