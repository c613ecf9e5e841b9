package main

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// RunResult is the before and after state of one shuffle run.
type RunResult struct {
	ID     uuid.UUID `json:"id"`
	Seed   int64     `json:"seed"`
	Before []int32   `json:"before"`
	After  []int32   `json:"after"`
}

// Runner wraps ShufflePair with logging and metrics.
type Runner struct {
	logger  *log.Logger
	metrics *Metrics
}

// NewRunner returns a Runner that logs to logger and records into metrics.
func NewRunner(logger *log.Logger, metrics *Metrics) *Runner {
	return &Runner{logger: logger, metrics: metrics}
}

// Run shuffles a copy of values and returns the before and after state.
func (r *Runner) Run(ctx context.Context, values []int32, seed int64, partitioner Partitioner) (RunResult, error) {
	res := RunResult{
		ID:     uuid.New(),
		Seed:   seed,
		Before: append([]int32(nil), values...),
	}
	logger := r.logger.With("run", res.ID, "seed", seed)
	logger.Info("Shuffling", "n", len(values))
	logger.Debug("Before", "values", res.Before)

	start := time.Now()
	p := NewPair(values)
	err := ShufflePair(ctx, p, seed, Options{Partitioner: partitioner, Logger: logger})
	r.metrics.Observe(start, err)
	if err != nil {
		logger.Error("Shuffle failed", "err", err)
		return res, err
	}
	res.After = p.Values
	logger.Info("Shuffled", "took", time.Since(start))
	logger.Debug("After", "values", res.After)
	return res, nil
}
