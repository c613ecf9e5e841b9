package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/constraints"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidInput marks input that cannot be partitioned and shuffled.
var ErrInvalidInput = errors.New("invalid input")

// Phase names a parallel step of a shuffle run.
type Phase string

const (
	PhaseSort    Phase = "encrypt+sort"
	PhaseDecrypt Phase = "decrypt"
)

// WorkerFailure reports a worker that stopped before finishing its range.
// The pair it was working on must be thrown away.
type WorkerFailure struct {
	Phase     Phase
	Partition int
	Range     Range
	Err       error
}

func (w *WorkerFailure) Error() string {
	return fmt.Sprintf("%s worker %d on %s failed: %v", w.Phase, w.Partition, w.Range, w.Err)
}

func (w *WorkerFailure) Unwrap() error {
	return w.Err
}

// Pair holds the values being shuffled and the key recorded for each
// position. Whatever moves Values[i] must move Keys[i] the same way.
type Pair[T constraints.Signed] struct {
	Values []T
	Keys   []T
}

// NewPair copies values into a fresh pair with zeroed keys.
func NewPair[T constraints.Signed](values []T) Pair[T] {
	p := Pair[T]{
		Values: make([]T, len(values)),
		Keys:   make([]T, len(values)),
	}
	copy(p.Values, values)
	return p
}

// Len is the number of positions in p.
func (p Pair[T]) Len() int {
	return len(p.Values)
}

// Slice returns a view of r in both arrays. The view cannot grow past r.End.
func (p Pair[T]) Slice(r Range) Pair[T] {
	return Pair[T]{
		Values: p.Values[r.Start:r.End:r.End],
		Keys:   p.Keys[r.Start:r.End:r.End],
	}
}

// Encrypt draws one number per position from rng, records it as the key and
// adds it to the value. Overflow wraps at the width of T.
func (p Pair[T]) Encrypt(rng *rand.Rand) {
	for i := range p.Values {
		x := T(rng.Uint64())
		p.Keys[i] = x
		p.Values[i] += x
	}
}

// Decrypt subtracts each position's key from its value.
func (p Pair[T]) Decrypt() {
	for i := range p.Values {
		p.Values[i] -= p.Keys[i]
	}
}

// PartialMergeSort sorts [left, right) by value, carrying the keys along.
func (p Pair[T]) PartialMergeSort(left, right int) {
	if right-left <= 1 {
		return
	}
	mid := left + (right-left)/2
	p.PartialMergeSort(left, mid)
	p.PartialMergeSort(mid, right)
	p.Merge(left, mid, right)
}

// Merge combines the sorted runs [left, mid) and [mid, right) into one sorted
// run. On equal values the left run goes first. Indices outside [left, right)
// are not touched.
func (p Pair[T]) Merge(left, mid, right int) {
	vals := make([]T, right-left)
	keys := make([]T, right-left)
	i, j, k := left, mid, 0
	for i < mid && j < right {
		if p.Values[i] <= p.Values[j] {
			vals[k], keys[k] = p.Values[i], p.Keys[i]
			i++
		} else {
			vals[k], keys[k] = p.Values[j], p.Keys[j]
			j++
		}
		k++
	}
	for ; i < mid; i, k = i+1, k+1 {
		vals[k], keys[k] = p.Values[i], p.Keys[i]
	}
	for ; j < right; j, k = j+1, k+1 {
		vals[k], keys[k] = p.Values[j], p.Keys[j]
	}
	copy(p.Values[left:right], vals)
	copy(p.Keys[left:right], keys)
}

// Options tunes a shuffle run. The zero value splits the input in half.
type Options struct {
	Partitioner Partitioner
	// NewSource builds the random stream of one partition from
	// base seed + partition start.
	NewSource func(seed int64) rand.Source
	Logger    *log.Logger
}

func (o Options) withDefaults(n int) Options {
	if o.Partitioner == nil {
		o.Partitioner = SplitAt(n / 2)
	}
	if o.NewSource == nil {
		o.NewSource = rand.NewSource
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Shuffle returns a copy of values in an order fixed by seed.
func Shuffle[T constraints.Signed](ctx context.Context, values []T, seed int64, opts Options) ([]T, error) {
	p := NewPair(values)
	if err := ShufflePair(ctx, p, seed, opts); err != nil {
		return nil, err
	}
	return p.Values, nil
}

// ShufflePair permutes p in place. Each partition is encrypted and sorted by
// its own worker, the sorted runs are merged on the calling goroutine, then
// the merged array is decrypted in parallel again. On error p is left in an
// undefined state.
func ShufflePair[T constraints.Signed](ctx context.Context, p Pair[T], seed int64, opts Options) error {
	n := p.Len()
	if n == 0 {
		return fmt.Errorf("%w: empty sequence", ErrInvalidInput)
	}
	if len(p.Keys) != n {
		return fmt.Errorf("%w: %d values but %d keys", ErrInvalidInput, n, len(p.Keys))
	}
	opts = opts.withDefaults(n)
	ranges, err := opts.Partitioner.Partition(n)
	if err != nil {
		return err
	}
	if err := validatePartitions(ranges, n); err != nil {
		return err
	}
	logger := opts.Logger.With("n", n, "partitions", len(ranges))

	stream := func(r Range) *rand.Rand {
		return rand.New(opts.NewSource(seed + int64(r.Start)))
	}

	if n == 1 {
		// one element cannot move, but it still gets its key
		for _, r := range ranges {
			view := p.Slice(r)
			view.Encrypt(stream(r))
			view.Decrypt()
		}
		return ctx.Err()
	}

	err = runPhase(ctx, PhaseSort, ranges, func(r Range) {
		view := p.Slice(r)
		view.Encrypt(stream(r))
		view.PartialMergeSort(0, view.Len())
	})
	if err != nil {
		return err
	}
	logger.Debug("partitions sorted")

	if err := ctx.Err(); err != nil {
		return err
	}
	// [0, r.Start) is already one sorted run when r is reached
	for _, r := range ranges[1:] {
		if r.Len() == 0 || r.Start == 0 {
			continue
		}
		p.Merge(0, r.Start, r.End)
	}
	logger.Debug("partitions merged")

	err = runPhase(ctx, PhaseDecrypt, ranges, func(r Range) {
		p.Slice(r).Decrypt()
	})
	if err != nil {
		return err
	}
	logger.Debug("decrypted")
	return nil
}

// runPhase runs work once per non-empty range, each on its own goroutine, and
// waits for all of them. Panics are turned into WorkerFailure errors.
func runPhase(ctx context.Context, phase Phase, ranges []Range, work func(r Range)) error {
	failures := make([]error, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		if r.Len() == 0 {
			continue
		}
		i, r := i, r
		g.Go(func() (err error) {
			defer func() {
				if v := recover(); v != nil {
					err = &WorkerFailure{Phase: phase, Partition: i, Range: r, Err: fmt.Errorf("panic: %v", v)}
					failures[i] = err
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			work(r)
			return nil
		})
	}
	err := g.Wait()
	if joined := errors.Join(failures...); joined != nil {
		return joined
	}
	return err
}
