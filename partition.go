package main

import "fmt"

// Range is a half-open index range [Start, End) owned by one worker.
type Range struct {
	Start int
	End   int
}

// Len is the number of indices in r.
func (r Range) Len() int {
	return r.End - r.Start
}

// String formats r as a half-open interval.
func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Partitioner splits [0, n) into worker ranges.
type Partitioner interface {
	Partition(n int) ([]Range, error)
}

// SplitAt produces exactly two ranges [0, s) and [s, n).
type SplitAt int

// Partition returns [0, s) and [s, n), failing when s is outside [0, n].
func (s SplitAt) Partition(n int) ([]Range, error) {
	if int(s) < 0 || int(s) > n {
		return nil, fmt.Errorf("%w: split index %d outside [0, %d]", ErrInvalidInput, int(s), n)
	}
	return []Range{{0, int(s)}, {int(s), n}}, nil
}

// Even produces k contiguous ranges whose lengths differ by at most one.
// k is clamped to n so no range is empty.
type Even int

// Partition returns min(k, n) ranges covering [0, n).
func (k Even) Partition(n int) ([]Range, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: partition count %d must be at least 1", ErrInvalidInput, int(k))
	}
	parts := int(k)
	if parts > n {
		parts = n
	}
	if parts == 0 {
		return nil, fmt.Errorf("%w: nothing to partition", ErrInvalidInput)
	}
	ranges := make([]Range, 0, parts)
	size, rem := n/parts, n%parts
	start := 0
	for i := 0; i < parts; i++ {
		end := start + size
		// the first rem ranges take one extra element
		if i < rem {
			end++
		}
		ranges = append(ranges, Range{start, end})
		start = end
	}
	return ranges, nil
}

// validatePartitions checks the ranges are in order, never overlap, leave no
// gaps and cover [0, n) exactly. Workers write without locks, so this is the
// only thing keeping them apart.
func validatePartitions(ranges []Range, n int) error {
	if len(ranges) == 0 {
		return fmt.Errorf("%w: no partitions", ErrInvalidInput)
	}
	next := 0
	for _, r := range ranges {
		if r.Start != next || r.End < r.Start {
			return fmt.Errorf("%w: partition %s does not continue from %d", ErrInvalidInput, r, next)
		}
		next = r.End
	}
	if next != n {
		return fmt.Errorf("%w: partitions end at %d, want %d", ErrInvalidInput, next, n)
	}
	return nil
}
