// Package interval implements set operations over half-open [Start, End) time
// intervals carrying an opaque tag.
package interval

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidInterval is returned when an interval does not satisfy End > Start.
var ErrInvalidInterval = errors.New("invalid interval: end must be after start")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
	Tag   string
}

// New builds a tagged interval.
func New(start, end time.Time, tag string) Interval {
	return Interval{Start: start, End: end, Tag: tag}
}

// Valid reports whether End is strictly after Start.
func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Duration returns End - Start, or zero for an empty interval.
func (i Interval) Duration() time.Duration {
	if !i.Valid() {
		return 0
	}
	return i.End.Sub(i.Start)
}

// Overlaps reports whether the two intervals share a non-empty range.
// Touching intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Intersect clips i to [start, end). The bool is false when nothing remains.
func (i Interval) Intersect(start, end time.Time) (Interval, bool) {
	out := i
	if start.After(out.Start) {
		out.Start = start
	}
	if end.Before(out.End) {
		out.End = end
	}
	return out, out.Valid()
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s) %s", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339), i.Tag)
}

// Validate returns ErrInvalidInterval for the first interval with End <= Start.
func Validate(intervals ...Interval) error {
	for _, iv := range intervals {
		if !iv.Valid() {
			return fmt.Errorf("%w: %s", ErrInvalidInterval, iv)
		}
	}
	return nil
}

// ContainsInstant reports start <= t <= end. Both bounds are inclusive so a
// check-out exactly at a shift end still resolves to that shift.
func ContainsInstant(i Interval, t time.Time) bool {
	return !t.Before(i.Start) && !t.After(i.End)
}

// Merge folds same-tag intervals that touch or overlap. The result is sorted by
// (Tag, Start) and contains no overlapping intervals within a tag.
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].Tag != sorted[b].Tag {
			return sorted[a].Tag < sorted[b].Tag
		}
		return sorted[a].Start.Before(sorted[b].Start)
	})

	merged := []Interval{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if cur.Tag == last.Tag && !cur.Start.After(last.End) {
			if cur.End.After(last.End) {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// Subtract removes every exclusion range from every interval, splitting
// intervals around exclusions that fall strictly inside them. Zero-length
// fragments are dropped and tags are preserved. The result is sorted by
// (Start, Tag). An input with End <= Start on either side fails with
// ErrInvalidInterval.
func Subtract(intervals, exclusions []Interval) ([]Interval, error) {
	if err := Validate(intervals...); err != nil {
		return nil, err
	}
	if err := Validate(exclusions...); err != nil {
		return nil, fmt.Errorf("exclusion: %w", err)
	}

	var out []Interval
	for _, iv := range intervals {
		fragments := []Interval{iv}
		for _, ex := range exclusions {
			next := fragments[:0:0]
			for _, f := range fragments {
				if !f.Overlaps(ex) {
					next = append(next, f)
					continue
				}
				if ex.Start.After(f.Start) {
					next = append(next, Interval{Start: f.Start, End: ex.Start, Tag: f.Tag})
				}
				if ex.End.Before(f.End) {
					next = append(next, Interval{Start: ex.End, End: f.End, Tag: f.Tag})
				}
			}
			fragments = next
		}
		for _, f := range fragments {
			if f.Valid() {
				out = append(out, f)
			}
		}
	}
	SortByStart(out)
	return out, nil
}

// Covers reports whether the union of cover fully contains target. An empty
// target is always covered.
func Covers(target Interval, cover []Interval) (bool, error) {
	if !target.Valid() {
		return true, nil
	}
	rest, err := Subtract([]Interval{target}, cover)
	if err != nil {
		return false, err
	}
	return len(rest) == 0, nil
}

// SortByStart orders intervals chronologically, breaking ties on End then Tag.
func SortByStart(intervals []Interval) {
	sort.SliceStable(intervals, func(a, b int) bool {
		if !intervals[a].Start.Equal(intervals[b].Start) {
			return intervals[a].Start.Before(intervals[b].Start)
		}
		if !intervals[a].End.Equal(intervals[b].End) {
			return intervals[a].End.Before(intervals[b].End)
		}
		return intervals[a].Tag < intervals[b].Tag
	})
}

// FindContaining returns the index of the first interval of a chronologically
// sorted list that contains t.
func FindContaining(sorted []Interval, t time.Time) (int, bool) {
	for i, iv := range sorted {
		if ContainsInstant(iv, t) {
			return i, true
		}
	}
	return -1, false
}

// FindNext returns the index of the first interval starting after t.
func FindNext(sorted []Interval, t time.Time) (int, bool) {
	for i, iv := range sorted {
		if iv.Start.After(t) {
			return i, true
		}
	}
	return -1, false
}

// FindPrevious returns the index of the last interval ending at or before t.
func FindPrevious(sorted []Interval, t time.Time) (int, bool) {
	for i := len(sorted) - 1; i >= 0; i-- {
		if !sorted[i].End.After(t) {
			return i, true
		}
	}
	return -1, false
}

// Total sums the durations of the given intervals.
func Total(intervals []Interval) time.Duration {
	var d time.Duration
	for _, iv := range intervals {
		d += iv.Duration()
	}
	return d
}
