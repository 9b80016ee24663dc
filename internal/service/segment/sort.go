package segment

import (
	"sort"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/workentry"
)

func sortSegments(segments []workentry.Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		a, b := segments[i], segments[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.Kind < b.Kind
	})
}
