package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

// h builds an interval in hours relative to base.
func h(start, end float64, tag string) Interval {
	return Interval{
		Start: base.Add(time.Duration(start * float64(time.Hour))),
		End:   base.Add(time.Duration(end * float64(time.Hour))),
		Tag:   tag,
	}
}

func TestSubtract(t *testing.T) {
	cases := []struct {
		name       string
		segments   []Interval
		exclusions []Interval
		want       []Interval
	}{
		{
			name:       "exclusion inside splits segment",
			segments:   []Interval{h(0, 10, "x")},
			exclusions: []Interval{h(3, 5, "")},
			want:       []Interval{h(0, 3, "x"), h(5, 10, "x")},
		},
		{
			name:       "full cover yields empty set",
			segments:   []Interval{h(2, 4, "x")},
			exclusions: []Interval{h(1, 5, "")},
			want:       nil,
		},
		{
			name:       "non overlapping exclusion is a no-op",
			segments:   []Interval{h(0, 2, "x")},
			exclusions: []Interval{h(2, 3, "")},
			want:       []Interval{h(0, 2, "x")},
		},
		{
			name:       "exclusion clipping both ends",
			segments:   []Interval{h(0, 4, "am"), h(5, 9, "pm")},
			exclusions: []Interval{h(3, 6, "")},
			want:       []Interval{h(0, 3, "am"), h(6, 9, "pm")},
		},
		{
			name:       "several exclusions on one segment",
			segments:   []Interval{h(0, 10, "x")},
			exclusions: []Interval{h(7, 8, ""), h(1, 2, "")},
			want:       []Interval{h(0, 1, "x"), h(2, 7, "x"), h(8, 10, "x")},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Subtract(tc.segments, tc.exclusions)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSubtract_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name       string
		segments   []Interval
		exclusions []Interval
	}{
		{name: "zero length exclusion", segments: []Interval{h(0, 10, "x")}, exclusions: []Interval{h(5, 5, "")}},
		{name: "inverted exclusion", segments: []Interval{h(0, 10, "x")}, exclusions: []Interval{h(6, 4, "")}},
		{name: "inverted segment", segments: []Interval{h(10, 0, "x")}, exclusions: []Interval{h(3, 5, "")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Subtract(tc.segments, tc.exclusions)
			assert.ErrorIs(t, err, ErrInvalidInterval)
			assert.Nil(t, got)
		})
	}
}

func TestSubtract_ExclusionOrderIndependent(t *testing.T) {
	segments := []Interval{h(0, 12, "x"), h(13, 18, "y")}
	exclusions := []Interval{h(2, 4, ""), h(3, 6, ""), h(11, 14, ""), h(17, 20, "")}
	reversed := []Interval{exclusions[3], exclusions[2], exclusions[1], exclusions[0]}

	forward, err := Subtract(segments, exclusions)
	require.NoError(t, err)
	backward, err := Subtract(segments, reversed)
	require.NoError(t, err)
	assert.Equal(t, forward, backward)
}

func TestMerge(t *testing.T) {
	got := Merge([]Interval{h(0, 5, "am"), h(5, 8, "am"), h(9, 10, "pm")})
	assert.Equal(t, []Interval{h(0, 8, "am"), h(9, 10, "pm")}, got)

	// Contiguous intervals with different tags never merge.
	got = Merge([]Interval{h(5, 8, "pm"), h(0, 5, "am")})
	assert.Equal(t, []Interval{h(0, 5, "am"), h(5, 8, "pm")}, got)

	got = Merge([]Interval{h(2, 3, "am"), h(0, 6, "am"), h(5, 7, "am")})
	assert.Equal(t, []Interval{h(0, 7, "am")}, got)

	assert.Nil(t, Merge(nil))
}

func TestContainsInstant(t *testing.T) {
	iv := h(9, 17, "")
	assert.True(t, ContainsInstant(iv, iv.Start))
	assert.True(t, ContainsInstant(iv, iv.End))
	assert.True(t, ContainsInstant(iv, base.Add(12*time.Hour)))
	assert.False(t, ContainsInstant(iv, iv.End.Add(time.Second)))
	assert.False(t, ContainsInstant(iv, iv.Start.Add(-time.Second)))
}

func TestFind(t *testing.T) {
	shifts := []Interval{h(9, 13, "morning"), h(13, 14, "lunch"), h(14, 17, "afternoon")}

	i, ok := FindContaining(shifts, base.Add(10*time.Hour))
	require.True(t, ok)
	assert.Equal(t, 0, i)

	_, ok = FindContaining(shifts, base.Add(8*time.Hour))
	assert.False(t, ok)

	i, ok = FindNext(shifts, base.Add(8*time.Hour))
	require.True(t, ok)
	assert.Equal(t, 0, i)

	i, ok = FindNext(shifts, base.Add(13*time.Hour+30*time.Minute))
	require.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = FindNext(shifts, base.Add(18*time.Hour))
	assert.False(t, ok)

	i, ok = FindPrevious(shifts, base.Add(18*time.Hour))
	require.True(t, ok)
	assert.Equal(t, 2, i)

	i, ok = FindPrevious(shifts, base.Add(13*time.Hour+30*time.Minute))
	require.True(t, ok)
	assert.Equal(t, 0, i)

	_, ok = FindPrevious(shifts, base.Add(8*time.Hour))
	assert.False(t, ok)
}

func TestCovers(t *testing.T) {
	cases := []struct {
		name   string
		target Interval
		cover  []Interval
		want   bool
	}{
		{name: "adjacent covers join", target: h(9, 12, ""), cover: []Interval{h(8, 10, ""), h(10, 13, "")}, want: true},
		{name: "gap in cover", target: h(9, 12, ""), cover: []Interval{h(8, 10, ""), h(10.5, 13, "")}, want: false},
		{name: "no cover", target: h(9, 12, ""), cover: nil, want: false},
		{name: "empty target", target: h(9, 9, ""), cover: nil, want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Covers(tc.target, tc.cover)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := Covers(h(9, 12, ""), []Interval{h(11, 10, "")})
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(h(0, 1, "x"), h(2, 3, "y")))

	err := Validate(h(0, 1, "x"), h(3, 3, "y"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	assert.ErrorIs(t, Validate(h(4, 3, "")), ErrInvalidInterval)
}

func TestIntersect(t *testing.T) {
	got, ok := h(9, 13, "am").Intersect(base.Add(10*time.Hour), base.Add(20*time.Hour))
	require.True(t, ok)
	assert.Equal(t, h(10, 13, "am"), got)

	_, ok = h(9, 13, "am").Intersect(base.Add(13*time.Hour), base.Add(20*time.Hour))
	assert.False(t, ok)
}

func TestTotal(t *testing.T) {
	assert.Equal(t, 5*time.Hour, Total([]Interval{h(0, 2, ""), h(4, 7, ""), h(9, 8, "")}))
}
