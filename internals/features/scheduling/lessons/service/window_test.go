package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(h, m int) time.Time {
	return time.Date(2026, 10, 19, h, m, 0, 0, time.UTC)
}

func TestTimeWindowOverlaps(t *testing.T) {
	base := TimeWindow{Start: at(10, 0), End: at(11, 0)}

	cases := []struct {
		name string
		w    TimeWindow
		want bool
	}{
		{"inside", TimeWindow{at(10, 15), at(10, 45)}, true},
		{"covers", TimeWindow{at(9, 0), at(12, 0)}, true},
		{"tail", TimeWindow{at(10, 45), at(11, 15)}, true},
		{"head", TimeWindow{at(9, 30), at(10, 1)}, true},
		{"touching end", TimeWindow{at(11, 0), at(12, 0)}, false},
		{"touching start", TimeWindow{at(9, 0), at(10, 0)}, false},
		{"apart", TimeWindow{at(13, 0), at(14, 0)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, base.Overlaps(tc.w))
			assert.Equal(t, tc.want, tc.w.Overlaps(base))
		})
	}
}

func TestTimeWindowPadAddsBreak(t *testing.T) {
	w := TimeWindow{Start: at(10, 0), End: at(11, 0)}.Pad(15 * time.Minute)
	assert.Equal(t, at(9, 45), w.Start)
	assert.Equal(t, at(11, 15), w.End)
	assert.True(t, w.Overlaps(TimeWindow{at(11, 10), at(11, 40)}))
	assert.False(t, w.Overlaps(TimeWindow{at(11, 15), at(11, 45)}))
}

func TestResolveWindow(t *testing.T) {
	start := at(10, 0)

	assert.Equal(t, at(11, 0), ResolveWindow(start, nil).End)
	assert.Equal(t, at(10, 45), ResolveWindow(start, DurationOf(45*time.Minute)).End)
	assert.Equal(t, at(12, 30), ResolveWindow(start, EndAt(at(12, 30))).End)
}

func TestTimeWindowUTCTruncates(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*3600)
	w := TimeWindow{
		Start: time.Date(2026, 10, 19, 13, 0, 0, 500, nairobi),
		End:   time.Date(2026, 10, 19, 14, 0, 0, 0, nairobi),
	}.UTC()
	assert.Equal(t, at(10, 0), w.Start)
	assert.Equal(t, time.UTC, w.Start.Location())
}
