package service

import "time"

// TimeWindow is a half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps implements [a,b) ∩ [c,d) ≠ ∅  ⇔  a < d && c < b.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Pad widens the window by d on both sides.
func (w TimeWindow) Pad(d time.Duration) TimeWindow {
	return TimeWindow{Start: w.Start.Add(-d), End: w.End.Add(d)}
}

func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

func (w TimeWindow) UTC() TimeWindow {
	return TimeWindow{Start: w.Start.UTC().Truncate(time.Second), End: w.End.UTC().Truncate(time.Second)}
}

// LessonEnd says how a booking ends: either an EndAt or a DurationOf.
type LessonEnd interface {
	endFrom(start time.Time) time.Time
}

type EndAt time.Time

func (e EndAt) endFrom(time.Time) time.Time { return time.Time(e) }

type DurationOf time.Duration

func (d DurationOf) endFrom(start time.Time) time.Time { return start.Add(time.Duration(d)) }

// DefaultLessonLength applies when the caller gives neither an end nor a duration.
const DefaultLessonLength = DurationOf(60 * time.Minute)

// ResolveWindow turns start + LessonEnd into the canonical window.
func ResolveWindow(start time.Time, end LessonEnd) TimeWindow {
	if end == nil {
		end = DefaultLessonLength
	}
	return TimeWindow{Start: start, End: end.endFrom(start)}
}
