package service

import (
	"time"

	"drivingschool_backend/internals/configs"
)

type dayHours struct {
	closed      bool
	open, close int // minutes from midnight
}

var businessHours = map[time.Weekday]dayHours{
	time.Sunday:    {closed: true},
	time.Monday:    {open: 7 * 60, close: 19 * 60},
	time.Tuesday:   {open: 7 * 60, close: 19 * 60},
	time.Wednesday: {open: 7 * 60, close: 19 * 60},
	time.Thursday:  {open: 7 * 60, close: 19 * 60},
	time.Friday:    {open: 7 * 60, close: 19 * 60},
	time.Saturday:  {open: 8 * 60, close: 17 * 60},
}

// Rule names carried on ValidationError.
const (
	RuleEndAfterStart = "end_after_start"
	RuleMinDuration   = "min_duration"
	RuleMaxDuration   = "max_duration"
	RuleNotInPast     = "not_in_past"
	RuleMinAdvance    = "min_advance"
	RuleMaxAdvance    = "max_advance"
	RuleSundayClosed  = "sunday_closed"
	RuleSaturdayHours = "saturday_hours"
	RuleOpeningTime   = "opening_time"
	RuleClosingTime   = "closing_time"
	RuleReference     = "reference"
)

// Rules holds the static booking checks (steps 1 to 4). They need no datastore.
type Rules struct {
	Cfg configs.SchedulingConfig
}

func (r Rules) Check(w TimeWindow, now time.Time) error {
	if err := r.checkDuration(w); err != nil {
		return err
	}
	if err := r.checkAdvance(w, now); err != nil {
		return err
	}
	return r.checkBusinessHours(w)
}

func (r Rules) checkDuration(w TimeWindow) error {
	if !w.End.After(w.Start) {
		return invalid(RuleEndAfterStart, "Lesson end time must be after start time")
	}
	d := w.Duration()
	if d < r.Cfg.MinDuration {
		return invalid(RuleMinDuration, "Lesson must be at least %d minutes", int(r.Cfg.MinDuration/time.Minute))
	}
	if d > r.Cfg.MaxDuration {
		return invalid(RuleMaxDuration, "Lesson cannot exceed %d minutes", int(r.Cfg.MaxDuration/time.Minute))
	}
	return nil
}

func (r Rules) checkAdvance(w TimeWindow, now time.Time) error {
	if w.Start.Before(now) {
		return invalid(RuleNotInPast, "Cannot schedule lessons in the past")
	}
	if w.Start.Before(now.Add(r.Cfg.MinAdvance)) {
		return invalid(RuleMinAdvance, "Lessons must be booked at least %d hours in advance", int(r.Cfg.MinAdvance/time.Hour))
	}
	if w.Start.After(now.Add(r.Cfg.MaxAdvance)) {
		return invalid(RuleMaxAdvance, "Cannot book lessons more than %d days in advance", int(r.Cfg.MaxAdvance/(24*time.Hour)))
	}
	return nil
}

func (r Rules) checkBusinessHours(w TimeWindow) error {
	loc := r.Cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	start := w.Start.In(loc)
	end := w.End.In(loc)

	hours := businessHours[start.Weekday()]
	if hours.closed {
		return invalid(RuleSundayClosed, "Lessons are not available on Sundays")
	}

	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	if end.Second() > 0 || end.Nanosecond() > 0 {
		endMin++
	}
	sameDay := start.Year() == end.Year() && start.YearDay() == end.YearDay()

	if start.Weekday() == time.Saturday {
		if startMin < hours.open || !sameDay || endMin > hours.close {
			return invalid(RuleSaturdayHours, "Saturday lessons are only available between %s and %s",
				clockLabel(hours.open), clockLabel(hours.close))
		}
		return nil
	}
	if startMin < hours.open {
		return invalid(RuleOpeningTime, "Lessons cannot start before %s", clockLabel(hours.open))
	}
	if !sameDay || endMin > hours.close {
		return invalid(RuleClosingTime, "Lessons must end by %s", clockLabel(hours.close))
	}
	return nil
}

func clockLabel(minutes int) string {
	return time.Date(2000, 1, 1, minutes/60, minutes%60, 0, 0, time.UTC).Format("3:04 PM")
}
