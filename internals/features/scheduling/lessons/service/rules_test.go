package service

import (
	"errors"
	"testing"
	"time"

	"drivingschool_backend/internals/configs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Friday 2026-10-16 08:00 UTC.
var rulesNow = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

func day(d, h, m int) time.Time {
	return time.Date(2026, 10, d, h, m, 0, 0, time.UTC)
}

func win(start time.Time, minutes int) TimeWindow {
	return TimeWindow{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
}

func TestRulesCheck(t *testing.T) {
	r := Rules{Cfg: configs.DefaultSchedulingConfig()}

	cases := []struct {
		name    string
		w       TimeWindow
		rule    string
		message string
	}{
		{"end equals start", win(day(19, 10, 0), 0), RuleEndAfterStart, "Lesson end time must be after start time"},
		{"end before start", TimeWindow{day(19, 11, 0), day(19, 10, 0)}, RuleEndAfterStart, "Lesson end time must be after start time"},
		{"too short", win(day(19, 10, 0), 20), RuleMinDuration, "Lesson must be at least 30 minutes"},
		{"too long", win(day(19, 10, 0), 181), RuleMaxDuration, "Lesson cannot exceed 180 minutes"},
		{"in the past", win(day(15, 10, 0), 60), RuleNotInPast, "Cannot schedule lessons in the past"},
		{"under two hours ahead", win(day(16, 9, 0), 60), RuleMinAdvance, "Lessons must be booked at least 2 hours in advance"},
		{"beyond ninety days", win(rulesNow.AddDate(0, 0, 91), 60), RuleMaxAdvance, "Cannot book lessons more than 90 days in advance"},
		{"sunday", win(day(18, 10, 0), 60), RuleSundayClosed, "Lessons are not available on Sundays"},
		{"saturday early", win(day(17, 7, 30), 60), RuleSaturdayHours, "Saturday lessons are only available between 8:00 AM and 5:00 PM"},
		{"saturday late", win(day(17, 16, 30), 60), RuleSaturdayHours, "Saturday lessons are only available between 8:00 AM and 5:00 PM"},
		{"weekday early", win(day(19, 6, 30), 60), RuleOpeningTime, "Lessons cannot start before 7:00 AM"},
		{"weekday late", win(day(19, 18, 30), 60), RuleClosingTime, "Lessons must end by 7:00 PM"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := r.Check(tc.w, rulesNow)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
			assert.Equal(t, tc.rule, ve.Rule)
			assert.Equal(t, tc.message, ve.Message)
		})
	}
}

func TestRulesAcceptBoundaries(t *testing.T) {
	r := Rules{Cfg: configs.DefaultSchedulingConfig()}

	ok := []TimeWindow{
		win(day(19, 10, 0), 60),
		win(day(19, 7, 0), 30),
		win(day(19, 18, 0), 60),
		win(day(19, 16, 0), 180),
		win(day(17, 8, 0), 60),
		win(day(17, 16, 0), 60),
		win(day(16, 10, 0), 30),
	}
	for _, w := range ok {
		assert.NoError(t, r.Check(w, rulesNow), "window %s-%s", w.Start, w.End)
	}
}

func TestRulesUseSchoolTimezone(t *testing.T) {
	cfg := configs.DefaultSchedulingConfig()
	nairobi, err := time.LoadLocation("Africa/Nairobi")
	require.NoError(t, err)
	cfg.Location = nairobi
	r := Rules{Cfg: cfg}

	// 04:00 UTC is 07:00 in Nairobi.
	assert.NoError(t, r.Check(win(day(19, 4, 0), 60), rulesNow))

	// 15:30-16:30 UTC is 18:30-19:30 in Nairobi.
	err = r.Check(win(day(19, 15, 30), 60), rulesNow)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, RuleClosingTime, ve.Rule)
}

func TestRulesDurationCheckedFirst(t *testing.T) {
	r := Rules{Cfg: configs.DefaultSchedulingConfig()}
	err := r.Check(win(day(18, 10, 0), 10), rulesNow)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, RuleMinDuration, ve.Rule)
}
