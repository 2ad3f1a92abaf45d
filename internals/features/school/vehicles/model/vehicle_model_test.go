package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInsuredOnComparesCalendarDays(t *testing.T) {
	eat := time.FixedZone("EAT", 3*60*60)
	expiry := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	v := VehicleModel{VehicleInsuranceExpiry: &expiry}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"day before expiry", time.Date(2026, 10, 18, 15, 0, 0, 0, eat), true},
		{"morning of expiry day", time.Date(2026, 10, 19, 8, 0, 0, 0, eat), true},
		{"late on expiry day", time.Date(2026, 10, 19, 23, 30, 0, 0, eat), true},
		{"just past local midnight", time.Date(2026, 10, 20, 0, 30, 0, 0, eat), false},
		{"week later", time.Date(2026, 10, 26, 10, 0, 0, 0, eat), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, v.InsuredOn(tc.at, eat))
		})
	}
}

func TestInsuredOnWithoutExpiry(t *testing.T) {
	var v VehicleModel
	assert.True(t, v.InsuredOn(time.Now(), nil))
}

func TestNormalizeRegNumber(t *testing.T) {
	assert.Equal(t, "KCA123A", NormalizeRegNumber(" kca 123a "))
}
