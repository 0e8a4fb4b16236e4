// Package servicecal maps wall-clock instants onto operating service days.
//
// A service day starts at 04:00 local time, so trains running past midnight
// still belong to the previous day's schedule. Seconds are counted from 00:00
// of the service date to match the static timetable convention, which means
// values at or past 86400 are legal for the late-night portion of a day.
package servicecal

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/jp"
)

// ServiceDayStartHour is the local hour at which a new service day begins.
const ServiceDayStartHour = 4

// ServiceType is the coarse schedule category a service day runs under.
type ServiceType string

const (
	Weekday         ServiceType = "Weekday"
	SaturdayHoliday ServiceType = "SaturdayHoliday"
	UnknownService  ServiceType = "Unknown"
)

// ParseServiceType returns the ServiceType matching tag, or UnknownService.
func ParseServiceType(tag string) ServiceType {
	switch tag {
	case string(Weekday):
		return Weekday
	case string(SaturdayHoliday):
		return SaturdayHoliday
	}
	return UnknownService
}

// Calendar performs service-day arithmetic in a single fixed timezone.
// All components obtain "now" interpretation through a Calendar so tests can
// operate on fixed instants.
type Calendar struct {
	loc      *time.Location
	holidays *cal.BusinessCalendar
}

// NewCalendar builds a Calendar for loc. A nil loc selects Asia/Tokyo.
func NewCalendar(loc *time.Location) *Calendar {
	if loc == nil {
		var err error
		loc, err = time.LoadLocation("Asia/Tokyo")
		if err != nil {
			// Asia/Tokyo has a fixed offset with no transitions.
			loc = time.FixedZone("JST", 9*60*60)
		}
	}
	holidays := cal.NewBusinessCalendar()
	holidays.AddHoliday(jp.Holidays...)
	return &Calendar{loc: loc, holidays: holidays}
}

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// ServiceDate returns the calendar date of the service day the instant
// belongs to. Instants before 04:00 local belong to the previous date.
func (c *Calendar) ServiceDate(at time.Time) time.Time {
	local := at.In(c.loc)
	if local.Hour() < ServiceDayStartHour {
		local = local.AddDate(0, 0, -1)
	}
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// ServiceDaySeconds returns seconds elapsed from 00:00 of the instant's
// service date. For instants past midnight the result exceeds 86400.
func (c *Calendar) ServiceDaySeconds(at time.Time) int {
	local := at.In(c.loc)
	start := c.ServiceDate(local)
	return int(local.Sub(start) / time.Second)
}

// ServiceType classifies the instant's service date. Saturdays, Sundays and
// statutory holidays run the SaturdayHoliday schedule.
func (c *Calendar) ServiceType(at time.Time) ServiceType {
	date := c.ServiceDate(at)
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return SaturdayHoliday
	}
	if _, observed, _ := c.holidays.IsHoliday(date); observed {
		return SaturdayHoliday
	}
	return Weekday
}
