// Package cadence decides when workers run and how long they sleep.
// Session math is pure functions over NYSE hours; the Controller layers
// the sleep_mode override from system_config on top.
package cadence

import "time"

// NYSE regular session in exchange-local time.
const (
	OpenHour    = 9
	OpenMinute  = 30
	CloseHour   = 16
	CloseMinute = 0
)

// NY is the exchange timezone. LoadLocation can only fail when the
// tzdata is broken, which is unrecoverable anyway.
var NY = mustLoadNY()

func mustLoadNY() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic("cadence: load America/New_York: " + err.Error())
	}
	return loc
}

// IsMarketOpen reports whether t falls inside the regular NYSE session
// (9:30 AM to 4:00 PM Eastern, Mon to Fri). The close is exclusive:
// 15:59:59 is open, 16:00:00 is closed.
func IsMarketOpen(t time.Time) bool {
	ny := t.In(NY)
	wd := ny.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	hm := ny.Hour()*60 + ny.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// IsWeekday reports whether t is Mon to Fri in New York.
func IsWeekday(t time.Time) bool {
	wd := t.In(NY).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// NextOpen returns the next session open at or after t.
func NextOpen(t time.Time) time.Time {
	ny := t.In(NY)

	todayOpen := time.Date(ny.Year(), ny.Month(), ny.Day(), OpenHour, OpenMinute, 0, 0, NY)
	if ny.Before(todayOpen) && IsWeekday(ny) {
		return todayOpen
	}

	d := ny.AddDate(0, 0, 1)
	for i := 0; i < 7; i++ {
		if IsWeekday(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, OpenMinute, 0, 0, NY)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(ny.Year(), ny.Month(), ny.Day()+1, OpenHour, OpenMinute, 0, 0, NY)
}

// TimeUntilOpen returns the duration until the next session open, or 0
// when the market is already open.
func TimeUntilOpen(t time.Time) time.Duration {
	if IsMarketOpen(t) {
		return 0
	}
	return NextOpen(t).Sub(t)
}
