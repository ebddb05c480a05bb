// Package markethours is the NSE session calendar. Daily candles from the
// exchange are final only after the close, so incremental syncs stop at
// the last completed session.
package markethours

import "time"

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Session hours in IST.
const (
	OpenHour    = 9
	OpenMinute  = 15
	CloseHour   = 15
	CloseMinute = 30
)

// IsMarketOpen reports whether t falls within NSE trading hours
// (9:15 to 15:30 IST on trading days).
func IsMarketOpen(t time.Time) bool {
	ist := t.In(IST)
	if !IsTradingDay(ist) {
		return false
	}
	hm := ist.Hour()*60 + ist.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// IsTradingDay reports whether t's IST date is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	ist := t.In(IST)
	wd := ist.Weekday()
	return wd != time.Saturday && wd != time.Sunday && !IsHoliday(ist)
}

// LastCompletedSession returns the date of the newest session whose close
// is at or before t, as UTC midnight (the convention of model.PriceBar.Date).
func LastCompletedSession(t time.Time) time.Time {
	ist := t.In(IST)
	d := time.Date(ist.Year(), ist.Month(), ist.Day(), 0, 0, 0, 0, IST)
	closed := ist.Hour()*60+ist.Minute() >= CloseHour*60+CloseMinute
	if !closed || !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	for i := 0; i < 15 && !IsTradingDay(d); i++ {
		d = d.AddDate(0, 0, -1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
