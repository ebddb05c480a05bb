package markethours

import "time"

type monthDay struct {
	month time.Month
	day   int
}

// nseHolidays lists weekday trading holidays per year. Years without an
// entry are treated as having none, so older history simply shows a few
// extra empty sessions.
var nseHolidays = map[int][]monthDay{
	2025: {
		{time.February, 26}, // Mahashivratri
		{time.March, 14},    // Holi
		{time.March, 31},    // Id-ul-Fitr
		{time.April, 10},    // Mahavir Jayanti
		{time.April, 14},    // Dr. Ambedkar Jayanti
		{time.April, 18},    // Good Friday
		{time.May, 1},       // Maharashtra Day
		{time.August, 15},   // Independence Day
		{time.August, 27},   // Ganesh Chaturthi
		{time.October, 2},   // Mahatma Gandhi Jayanti
		{time.October, 21},  // Diwali Laxmi Pujan
		{time.October, 22},  // Balipratipada
		{time.November, 5},  // Guru Nanak Jayanti
		{time.December, 25}, // Christmas
	},
	2026: {
		{time.January, 26},  // Republic Day
		{time.February, 17}, // Mahashivratri (tentative)
		{time.March, 31},    // Id-ul-Fitr (tentative)
		{time.April, 2},     // Ram Navami (tentative)
		{time.April, 6},     // Mahavir Jayanti
		{time.April, 10},    // Good Friday
		{time.April, 14},    // Dr. Ambedkar Jayanti
		{time.May, 1},       // Maharashtra Day
		{time.July, 6},      // Muharram (tentative)
		{time.September, 5}, // Milad-un-Nabi (tentative)
		{time.October, 2},   // Mahatma Gandhi Jayanti
		{time.October, 20},  // Dussehra
		{time.November, 6},  // Diwali Balipratipada (tentative)
		{time.November, 19}, // Guru Nanak Jayanti
		{time.December, 25}, // Christmas
	},
}

var holidaySet = buildHolidaySet()

func buildHolidaySet() map[string]bool {
	set := make(map[string]bool)
	for year, days := range nseHolidays {
		for _, h := range days {
			set[dateKey(year, h.month, h.day)] = true
		}
	}
	return set
}

// IsHoliday reports whether t's IST date is an NSE holiday.
func IsHoliday(t time.Time) bool {
	ist := t.In(IST)
	return holidaySet[dateKey(ist.Year(), ist.Month(), ist.Day())]
}

func dateKey(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, IST).Format("2006-01-02")
}
