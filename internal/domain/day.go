package domain

import "time"

// Day is a date-only value: the number of whole UTC days since the Unix
// epoch. Using an integer day instead of a timestamp (or a truncated date
// string) keeps daily-login and streak arithmetic free of timezone-boundary
// bugs: "yesterday" is simply d-1.
//
// The zero value means "no day recorded".
type Day int

// DayOf returns the calendar day containing t, evaluated in UTC.
func DayOf(t time.Time) Day {
	t = t.UTC()
	return Day(t.Unix() / 86400)
}

// Time returns midnight UTC of the day.
func (d Day) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

// String formats the day as YYYY-MM-DD.
func (d Day) String() string {
	return d.Time().Format("2006-01-02")
}
