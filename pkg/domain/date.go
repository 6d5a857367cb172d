package domain

import (
	"fmt"
	"time"

	dErrors "courseflow/pkg/domain-errors"
)

// dateLayout is the wire and storage format for calendar dates.
const dateLayout = "2006-01-02"

// CalendarDate is a timezone-free day. Availability entries and course
// requests are keyed by day, never by instant, so we keep the three fields
// explicit and comparable instead of smuggling a time.Time around.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// NewCalendarDate builds a date from its parts without validation. Use
// ParseCalendarDate at trust boundaries.
func NewCalendarDate(year int, month time.Month, day int) CalendarDate {
	return CalendarDate{Year: year, Month: month, Day: day}
}

// DateOf truncates an instant to its UTC calendar day.
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.UTC().Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// ParseCalendarDate constructs a CalendarDate from "YYYY-MM-DD" input.
func ParseCalendarDate(s string) (CalendarDate, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return CalendarDate{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "date must be YYYY-MM-DD")
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the date.
func (d CalendarDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d CalendarDate) String() string {
	return d.Time().Format(dateLayout)
}

// Compact returns the date as YYYYMMDD, the form used in course numbers.
func (d CalendarDate) Compact() string {
	return d.Time().Format("20060102")
}

// IsZero reports whether the date is the zero value.
func (d CalendarDate) IsZero() bool {
	return d == CalendarDate{}
}

// Before reports whether d is strictly earlier than other.
func (d CalendarDate) Before(other CalendarDate) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// After reports whether d is strictly later than other.
func (d CalendarDate) After(other CalendarDate) bool {
	return other.Before(d)
}

// MarshalJSON encodes the date as a "YYYY-MM-DD" string.
func (d CalendarDate) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.String())), nil
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *CalendarDate) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return dErrors.New(dErrors.CodeInvalidInput, "date must be a JSON string")
	}
	parsed, err := ParseCalendarDate(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
