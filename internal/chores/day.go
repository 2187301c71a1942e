package chores

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a calendar date with no time of day or zone. Instances are bucketed by Day.
type Day struct {
	t time.Time // midnight UTC
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf returns the calendar date of t as observed in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc != nil {
		t = t.In(loc)
	}
	return NewDay(t.Year(), t.Month(), t.Day())
}

func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalid, s)
	}
	return Day{t: t}, nil
}

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dayLayout)
}

func (d Day) IsZero() bool { return d.t.IsZero() }
func (d Day) Time() time.Time { return d.t }
func (d Day) Weekday() time.Weekday { return d.t.Weekday() }
func (d Day) AddDays(n int) Day { return Day{t: d.t.AddDate(0, 0, n)} }
func (d Day) Before(o Day) bool { return d.t.Before(o.t) }
func (d Day) After(o Day) bool { return d.t.After(o.t) }
func (d Day) Equal(o Day) bool { return d.t.Equal(o.t) }
func (d Day) Month() Month { return monthOf(d.t) }
func (d Day) DayOfMonth() int { return d.t.Day() }
func (d Day) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Day) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Day{}
		return nil
	}
	v, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Day) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Day) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// Value stores the day as its ISO text form.
func (d Day) Value() (driver.Value, error) { return d.String(), nil }

func (d *Day) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	case time.Time:
		*d = NewDay(v.Year(), v.Month(), v.Day())
		return nil
	case nil:
		*d = Day{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into Day", src)
}

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: month %q must be YYYY-MM", ErrInvalid, s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }
func (m Month) First() Day { return NewDay(m.Year, m.Month, 1) }
func (m Month) Last() Day { return m.Next().First().AddDays(-1) }
func (m Month) Days() int { return m.Last().DayOfMonth() }
func (m Month) Next() Month { return monthOf(m.First().t.AddDate(0, 1, 0)) }
func (m Month) Prev() Month { return monthOf(m.First().t.AddDate(0, -1, 0)) }

func monthOf(t time.Time) Month { return Month{Year: t.Year(), Month: t.Month()} }

func (m Month) Contains(d Day) bool { return d.t.Year() == m.Year && d.t.Month() == m.Month }

func (m Month) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

func (m *Month) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: month must be a string", ErrInvalid)
	}
	v, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
