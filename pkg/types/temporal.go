// Package types provides the core domain types for legal code consolidation.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Date represents a calendar date without time component.
// Comparison is implemented via time.Time.
type Date struct {
	Year  int
	Month int // 1-12
	Day   int // 1-31
}

// ToTime converts a Date to a time.Time at midnight UTC.
func (d Date) ToTime() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// FromTime creates a Date from a time.Time.
func FromTime(t time.Time) Date {
	return Date{
		Year:  t.Year(),
		Month: int(t.Month()),
		Day:   t.Day(),
	}
}

// ParseDate parses a date in ISO 8601 form (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return FromTime(t), nil
}

// MustDate parses a date and panics on error. For tests and fixtures.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String returns the date in ISO 8601 form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero returns true for the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Before returns true if d is before other.
func (d Date) Before(other Date) bool {
	return d.ToTime().Before(other.ToTime())
}

// After returns true if d is after other.
func (d Date) After(other Date) bool {
	return d.ToTime().After(other.ToTime())
}

// Equal returns true if d equals other.
func (d Date) Equal(other Date) bool {
	return d.Year == other.Year && d.Month == other.Month && d.Day == other.Day
}

// BeforeOrEqual returns true if d is before or equal to other.
func (d Date) BeforeOrEqual(other Date) bool {
	return d.Before(other) || d.Equal(other)
}

// AfterOrEqual returns true if d is after or equal to other.
func (d Date) AfterOrEqual(other Date) bool {
	return d.After(other) || d.Equal(other)
}

// MarshalJSON encodes the date as an ISO 8601 string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes an ISO 8601 date string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Interval is the half-open validity interval [EffectiveFrom, EffectiveUntil)
// of an article version. A nil EffectiveUntil means "still in force".
type Interval struct {
	EffectiveFrom  Date
	EffectiveUntil *Date
}

// Contains reports whether date falls inside the interval. The lower bound is
// inclusive, the upper bound exclusive: a version repealed effective D is no
// longer in force on D itself.
func (iv Interval) Contains(date Date) bool {
	if date.Before(iv.EffectiveFrom) {
		return false
	}
	if iv.EffectiveUntil != nil && date.AfterOrEqual(*iv.EffectiveUntil) {
		return false
	}
	return true
}

// Open reports whether the interval has no upper bound.
func (iv Interval) Open() bool {
	return iv.EffectiveUntil == nil
}

// Overlaps reports whether two half-open intervals intersect.
func (iv Interval) Overlaps(other Interval) bool {
	if iv.EffectiveUntil != nil && other.EffectiveFrom.AfterOrEqual(*iv.EffectiveUntil) {
		return false
	}
	if other.EffectiveUntil != nil && iv.EffectiveFrom.AfterOrEqual(*other.EffectiveUntil) {
		return false
	}
	return true
}
