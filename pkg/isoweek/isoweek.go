// Package isoweek implements ISO-8601 week-date arithmetic on calendar dates.
//
// Weeks run Monday to Sunday. Week 1 of an ISO year is the week containing the year's first
// Thursday, which is also the week containing January 4th. Every function is pure and safe
// for concurrent use.
package isoweek

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidArgument marks malformed or out-of-range input.
var ErrInvalidArgument = errors.New("isoweek: invalid argument")

const (
	// MinWeek is the first ISO week of any year.
	MinWeek = 1
	// MaxWeek is the largest week number any ISO year can have.
	MaxWeek = 53
	// DaysPerWeek is the length of the Monday..Sunday span.
	DaysPerWeek = 7
)

// WeekKey identifies an ISO week.
type WeekKey struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

func (k WeekKey) String() string {
	return fmt.Sprintf("%04d-W%02d", k.Year, k.Week)
}

// Start is WeekStart(k.Year, k.Week).
func (k WeekKey) Start() Date {
	return WeekStart(k.Year, k.Week)
}

// Dates is WeekDates(k.Year, k.Week).
func (k WeekKey) Dates() [DaysPerWeek]Date {
	return WeekDates(k.Year, k.Week)
}

// thursdayOf moves d to the Thursday of its own Monday-starting week.
func thursdayOf(d Date) Date {
	return d.AddDays(4 - d.ISOWeekday())
}

// ISOWeekYear returns the ISO week-numbering year of d. Early-January dates can belong to the
// previous year and late-December dates to the next one.
func ISOWeekYear(d Date) int {
	return thursdayOf(d).Year
}

// ISOWeekNumber returns the ISO week of d, in [1,53].
func ISOWeekNumber(d Date) int {
	daysSinceJan1 := thursdayOf(d).YearDay() - 1
	return (daysSinceJan1 + 1 + DaysPerWeek - 1) / DaysPerWeek
}

// KeyOf returns the week containing d.
func KeyOf(d Date) WeekKey {
	return WeekKey{Year: ISOWeekYear(d), Week: ISOWeekNumber(d)}
}

// WeeksInYear returns 52 or 53. December 28th always lies in the last ISO week of its year.
func WeeksInYear(isoYear int) int {
	return ISOWeekNumber(Date{Year: isoYear, Month: time.December, Day: 28})
}

// WeekStart returns the Monday of (isoYear, isoWeek). isoWeek is clamped to
// [1, WeeksInYear(isoYear)], so a week 53 asked of a 52-week year resolves to week 52.
func WeekStart(isoYear, isoWeek int) Date {
	isoWeek = clampWeek(isoYear, isoWeek)
	jan4 := Date{Year: isoYear, Month: time.January, Day: 4}
	monday := jan4.AddDays(1 - jan4.ISOWeekday())
	return monday.AddDays((isoWeek - 1) * DaysPerWeek)
}

// WeekDates returns Monday..Sunday of (isoYear, isoWeek).
func WeekDates(isoYear, isoWeek int) [DaysPerWeek]Date {
	start := WeekStart(isoYear, isoWeek)
	var days [DaysPerWeek]Date
	for i := range days {
		days[i] = start.AddDays(i)
	}
	return days
}

// Range returns the half-open span [start, end) covering the week; end is the next Monday.
func Range(k WeekKey) (Date, Date) {
	start := k.Start()
	return start, start.AddDays(DaysPerWeek)
}

// Validate rejects weeks outside [1, WeeksInYear(year)] and years outside 1..9999.
func Validate(k WeekKey) error {
	if k.Year < 1 || k.Year > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidArgument, k.Year)
	}
	if max := WeeksInYear(k.Year); k.Week < MinWeek || k.Week > max {
		return fmt.Errorf("%w: week %d out of range 1..%d for %d", ErrInvalidArgument, k.Week, max, k.Year)
	}
	return nil
}

// NewWeekKey builds and validates a key.
func NewWeekKey(year, week int) (WeekKey, error) {
	k := WeekKey{Year: year, Week: week}
	if err := Validate(k); err != nil {
		return WeekKey{}, err
	}
	return k, nil
}

// ParseWeekKey accepts "2024-W10", "2024-w10" and "2024-10".
func ParseWeekKey(raw string) (WeekKey, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), "-", 2)
	if len(parts) != 2 {
		return WeekKey{}, fmt.Errorf("%w: week %q, expected YYYY-Www", ErrInvalidArgument, raw)
	}
	year, err := atoiDigits(parts[0])
	if err != nil {
		return WeekKey{}, fmt.Errorf("%w: year in %q", ErrInvalidArgument, raw)
	}
	week, err := atoiDigits(strings.TrimPrefix(strings.TrimPrefix(parts[1], "W"), "w"))
	if err != nil {
		return WeekKey{}, fmt.Errorf("%w: week in %q", ErrInvalidArgument, raw)
	}
	return NewWeekKey(year, week)
}

// atoiDigits is strconv.Atoi without the optional sign.
func atoiDigits(s string) (int, error) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(s)
}

// WrapMode selects the upper bound used when ShiftWeek crosses a year boundary.
type WrapMode int

const (
	// WrapActual wraps at the real number of ISO weeks of each year (52 or 53).
	WrapActual WrapMode = iota
	// WrapFixed53 always wraps at 53. Going back from week 1 lands on week 53 of the previous
	// year even when that year only has 52 weeks; WeekStart then clamps the label.
	WrapFixed53
)

func (m WrapMode) bound(year int) int {
	if m == WrapFixed53 {
		return MaxWeek
	}
	return WeeksInYear(year)
}

// ShiftWeek moves k by delta weeks, carrying into the previous or next year when the week
// leaves [1, bound].
func ShiftWeek(k WeekKey, delta int, mode WrapMode) WeekKey {
	year, week := k.Year, k.Week
	if week < MinWeek {
		week = MinWeek
	}
	if b := mode.bound(year); week > b {
		week = b
	}
	week += delta
	for week < MinWeek {
		year--
		week += mode.bound(year)
	}
	for week > mode.bound(year) {
		week -= mode.bound(year)
		year++
	}
	return WeekKey{Year: year, Week: week}
}

// Next is ShiftWeek(k, 1, WrapActual).
func (k WeekKey) Next() WeekKey {
	return ShiftWeek(k, 1, WrapActual)
}

// Prev is ShiftWeek(k, -1, WrapActual).
func (k WeekKey) Prev() WeekKey {
	return ShiftWeek(k, -1, WrapActual)
}

func clampWeek(isoYear, isoWeek int) int {
	if isoWeek < MinWeek {
		return MinWeek
	}
	if max := WeeksInYear(isoYear); isoWeek > max {
		return max
	}
	return isoWeek
}
