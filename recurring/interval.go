/*
interval.go - Interval calculator for standing orders

PURPOSE:
  Computes the next shipping date of a template from a base date and the
  template's interval. This is the only place schedule arithmetic lives;
  the store (resume) and the scheduler (advance) both call NextDate.

INTERVAL KINDS:
  weekly{weekday}         next weekday strictly after base
  n_weekly{n, weekday}    anchor on weekday on/after base, then + n weeks
  monthly_day{day}        day-of-month in the month after base (clamped),
                          or "first"/"last" of that month
  n_monthly{n}            base + n months, clamped to the target month end

CONTRACT:
  NextDate is pure, total and deterministic and always returns a date after
  base. A spec that fails Validate is computed as n_monthly{1}.

SEE ALSO:
  - interval_codec.go: JSON encoding + legacy integer decoding
  - date.go: calendar-day arithmetic
*/
package recurring

import (
	"fmt"
	"time"
)

// =============================================================================
// INTERVAL SPEC - Tagged variant
// =============================================================================

type IntervalKind string

const (
	KindWeekly     IntervalKind = "weekly"
	KindNWeekly    IntervalKind = "n_weekly"
	KindMonthlyDay IntervalKind = "monthly_day"
	KindNMonthly   IntervalKind = "n_monthly"
)

// MonthAnchor selects the first or last calendar day for monthly_day.
type MonthAnchor string

const (
	AnchorNone  MonthAnchor = ""
	AnchorFirst MonthAnchor = "first"
	AnchorLast  MonthAnchor = "last"
)

// IntervalSpec is a tagged union; only the fields of Kind are meaningful.
// Build values with the constructors below.
type IntervalSpec struct {
	Kind    IntervalKind
	N       int         // n_weekly, n_monthly
	Weekday int         // weekly, n_weekly: 1=Monday ... 7=Sunday
	Day     int         // monthly_day with AnchorNone: 1..31
	Anchor  MonthAnchor // monthly_day: first/last
}

func Weekly(weekday int) IntervalSpec {
	return IntervalSpec{Kind: KindWeekly, Weekday: weekday}
}

func NWeekly(n, weekday int) IntervalSpec {
	return IntervalSpec{Kind: KindNWeekly, N: n, Weekday: weekday}
}

func MonthlyDay(day int) IntervalSpec {
	return IntervalSpec{Kind: KindMonthlyDay, Day: day}
}

func FirstOfMonth() IntervalSpec {
	return IntervalSpec{Kind: KindMonthlyDay, Anchor: AnchorFirst}
}

func LastOfMonth() IntervalSpec {
	return IntervalSpec{Kind: KindMonthlyDay, Anchor: AnchorLast}
}

func NMonthly(n int) IntervalSpec {
	return IntervalSpec{Kind: KindNMonthly, N: n}
}

// DefaultInterval is what malformed specs degrade to.
func DefaultInterval() IntervalSpec { return NMonthly(1) }

// Validate reports whether the spec is well formed for its kind.
func (s IntervalSpec) Validate() error {
	switch s.Kind {
	case KindWeekly:
		if s.Weekday < 1 || s.Weekday > 7 {
			return fmt.Errorf("weekly: weekday %d out of range 1..7", s.Weekday)
		}
	case KindNWeekly:
		if s.N < 1 {
			return fmt.Errorf("n_weekly: n must be >= 1, got %d", s.N)
		}
		if s.Weekday < 1 || s.Weekday > 7 {
			return fmt.Errorf("n_weekly: weekday %d out of range 1..7", s.Weekday)
		}
	case KindMonthlyDay:
		switch s.Anchor {
		case AnchorFirst, AnchorLast:
		case AnchorNone:
			if s.Day < 1 || s.Day > 31 {
				return fmt.Errorf("monthly_day: day %d out of range 1..31", s.Day)
			}
		default:
			return fmt.Errorf("monthly_day: unknown anchor %q", s.Anchor)
		}
	case KindNMonthly:
		if s.N < 1 {
			return fmt.Errorf("n_monthly: n must be >= 1, got %d", s.N)
		}
	default:
		return fmt.Errorf("unknown interval kind %q", s.Kind)
	}
	return nil
}

func (s IntervalSpec) String() string {
	switch s.Kind {
	case KindWeekly:
		return fmt.Sprintf("every %s", isoWeekdayName(s.Weekday))
	case KindNWeekly:
		return fmt.Sprintf("every %d weeks on %s", s.N, isoWeekdayName(s.Weekday))
	case KindMonthlyDay:
		if s.Anchor != AnchorNone {
			return fmt.Sprintf("monthly on the %s day", s.Anchor)
		}
		return fmt.Sprintf("monthly on day %d", s.Day)
	case KindNMonthly:
		return fmt.Sprintf("every %d months", s.N)
	}
	return string(s.Kind)
}

func isoWeekdayName(wd int) string {
	if wd < 1 || wd > 7 {
		return fmt.Sprintf("weekday(%d)", wd)
	}
	return time.Weekday(wd % 7).String()
}

// =============================================================================
// CALCULATOR
// =============================================================================

// NextDate returns the next occurrence of spec after base.
func NextDate(base Date, spec IntervalSpec) Date {
	if spec.Validate() != nil {
		spec = DefaultInterval()
	}

	switch spec.Kind {
	case KindWeekly:
		diff := (spec.Weekday - base.ISOWeekday() + 7) % 7
		if diff == 0 {
			diff = 7
		}
		return base.AddDays(diff)

	case KindNWeekly:
		diff := (spec.Weekday - base.ISOWeekday() + 7) % 7
		anchor := base.AddDays(diff)
		return anchor.AddDays(7 * spec.N)

	case KindMonthlyDay:
		next := base.AddMonths(1)
		year, month := next.Year(), next.Month()
		switch spec.Anchor {
		case AnchorFirst:
			return NewDate(year, month, 1)
		case AnchorLast:
			return EndOfMonth(year, month)
		}
		day := spec.Day
		if last := DaysIn(year, month); day > last {
			day = last
		}
		return NewDate(year, month, day)

	default:
		return base.AddMonths(spec.N)
	}
}
