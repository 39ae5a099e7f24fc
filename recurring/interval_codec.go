package recurring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// intervalJSON is the stored and wire form of an IntervalSpec.
//
//	{"type":"weekly","weekday":3}
//	{"type":"n_weekly","n":2,"weekday":1}
//	{"type":"monthly_day","day":15}   {"type":"monthly_day","day":"last"}
//	{"type":"n_monthly","n":2}
//
// Older rows hold a bare integer k, meaning n_monthly{k}.
type intervalJSON struct {
	Type    IntervalKind    `json:"type"`
	N       int             `json:"n,omitempty"`
	Weekday int             `json:"weekday,omitempty"`
	Day     json.RawMessage `json:"day,omitempty"`
}

func (s IntervalSpec) MarshalJSON() ([]byte, error) {
	out := intervalJSON{Type: s.Kind}
	switch s.Kind {
	case KindWeekly:
		out.Weekday = s.Weekday
	case KindNWeekly:
		out.N, out.Weekday = s.N, s.Weekday
	case KindMonthlyDay:
		if s.Anchor != AnchorNone {
			out.Day, _ = json.Marshal(string(s.Anchor))
		} else {
			out.Day, _ = json.Marshal(s.Day)
		}
	case KindNMonthly:
		out.N = s.N
	}
	return json.Marshal(out)
}

// UnmarshalJSON is strict: it rejects anything ParseInterval rejects.
func (s *IntervalSpec) UnmarshalJSON(data []byte) error {
	spec, err := ParseInterval(data)
	if err != nil {
		return err
	}
	*s = spec
	return nil
}

// ParseInterval decodes an interval from its JSON form (object or legacy
// integer) and validates it.
func ParseInterval(data []byte) (IntervalSpec, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return IntervalSpec{}, fmt.Errorf("empty interval")
	}

	// Legacy: bare number (possibly quoted) = every n months.
	if n, ok := legacyMonths(data); ok {
		spec := NMonthly(n)
		return spec, spec.Validate()
	}

	var raw intervalJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return IntervalSpec{}, fmt.Errorf("invalid interval: %w", err)
	}

	spec := IntervalSpec{Kind: raw.Type, N: raw.N, Weekday: raw.Weekday}
	if raw.Type == KindMonthlyDay {
		day, anchor, err := decodeMonthDay(raw.Day)
		if err != nil {
			return IntervalSpec{}, err
		}
		spec.Day, spec.Anchor = day, anchor
	}
	if err := spec.Validate(); err != nil {
		return IntervalSpec{}, err
	}
	return spec, nil
}

// DecodeStoredInterval is the lenient decoder used at the store boundary:
// whatever cannot be understood becomes DefaultInterval.
func DecodeStoredInterval(raw string) IntervalSpec {
	spec, err := ParseInterval([]byte(raw))
	if err != nil {
		return DefaultInterval()
	}
	return spec
}

// EncodeInterval returns the JSON text stored in the templates table.
func EncodeInterval(s IntervalSpec) string {
	data, err := json.Marshal(s)
	if err != nil {
		return strconv.Itoa(DefaultInterval().N)
	}
	return string(data)
}

func legacyMonths(data []byte) (int, bool) {
	text := strings.Trim(string(data), `"`)
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, false
	}
	return n, true
}

func decodeMonthDay(raw json.RawMessage) (int, MonthAnchor, error) {
	if len(raw) == 0 {
		return 0, AnchorNone, fmt.Errorf("monthly_day: missing day")
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, AnchorNone, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, AnchorNone, fmt.Errorf("monthly_day: day must be 1..31, \"first\" or \"last\"")
	}
	switch MonthAnchor(strings.ToLower(strings.TrimSpace(s))) {
	case AnchorFirst:
		return 0, AnchorFirst, nil
	case AnchorLast:
		return 0, AnchorLast, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, AnchorNone, nil
	}
	return 0, AnchorNone, fmt.Errorf("monthly_day: unknown day %q", s)
}
