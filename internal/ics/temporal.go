package ics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedValue is returned by Interpret for values that are too short or
// have non-numeric date/time components.
var ErrMalformedValue = errors.New("ics: malformed date/time value")

// Kind tells which variant a Temporal holds.
type Kind int

const (
	KindDate Kind = iota + 1
	KindDateTime
)

// Temporal is either a date-only value or a date-time value. The time fields
// and UTC are meaningful only for KindDateTime.
type Temporal struct {
	Kind   Kind
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
	UTC    bool
}

// String returns the canonical form: YYYY-MM-DD for dates and
// YYYY-MM-DDTHH:MM:SS, suffixed with Z when UTC, for date-times.
func (t Temporal) String() string {
	if t.Kind != KindDateTime {
		return fmt.Sprintf("%04d-%02d-%02d", t.Year, t.Month, t.Day)
	}
	s := fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
	if t.UTC {
		s += "Z"
	}
	return s
}

// Basic returns the iCalendar basic format (20240115 or 20240115T093000Z).
func (t Temporal) Basic() string {
	if t.Kind != KindDateTime {
		return fmt.Sprintf("%04d%02d%02d", t.Year, t.Month, t.Day)
	}
	s := fmt.Sprintf("%04d%02d%02dT%02d%02d%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
	if t.UTC {
		s += "Z"
	}
	return s
}

// Interpret converts a DTSTART/DTEND raw value into a Temporal.
//
// The value is read as a date when params has VALUE=DATE or when it is exactly
// eight characters long ignoring a trailing Z; allDay reports that case. Longer
// values are read as date-times, with a trailing Z marking UTC. A value shorter
// than the fifteen characters of a full date-time falls back to its date part.
func Interpret(raw string, params ParameterMap) (value Temporal, allDay bool, err error) {
	if len(raw) < 8 {
		return Temporal{}, false, fmt.Errorf("%w: %q is too short", ErrMalformedValue, raw)
	}

	date, err := readDate(raw)
	if err != nil {
		return Temporal{}, false, err
	}

	if params["VALUE"] == "DATE" || len(strings.TrimSuffix(raw, "Z")) == 8 {
		return date, true, nil
	}
	if len(raw) < 15 {
		return date, false, nil
	}

	clock, err := readDigits(raw, [][2]int{{9, 11}, {11, 13}, {13, 15}})
	if err != nil {
		return Temporal{}, false, err
	}

	value = date
	value.Kind = KindDateTime
	value.Hour, value.Minute, value.Second = clock[0], clock[1], clock[2]
	value.UTC = strings.HasSuffix(raw, "Z")
	return value, false, nil
}

func readDate(raw string) (Temporal, error) {
	parts, err := readDigits(raw, [][2]int{{0, 4}, {4, 6}, {6, 8}})
	if err != nil {
		return Temporal{}, err
	}
	return Temporal{Kind: KindDate, Year: parts[0], Month: parts[1], Day: parts[2]}, nil
}

// readDigits parses each [from,to) slice of raw as an unsigned decimal number.
func readDigits(raw string, spans [][2]int) ([]int, error) {
	out := make([]int, 0, len(spans))
	for _, span := range spans {
		field := raw[span[0]:span[1]]
		for i := 0; i < len(field); i++ {
			if field[i] < '0' || field[i] > '9' {
				return nil, fmt.Errorf("%w: %q has non-numeric component %q", ErrMalformedValue, raw, field)
			}
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrMalformedValue, raw, err)
		}
		out = append(out, n)
	}
	return out, nil
}

var canonicalSeparators = strings.NewReplacer("-", "", ":", "")

// ParseCanonical reads a value previously produced by Temporal.String.
func ParseCanonical(s string) (Temporal, error) {
	v, _, err := Interpret(canonicalSeparators.Replace(s), nil)
	return v, err
}
