// Package schedule parses five-field cron expressions and finds the next
// matching minute.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Spec is a parsed "minute hour day-of-month month day-of-week" expression.
type Spec struct {
	minute field
	hour   field
	dom    field
	month  field
	dow    field
}

// field is a bitset of allowed values. star records a leading "*" so that
// day-of-month and day-of-week can be combined the way cron does.
type field struct {
	bits uint64
	star bool
}

type bounds struct {
	name     string
	min, max int
}

var fields = [5]bounds{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// searchLimit bounds Next; every valid expression matches within four years
// (Feb 29).
const searchLimit = 4 * 366 * 24 * 60

var errNoMatch = errors.New("schedule never matches")

func Parse(expr string) (Spec, error) {
	parts := strings.Fields(expr)
	if len(parts) != len(fields) {
		return Spec{}, fmt.Errorf("expected %d fields, got %d", len(fields), len(parts))
	}

	var parsed [5]field
	for i, b := range fields {
		f, err := parseField(parts[i], b.min, b.max)
		if err != nil {
			return Spec{}, fmt.Errorf("%s: %w", b.name, err)
		}
		parsed[i] = f
	}

	s := Spec{minute: parsed[0], hour: parsed[1], dom: parsed[2], month: parsed[3], dow: parsed[4]}
	if _, err := s.next(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// Matches reports whether t's minute is selected. When both day fields are
// restricted a day matches if either one does.
func (s Spec) Matches(t time.Time) bool {
	if !s.minute.has(t.Minute()) || !s.hour.has(t.Hour()) || !s.month.has(int(t.Month())) {
		return false
	}
	domOK := s.dom.has(t.Day())
	dowOK := s.dow.has(int(t.Weekday()))
	if !s.dom.star && !s.dow.star {
		return domOK || dowOK
	}
	return domOK && dowOK
}

// Next returns the first matching minute strictly after t, in t's location.
func (s Spec) Next(t time.Time) time.Time {
	n, err := s.next(t)
	if err != nil {
		// Parse rejects specs that never match.
		return time.Time{}
	}
	return n
}

func (s Spec) next(t time.Time) (time.Time, error) {
	c := t.Truncate(time.Minute).Add(time.Minute)
	for i := 0; i < searchLimit; i++ {
		if s.Matches(c) {
			return c, nil
		}
		c = c.Add(time.Minute)
	}
	return time.Time{}, errNoMatch
}

func (f field) has(v int) bool {
	return f.bits&(1<<uint(v)) != 0
}

func parseField(token string, min, max int) (field, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return field{}, fmt.Errorf("empty field")
	}

	f := field{star: strings.HasPrefix(token, "*")}

	for _, part := range strings.Split(token, ",") {
		if part == "" {
			return field{}, fmt.Errorf("empty list element")
		}

		rng, stepText, hasStep := strings.Cut(part, "/")
		step := 1
		if hasStep {
			n, err := strconv.Atoi(stepText)
			if err != nil || n <= 0 {
				return field{}, fmt.Errorf("invalid step %q", part)
			}
			step = n
		}

		lo, hi := min, max
		switch {
		case rng == "*":
		case strings.Contains(rng, "-"):
			a, b, _ := strings.Cut(rng, "-")
			start, errA := strconv.Atoi(a)
			end, errB := strconv.Atoi(b)
			if errA != nil || errB != nil {
				return field{}, fmt.Errorf("invalid range %q", part)
			}
			lo, hi = start, end
		default:
			v, err := strconv.Atoi(rng)
			if err != nil {
				return field{}, fmt.Errorf("invalid value %q", part)
			}
			lo, hi = v, v
			if hasStep {
				hi = max
			}
		}

		if lo > hi || lo < min || hi > max {
			return field{}, fmt.Errorf("%q out of bounds %d-%d", part, min, max)
		}
		for v := lo; v <= hi; v += step {
			f.bits |= 1 << uint(v)
		}
	}
	return f, nil
}
