// Package timenorm resolves the two timestamp conventions the backend mixes:
// creation times are local wall-clock strings, phase-transition times are UTC
// strings that usually lack a zone marker.
package timenorm

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var ErrParse = errors.New("unparseable timestamp")

var zoneMarker = regexp.MustCompile(`(?i)(z|[+-]\d{2}(:?\d{2})?)$`)

var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05.999999999Z0700",
		"2006-01-02 15:04:05.999999999Z0700",
		"2006-01-02T15:04:05.999999999Z07",
		"2006-01-02 15:04:05.999999999Z07",
		"2006-01-02T15:04Z07:00",
		"2006-01-02 15:04Z07:00",
		"2006-01-02T15:04Z0700",
		"2006-01-02 15:04Z0700",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
	}
)

// Normalize turns value into an absolute instant. With assumeUTC a marker-less
// value is read as UTC, otherwise as wall-clock time in loc. Values that carry
// an explicit zone keep it either way.
func Normalize(value string, assumeUTC bool, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrParse)
	}
	if hasZoneMarker(trimmed) {
		return parseZoned(trimmed)
	}
	switch {
	case assumeUTC:
		loc = time.UTC
	case loc == nil:
		loc = time.Local
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrParse, value)
}

// NormalizePtr is Normalize for optional fields. A nil or unparseable value
// gives nil together with the parse error, if any.
func NormalizePtr(value *string, assumeUTC bool, loc *time.Location) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, err := Normalize(*value, assumeUTC, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// StartOfDay is midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func hasZoneMarker(value string) bool {
	// the date part has dashes too, only look after the time separator
	idx := strings.IndexAny(value, "T t")
	if idx < 0 {
		return false
	}
	return zoneMarker.MatchString(value[idx+1:])
}

func parseZoned(value string) (time.Time, error) {
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrParse, value)
}
