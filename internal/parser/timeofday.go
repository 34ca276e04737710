package parser

import (
	"strconv"
	"strings"
	"time"
)

// ParseTimeOfDay parses a 24h "HH:MM" (or "H:MM") notification time.
func ParseTimeOfDay(input string) (hour, minute int, err error) {
	s := strings.TrimSpace(input)
	hs, ms, ok := strings.Cut(s, ":")
	if !ok || len(ms) != 2 || len(hs) == 0 || len(hs) > 2 {
		return 0, 0, NewTimeOfDayError(input)
	}
	hour, herr := strconv.Atoi(hs)
	minute, merr := strconv.Atoi(ms)
	if herr != nil || merr != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, NewTimeOfDayError(input)
	}
	return hour, minute, nil
}

// NormalizeTimeOfDay returns input as zero-padded "HH:MM".
func NormalizeTimeOfDay(input string) (string, error) {
	h, m, err := ParseTimeOfDay(input)
	if err != nil {
		return "", err
	}
	return time.Date(2000, 1, 1, h, m, 0, 0, time.UTC).Format("15:04"), nil
}

// NextOccurrence returns the next time the clock reads hour:minute, today if
// that moment is still ahead of now, else tomorrow.
func NextOccurrence(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
