// Package ordernumber formats and parses order numbers of the form
// PO-YYYYMMDD-NNN, where NNN restarts at 001 every calendar day.
package ordernumber

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	Prefix      = "PO-"
	dateLayout  = "20060102"
	MaxSequence = 999
)

var (
	ErrInvalidFormat     = errors.New("invalid order number format")
	ErrSequenceExhausted = errors.New("order number sequence exhausted for the day")
)

// Format renders the number for date and seq (1..999). The date is taken in
// its own location; callers pass the business-day clock.
func Format(date time.Time, seq int) (string, error) {
	if seq < 1 || seq > MaxSequence {
		return "", fmt.Errorf("%w: %d", ErrSequenceExhausted, seq)
	}
	return fmt.Sprintf("%s%s-%03d", Prefix, date.Format(dateLayout), seq), nil
}

// DayPrefix is the common prefix of every number issued on date,
// e.g. "PO-20260301-". Useful for LIKE queries.
func DayPrefix(date time.Time) string {
	return Prefix + date.Format(dateLayout) + "-"
}

// Parse splits a number into its date and sequence.
func Parse(s string) (time.Time, int, error) {
	rest, ok := strings.CutPrefix(s, Prefix)
	if !ok || len(rest) != len(dateLayout)+4 || rest[len(dateLayout)] != '-' {
		return time.Time{}, 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	date, err := time.Parse(dateLayout, rest[:len(dateLayout)])
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	seq, err := strconv.Atoi(rest[len(dateLayout)+1:])
	if err != nil || seq < 1 {
		return time.Time{}, 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return date, seq, nil
}

// NextSequence returns the sequence that follows last on date. An empty or
// foreign-day last number starts the day at 1.
func NextSequence(last string, date time.Time) (int, error) {
	if last == "" {
		return 1, nil
	}
	lastDate, seq, err := Parse(last)
	if err != nil {
		return 0, err
	}
	if lastDate.Format(dateLayout) != date.Format(dateLayout) {
		return 1, nil
	}
	if seq >= MaxSequence {
		return 0, ErrSequenceExhausted
	}
	return seq + 1, nil
}

// Next is NextSequence followed by Format.
func Next(last string, date time.Time) (string, error) {
	seq, err := NextSequence(last, date)
	if err != nil {
		return "", err
	}
	return Format(date, seq)
}
