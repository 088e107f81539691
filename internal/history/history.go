// Package history builds the appointment history shown to the client.
package history

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"barbershop/internal/models"
)

var ErrMalformedRecord = errors.New("malformed appointment record")

// Visible returns appointments up to the end of asOf's day, most recent first.
// A malformed record turns the whole view into the failure marker.
func Visible(list []models.Appointment, asOf time.Time) models.HistoryView {
	limit := EndOfDay(asOf)

	entries := make([]models.Appointment, 0, len(list))
	for i, apt := range list {
		if err := check(apt); err != nil {
			return models.HistoryView{Err: fmt.Errorf("record %d: %w", i, err)}
		}
		if !apt.Datetime.After(limit) {
			entries = append(entries, apt)
		}
	}

	if len(entries) == 0 {
		return models.HistoryView{Entries: entries, Empty: true}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Datetime.After(entries[j].Datetime)
	})
	return models.HistoryView{Entries: entries}
}

// EndOfDay is the last representable instant of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
}

func check(apt models.Appointment) error {
	if apt.Datetime.IsZero() {
		return fmt.Errorf("%w: missing datetime", ErrMalformedRecord)
	}
	if len(apt.Services) == 0 {
		return fmt.Errorf("%w: no services", ErrMalformedRecord)
	}
	return nil
}
