// Package availability answers booked/unbooked questions over an appointment list.
package availability

import (
	"time"

	"barbershop/internal/models"
)

// Index is a read-only view over one snapshot of appointments.
type Index interface {
	IsDateBooked(year int, month time.Month, day int) bool
	IsSlotBooked(instant time.Time) bool
}

// Factory builds an Index for a snapshot; loc is the shop's wall-clock zone.
type Factory func(list []models.Appointment, loc *time.Location) Index

// IsDateBooked reports whether any appointment falls on the given calendar day in loc.
// Days are compared by their components, never as a time range.
func IsDateBooked(list []models.Appointment, loc *time.Location, year int, month time.Month, day int) bool {
	for _, apt := range list {
		y, m, d := apt.Datetime.In(loc).Date()
		if y == year && m == month && d == day {
			return true
		}
	}
	return false
}

// IsSlotBooked reports whether an appointment starts exactly at instant.
func IsSlotBooked(list []models.Appointment, instant time.Time) bool {
	for _, apt := range list {
		if apt.Datetime.Equal(instant) {
			return true
		}
	}
	return false
}

// ScanIndex answers every query with a linear scan.
type ScanIndex struct {
	list []models.Appointment
	loc  *time.Location
}

func NewScanIndex(list []models.Appointment, loc *time.Location) Index {
	return &ScanIndex{list: list, loc: locationOrLocal(loc)}
}

func (i *ScanIndex) IsDateBooked(year int, month time.Month, day int) bool {
	return IsDateBooked(i.list, i.loc, year, month, day)
}

func (i *ScanIndex) IsSlotBooked(instant time.Time) bool {
	return IsSlotBooked(i.list, instant)
}

type dayKey struct {
	year  int
	month time.Month
	day   int
}

// HashedIndex precomputes booked days and instants.
type HashedIndex struct {
	days  map[dayKey]struct{}
	slots map[int64]struct{}
}

func NewHashedIndex(list []models.Appointment, loc *time.Location) Index {
	loc = locationOrLocal(loc)
	idx := &HashedIndex{
		days:  make(map[dayKey]struct{}, len(list)),
		slots: make(map[int64]struct{}, len(list)),
	}
	for _, apt := range list {
		y, m, d := apt.Datetime.In(loc).Date()
		idx.days[dayKey{y, m, d}] = struct{}{}
		idx.slots[apt.Datetime.UnixNano()] = struct{}{}
	}
	return idx
}

func (i *HashedIndex) IsDateBooked(year int, month time.Month, day int) bool {
	_, ok := i.days[dayKey{year, month, day}]
	return ok
}

func (i *HashedIndex) IsSlotBooked(instant time.Time) bool {
	_, ok := i.slots[instant.UnixNano()]
	return ok
}

func locationOrLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
