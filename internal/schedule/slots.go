package schedule

import (
	"fmt"
	"time"

	"barbershop/internal/availability"
	"barbershop/internal/models"
)

// WorkingHours describes the bookable part of a day in minutes after midnight.
// End is exclusive: the last slot starts at End-Step.
type WorkingHours struct {
	Start int
	End   int
	Step  int
}

var DefaultWorkingHours = WorkingHours{
	Start: models.DefaultWorkStartHour * 60,
	End:   models.DefaultWorkEndHour * 60,
	Step:  models.DefaultSlotMinutes,
}

// GenerateSlots returns the default slots (08:00 through 17:30) for the calendar date of date.
func GenerateSlots(date time.Time) []time.Time {
	return DefaultWorkingHours.Slots(date)
}

// Slots returns every slot start on the calendar date of date, in date's location.
func (w WorkingHours) Slots(date time.Time) []time.Time {
	if w.Step <= 0 || w.End <= w.Start {
		return nil
	}
	y, m, d := date.Date()
	loc := date.Location()

	slots := make([]time.Time, 0, (w.End-w.Start+w.Step-1)/w.Step)
	for minute := w.Start; minute < w.End; minute += w.Step {
		slots = append(slots, time.Date(y, m, d, minute/60, minute%60, 0, 0, loc))
	}
	return slots
}

// Contains reports whether instant is one of the slots of its own calendar date.
func (w WorkingHours) Contains(instant time.Time, loc *time.Location) bool {
	local := instant.In(loc)
	for _, slot := range w.Slots(local) {
		if slot.Equal(instant) {
			return true
		}
	}
	return false
}

// SlotViews decorates slots with booked/selected flags for display.
func SlotViews(slots []time.Time, index availability.Index, selected *time.Time) []models.SlotView {
	views := make([]models.SlotView, 0, len(slots))
	for _, slot := range slots {
		views = append(views, models.SlotView{
			Instant:  slot,
			Label:    fmt.Sprintf("%02d:%02d", slot.Hour(), slot.Minute()),
			Booked:   index.IsSlotBooked(slot),
			Selected: selected != nil && selected.Equal(slot),
		})
	}
	return views
}
