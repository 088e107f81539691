package schedule

import (
	"fmt"
	"time"

	"barbershop/internal/availability"
	"barbershop/internal/models"
)

var monthNames = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// MonthTitle formats the month header, e.g. "março de 2025".
func MonthTitle(year int, month time.Month) string {
	return fmt.Sprintf("%s de %d", monthNames[month-1], year)
}

// MonthGrid builds a Sunday-first grid: leading padding cells so day 1 lands in
// its weekday column, then one cell per day. Closed weekdays are disabled.
func MonthGrid(year int, month time.Month, loc *time.Location, closed map[time.Weekday]bool, index availability.Index) models.MonthView {
	firstDay := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	padding := int(firstDay.Weekday())

	cells := make([]models.CalendarCell, 0, padding+daysInMonth)
	for i := 0; i < padding; i++ {
		cells = append(cells, models.CalendarCell{Padding: true, Disabled: true})
	}

	for day := 1; day <= daysInMonth; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, loc)
		cell := models.CalendarCell{Day: day, Date: date}
		if closed[date.Weekday()] {
			cell.Disabled = true
		} else {
			cell.Booked = index.IsDateBooked(year, month, day)
		}
		cells = append(cells, cell)
	}

	return models.MonthView{
		Year:  year,
		Month: month,
		Title: MonthTitle(year, month),
		Cells: cells,
	}
}
