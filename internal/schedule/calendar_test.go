package schedule

import (
	"testing"
	"time"

	"barbershop/internal/availability"
	"barbershop/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthTitle(t *testing.T) {
	assert.Equal(t, "março de 2025", MonthTitle(2025, time.March))
	assert.Equal(t, "janeiro de 2024", MonthTitle(2024, time.January))
	assert.Equal(t, "dezembro de 2023", MonthTitle(2023, time.December))
}

func TestMonthGrid(t *testing.T) {
	closed := map[time.Weekday]bool{time.Sunday: true}
	list := []models.Appointment{
		{Datetime: time.Date(2025, time.March, 12, 8, 0, 0, 0, brt), Services: []string{"Corte"}},
		// Sunday bookings never mark the day; the day stays disabled.
		{Datetime: time.Date(2025, time.March, 2, 8, 0, 0, 0, brt), Services: []string{"Corte"}},
	}
	index := availability.NewHashedIndex(list, brt)

	// 1 March 2025 is a Saturday: six padding cells.
	view := MonthGrid(2025, time.March, brt, closed, index)
	assert.Equal(t, "março de 2025", view.Title)
	assert.Equal(t, 2025, view.Year)
	assert.Equal(t, time.March, view.Month)
	require.Len(t, view.Cells, 6+31)

	for i := 0; i < 6; i++ {
		assert.True(t, view.Cells[i].Padding)
		assert.True(t, view.Cells[i].Disabled)
		assert.Zero(t, view.Cells[i].Day)
	}

	first := view.Cells[6]
	assert.Equal(t, 1, first.Day)
	assert.Equal(t, time.Saturday, first.Date.Weekday())
	assert.False(t, first.Disabled)

	sunday := view.Cells[6+1]
	assert.Equal(t, 2, sunday.Day)
	assert.True(t, sunday.Disabled)
	assert.False(t, sunday.Booked)

	booked := view.Cells[6+11]
	assert.Equal(t, 12, booked.Day)
	assert.True(t, booked.Booked)
	assert.False(t, booked.Disabled)

	free := view.Cells[6+12]
	assert.Equal(t, 13, free.Day)
	assert.False(t, free.Booked)
}

func TestMonthGridLengths(t *testing.T) {
	index := availability.NewScanIndex(nil, time.UTC)

	cases := []struct {
		name    string
		year    int
		month   time.Month
		padding int
		days    int
	}{
		{"february leap year", 2024, time.February, 4, 29},
		{"february", 2025, time.February, 6, 28},
		{"starts on sunday", 2025, time.June, 0, 30},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			view := MonthGrid(tc.year, tc.month, time.UTC, nil, index)
			require.Len(t, view.Cells, tc.padding+tc.days)
			assert.Equal(t, 1, view.Cells[tc.padding].Day)
			assert.Equal(t, tc.days, view.Cells[len(view.Cells)-1].Day)
		})
	}
}
