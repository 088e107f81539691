package models

import "time"

// CalendarCell is one cell of the month grid. Padding cells carry no date.
type CalendarCell struct {
	Day      int       `json:"day,omitempty"`
	Date     time.Time `json:"date,omitempty"`
	Padding  bool      `json:"padding,omitempty"`
	Disabled bool      `json:"disabled"`
	Booked   bool      `json:"booked"`
}

type MonthView struct {
	Year  int            `json:"year"`
	Month time.Month     `json:"month"`
	Title string         `json:"title"`
	Cells []CalendarCell `json:"cells"`
}

type SlotView struct {
	Instant  time.Time `json:"instant"`
	Label    string    `json:"label"`
	Booked   bool      `json:"booked"`
	Selected bool      `json:"selected"`
}

// HistoryView carries either entries, the empty marker or the render failure marker.
type HistoryView struct {
	Entries []Appointment `json:"entries"`
	Empty   bool          `json:"empty"`
	Err     error         `json:"-"`
}

const (
	NoticeSuccess = "success"
	NoticeError   = "error"
)

type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}
