package api

import (
	"sync"
	"time"

	"barbershop/internal/models"
)

// FormView is the booking form surface.
type FormView struct {
	Visible      bool      `json:"visible"`
	Prefill      time.Time `json:"prefill,omitempty"`
	ServiceError string    `json:"service_error,omitempty"`
	Resets       int       `json:"resets"`
}

// HistorySurface is what the history panel shows: entries, or one message.
type HistorySurface struct {
	Entries []models.Appointment `json:"entries"`
	Message string               `json:"message,omitempty"`
	Failed  bool                 `json:"failed,omitempty"`
}

// ViewSnapshot is the rendered state of every surface at one moment.
type ViewSnapshot struct {
	Month   models.MonthView  `json:"month"`
	Slots   []models.SlotView `json:"slots"`
	Form    FormView          `json:"form"`
	History HistorySurface    `json:"history"`
	Notices []models.Notice   `json:"notices"`
}

// ViewState keeps the latest output of each surface for HTTP clients.
type ViewState struct {
	mu      sync.Mutex
	current ViewSnapshot
}

func NewViewState() *ViewState {
	return &ViewState{current: ViewSnapshot{
		Slots:   []models.SlotView{},
		History: HistorySurface{Entries: []models.Appointment{}},
		Notices: []models.Notice{},
	}}
}

func (v *ViewState) RenderMonthGrid(view models.MonthView) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current.Month = view
}

func (v *ViewState) RenderSlotList(slots []models.SlotView) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if slots == nil {
		slots = []models.SlotView{}
	}
	v.current.Slots = slots
}

func (v *ViewState) RenderBookingForm(visible bool, prefill time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current.Form.Visible = visible
	v.current.Form.Prefill = prefill
}

func (v *ViewState) RenderServiceError(visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if visible {
		v.current.Form.ServiceError = models.MessageServiceRequired
	} else {
		v.current.Form.ServiceError = ""
	}
}

func (v *ViewState) ResetBookingForm() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current.Form.Prefill = time.Time{}
	v.current.Form.ServiceError = ""
	v.current.Form.Resets++
}

func (v *ViewState) RenderHistory(view models.HistoryView) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case view.Err != nil:
		v.current.History = HistorySurface{Entries: []models.Appointment{}, Message: models.MessageHistoryFailed, Failed: true}
	case view.Empty:
		v.current.History = HistorySurface{Entries: []models.Appointment{}, Message: models.MessageHistoryEmpty}
	default:
		v.current.History = HistorySurface{Entries: view.Entries}
	}
}

func (v *ViewState) Notify(notice models.Notice) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current.Notices = append(v.current.Notices, notice)
}

// Snapshot returns the current surfaces and drains pending notices.
func (v *ViewState) Snapshot() ViewSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap := v.current
	snap.Slots = make([]models.SlotView, len(v.current.Slots))
	copy(snap.Slots, v.current.Slots)
	snap.Month.Cells = append([]models.CalendarCell(nil), v.current.Month.Cells...)
	snap.Notices = v.current.Notices
	v.current.Notices = []models.Notice{}
	return snap
}
