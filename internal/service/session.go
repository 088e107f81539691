package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"barbershop/internal/availability"
	"barbershop/internal/domain"
	"barbershop/internal/events"
	"barbershop/internal/history"
	"barbershop/internal/models"
	"barbershop/internal/schedule"
	"barbershop/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrDateNotSelectable = errors.New("date is not selectable")
	ErrNoDateSelected    = errors.New("no date selected")
	ErrSlotUnavailable   = errors.New("slot is not available")
	ErrNoSlotSelected    = errors.New("no slot selected")
	ErrServiceRequired   = errors.New("at least one service is required")
	ErrSlotTaken         = errors.New("slot was booked in the meantime")
	ErrUnknownEvent      = errors.New("unknown event")
)

type State string

const (
	StateNoDateSelected State = "no_date_selected"
	StateDateSelected   State = "date_selected"
	StateSlotSelected   State = "slot_selected"
	StateCommitted      State = "committed"
)

type EventKind string

const (
	EventMonthChanged         EventKind = "month_changed"
	EventDateClicked          EventKind = "date_clicked"
	EventSlotClicked          EventKind = "slot_clicked"
	EventFormSubmitted        EventKind = "form_submitted"
	EventExternalStoreChanged EventKind = "external_store_changed"
)

// Event is one user or storage input. Only the fields of its Kind are read.
type Event struct {
	Kind     EventKind
	Delta    int
	Date     time.Time
	Instant  time.Time
	Name     string
	Phone    string
	Services []string
	Key      string
}

// SchedulerSession owns the booking state of one client view. Events are
// handled one at a time.
type SchedulerSession struct {
	store    *store.AppointmentStore
	renderer domain.Renderer
	events   domain.EventPublisher
	logger   *zerolog.Logger

	now      func() time.Time
	loc      *time.Location
	hours    schedule.WorkingHours
	closed   map[time.Weekday]bool
	newIndex availability.Factory

	mu           sync.Mutex
	state        State
	viewYear     int
	viewMonth    time.Month
	selectedDate *time.Time
	selectedSlot *time.Time
}

type Option func(*SchedulerSession)

func WithClock(now func() time.Time) Option {
	return func(s *SchedulerSession) { s.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(s *SchedulerSession) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithWorkingHours(hours schedule.WorkingHours) Option {
	return func(s *SchedulerSession) { s.hours = hours }
}

func WithClosedDays(closed map[time.Weekday]bool) Option {
	return func(s *SchedulerSession) { s.closed = closed }
}

func WithIndexFactory(factory availability.Factory) Option {
	return func(s *SchedulerSession) { s.newIndex = factory }
}

func WithPublisher(publisher domain.EventPublisher) Option {
	return func(s *SchedulerSession) { s.events = publisher }
}

func WithLogger(logger *zerolog.Logger) Option {
	return func(s *SchedulerSession) { s.logger = logger }
}

func NewSchedulerSession(appointments *store.AppointmentStore, renderer domain.Renderer, opts ...Option) *SchedulerSession {
	nop := zerolog.Nop()
	s := &SchedulerSession{
		store:    appointments,
		renderer: renderer,
		logger:   &nop,
		now:      time.Now,
		loc:      time.Local,
		hours:    schedule.DefaultWorkingHours,
		closed:   map[time.Weekday]bool{time.Sunday: true},
		newIndex: availability.NewHashedIndex,
		state:    StateNoDateSelected,
	}
	for _, opt := range opts {
		opt(s)
	}

	today := s.now().In(s.loc)
	s.viewYear, s.viewMonth = today.Year(), today.Month()
	return s
}

// Start loads the persisted list, runs the retention sweep and renders the initial view.
func (s *SchedulerSession) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.store.Load(ctx)
	s.logger.Info().Int("count", len(list)).Msg("Appointments loaded")

	if !s.store.Synced() {
		s.logger.Warn().Msg("Appointments could not be read, skipping retention cleanup")
	} else if res, err := s.store.Cleanup(ctx, s.now()); err != nil {
		s.logger.Error().Err(err).Msg("Retention cleanup failed")
	} else if res.Removed > 0 {
		s.publish(events.EventAppointmentsPruned, events.PrunePayload{Removed: res.Removed, Cutoff: res.Cutoff})
	}

	s.renderAll()
}

// HandleEvent is the single dispatcher for every input.
func (s *SchedulerSession) HandleEvent(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatch(ctx, ev)
}

// HandleEventAndObserve handles ev, then runs observe before any other event
// starts. observe sees exactly what ev rendered.
func (s *SchedulerSession) HandleEventAndObserve(ctx context.Context, ev Event, observe func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.dispatch(ctx, ev)
	observe()
	return err
}

// Observe runs fn between events.
func (s *SchedulerSession) Observe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *SchedulerSession) dispatch(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventMonthChanged:
		s.changeMonth(ev.Delta)
		return nil
	case EventDateClicked:
		return s.selectDate(ev.Date)
	case EventSlotClicked:
		return s.selectSlot(ev.Instant)
	case EventFormSubmitted:
		return s.submit(ctx, ev)
	case EventExternalStoreChanged:
		s.reload(ctx, ev.Key)
		return nil
	default:
		return ErrUnknownEvent
	}
}

func (s *SchedulerSession) changeMonth(delta int) {
	first := time.Date(s.viewYear, s.viewMonth, 1, 0, 0, 0, 0, s.loc).AddDate(0, delta, 0)
	s.viewYear, s.viewMonth = first.Year(), first.Month()
	s.renderGrid(s.index())
}

func (s *SchedulerSession) selectDate(date time.Time) error {
	if date.IsZero() {
		return ErrDateNotSelectable
	}
	y, m, d := date.In(s.loc).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	if s.closed[day.Weekday()] {
		return ErrDateNotSelectable
	}

	s.selectedDate = &day
	s.selectedSlot = nil
	s.state = StateDateSelected

	s.renderer.RenderServiceError(false)
	s.renderer.RenderBookingForm(false, time.Time{})
	s.renderSlots(s.index())
	return nil
}

func (s *SchedulerSession) selectSlot(instant time.Time) error {
	if s.selectedDate == nil {
		return ErrNoDateSelected
	}
	if !s.offered(instant) || s.index().IsSlotBooked(instant) {
		return ErrSlotUnavailable
	}

	slot := instant.In(s.loc)
	s.selectedSlot = &slot
	s.state = StateSlotSelected

	s.renderSlots(s.index())
	s.renderer.RenderBookingForm(true, slot)
	return nil
}

// offered reports whether instant is one of the slots of the selected date.
func (s *SchedulerSession) offered(instant time.Time) bool {
	for _, slot := range s.hours.Slots(*s.selectedDate) {
		if slot.Equal(instant) {
			return true
		}
	}
	return false
}

func (s *SchedulerSession) submit(ctx context.Context, ev Event) error {
	if s.selectedSlot == nil {
		return ErrNoSlotSelected
	}
	slot := *s.selectedSlot

	services := NormalizeServices(ev.Services)
	if len(services) == 0 {
		s.renderer.RenderServiceError(true)
		s.publish(events.EventBookingRejected, events.RejectionPayload{Reason: events.ReasonServiceRequired, Instant: slot})
		return ErrServiceRequired
	}
	s.renderer.RenderServiceError(false)

	// Another handle may have booked the slot since it was selected.
	if _, err := s.store.Refresh(ctx); err != nil {
		if !errors.Is(err, store.ErrCorruptPersistedData) {
			s.logger.Error().Err(err).Time("slot", slot).Msg("Could not re-read appointments before booking")
			s.renderer.Notify(models.Notice{Level: models.NoticeError, Message: models.MessageBookingFailed})
			s.publish(events.EventBookingRejected, events.RejectionPayload{Reason: events.ReasonPersistence, Instant: slot})
			return err
		}
		s.logger.Warn().Err(err).Msg("Persisted appointments are corrupt, booking over them")
	}
	index := s.index()
	if index.IsSlotBooked(slot) {
		s.selectedSlot = nil
		s.state = StateDateSelected
		s.renderer.RenderBookingForm(false, time.Time{})
		s.renderGrid(index)
		s.renderSlots(index)
		s.renderer.Notify(models.Notice{Level: models.NoticeError, Message: models.MessageSlotTaken})
		s.publish(events.EventBookingRejected, events.RejectionPayload{Reason: events.ReasonSlotTaken, Instant: slot})
		return ErrSlotTaken
	}

	createdAt := s.now()
	apt := models.Appointment{
		ID:        uuid.NewString(),
		Datetime:  slot,
		Name:      strings.TrimSpace(ev.Name),
		Phone:     strings.TrimSpace(ev.Phone),
		Services:  services,
		CreatedAt: &createdAt,
	}

	if err := s.store.Append(ctx, apt); err != nil {
		s.logger.Error().Err(err).Time("slot", slot).Msg("Error saving appointment")
		s.renderer.Notify(models.Notice{Level: models.NoticeError, Message: models.MessageSaveFailed})
		s.publish(events.EventBookingRejected, events.RejectionPayload{Reason: events.ReasonPersistence, Instant: slot})
		return err
	}

	s.selectedSlot = nil
	s.state = StateCommitted

	index = s.index()
	s.renderGrid(index)
	s.renderSlots(index)
	s.renderHistory()
	s.renderer.RenderBookingForm(false, time.Time{})
	s.renderer.ResetBookingForm()
	s.renderer.Notify(models.Notice{Level: models.NoticeSuccess, Message: models.MessageBookingSucceeded})

	s.logger.Info().Str("id", apt.ID).Time("slot", slot).Strs("services", services).Msg("Appointment booked")
	s.publish(events.EventAppointmentBooked, events.AppointmentPayload{
		ID:       apt.ID,
		Datetime: apt.Datetime,
		Name:     apt.Name,
		Phone:    apt.Phone,
		Services: apt.Services,
	})
	return nil
}

// reload replaces the in-memory list after another handle wrote it. The selected
// date survives so the slot list can be redrawn with fresh flags.
func (s *SchedulerSession) reload(ctx context.Context, key string) {
	if key != models.KeyAppointments {
		return
	}

	list := s.store.Load(ctx)
	s.selectedSlot = nil
	if s.selectedDate != nil {
		s.state = StateDateSelected
	} else {
		s.state = StateNoDateSelected
	}

	s.logger.Info().Int("count", len(list)).Msg("Appointments changed externally, reloaded")
	s.publish(events.EventStoreReloaded, events.ReloadPayload{Key: key, Count: len(list)})
	s.renderAll()
}

func (s *SchedulerSession) renderAll() {
	index := s.index()
	s.renderGrid(index)
	s.renderSlots(index)
	s.renderHistory()
	s.renderer.RenderServiceError(false)
	s.renderer.RenderBookingForm(false, time.Time{})
}

func (s *SchedulerSession) renderGrid(index availability.Index) {
	s.renderer.RenderMonthGrid(schedule.MonthGrid(s.viewYear, s.viewMonth, s.loc, s.closed, index))
}

func (s *SchedulerSession) renderSlots(index availability.Index) {
	if s.selectedDate == nil {
		s.renderer.RenderSlotList(nil)
		return
	}
	s.renderer.RenderSlotList(schedule.SlotViews(s.hours.Slots(*s.selectedDate), index, s.selectedSlot))
}

func (s *SchedulerSession) renderHistory() {
	view := s.historyView()
	if view.Err != nil {
		s.logger.Error().Err(view.Err).Msg("Error rendering history")
	}
	s.renderer.RenderHistory(view)
}

func (s *SchedulerSession) historyView() models.HistoryView {
	return history.Visible(s.store.Snapshot(), s.now().In(s.loc))
}

func (s *SchedulerSession) index() availability.Index {
	return s.newIndex(s.store.Snapshot(), s.loc)
}

func (s *SchedulerSession) publish(eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

// History returns the history as currently visible.
func (s *SchedulerSession) History() models.HistoryView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyView()
}

func (s *SchedulerSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Selection returns the selected date and slot; zero values mean nothing selected.
func (s *SchedulerSession) Selection() (date, slot time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedDate != nil {
		date = *s.selectedDate
	}
	if s.selectedSlot != nil {
		slot = *s.selectedSlot
	}
	return date, slot
}

func (s *SchedulerSession) ViewedMonth() (int, time.Month) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewYear, s.viewMonth
}

func (s *SchedulerSession) Location() *time.Location {
	return s.loc
}

// NormalizeServices trims names, drops blanks and keeps the first occurrence of duplicates.
func NormalizeServices(services []string) []string {
	seen := make(map[string]bool, len(services))
	out := make([]string, 0, len(services))
	for _, svc := range services {
		svc = strings.TrimSpace(svc)
		if svc == "" || seen[svc] {
			continue
		}
		seen[svc] = true
		out = append(out, svc)
	}
	return out
}
