package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventAppointmentBooked  = "appointment_booked"
	EventBookingRejected    = "booking_rejected"
	EventAppointmentsPruned = "appointments_pruned"
	EventStoreReloaded      = "store_reloaded"
)

// Reasons carried by EventBookingRejected.
const (
	ReasonServiceRequired = "service_required"
	ReasonSlotTaken       = "slot_taken"
	ReasonPersistence     = "persistence_failure"
)

// AppointmentPayload describes the booked appointment for event consumers.
type AppointmentPayload struct {
	ID       string    `json:"id"`
	Datetime time.Time `json:"datetime"`
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	Services []string  `json:"services"`
}

type RejectionPayload struct {
	Reason  string    `json:"reason"`
	Instant time.Time `json:"instant,omitempty"`
}

type PrunePayload struct {
	Removed int       `json:"removed"`
	Cutoff  time.Time `json:"cutoff"`
}

type ReloadPayload struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
