package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventAppointmentBooked, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	instant := time.Date(2025, time.March, 12, 8, 0, 0, 0, time.UTC)
	err := bus.PublishJSON(EventAppointmentBooked, AppointmentPayload{ID: "a1", Datetime: instant, Services: []string{"Corte"}})
	require.NoError(t, err)

	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, EventAppointmentBooked, received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded AppointmentPayload
	require.NoError(t, received.Decode(&decoded))
	assert.Equal(t, "a1", decoded.ID)
	assert.True(t, decoded.Datetime.Equal(instant))
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe(EventBookingRejected, func(_ *Event) error { count1++; return nil })
	bus.Subscribe(EventBookingRejected, func(_ *Event) error { count2++; return nil })
	bus.Subscribe(EventStoreReloaded, func(_ *Event) error { t.Fatal("unexpected handler"); return nil })

	bus.Publish(&Event{Type: EventBookingRejected})

	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	bus.Publish(&Event{Type: "unknown"})
	assert.NoError(t, bus.PublishJSON("unknown", nil))
}

func TestNilBusPublishJSON(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventAppointmentsPruned, PrunePayload{Removed: 1}))
}

func TestPublishJSONMarshalError(t *testing.T) {
	bus := NewEventBus()
	assert.Error(t, bus.PublishJSON(EventStoreReloaded, map[string]interface{}{"bad": make(chan int)}))
}

func TestNewJSONEvent(t *testing.T) {
	event, err := NewJSONEvent(EventBookingRejected, RejectionPayload{Reason: ReasonSlotTaken})
	require.NoError(t, err)
	assert.Equal(t, EventBookingRejected, event.Type)
	assert.False(t, event.CreatedAt.IsZero())

	var decoded RejectionPayload
	require.NoError(t, event.Decode(&decoded))
	assert.Equal(t, ReasonSlotTaken, decoded.Reason)
}
