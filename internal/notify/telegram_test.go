package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"barbershop/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	err     error
	release chan struct{}
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) messages() []tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), f.sent...)
}

var brt = time.FixedZone("BRT", -3*60*60)

func payload() events.AppointmentPayload {
	return events.AppointmentPayload{
		ID:       "a1",
		Datetime: time.Date(2025, time.March, 12, 11, 0, 0, 0, time.UTC),
		Name:     "Ana",
		Phone:    "111",
		Services: []string{"Corte", "Barba"},
	}
}

func TestFormatBooking(t *testing.T) {
	text := FormatBooking(payload(), brt)
	assert.Equal(t, "Novo agendamento\nData: 12/03/2025 às 08:00\nCliente: Ana (111)\nServiços: Corte, Barba", text)

	p := payload()
	p.Phone = ""
	assert.Contains(t, FormatBooking(p, brt), "Cliente: Ana\n")
}

func TestSubscribeSendsToChat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &fakeSender{}
	logger := zerolog.Nop()
	n := NewTelegramNotifier(sender, 4242, brt, &logger)
	go n.Start(ctx)

	bus := events.NewEventBus()
	n.Subscribe(bus)
	require.NoError(t, bus.PublishJSON(events.EventAppointmentBooked, payload()))
	require.NoError(t, bus.PublishJSON(events.EventBookingRejected, events.RejectionPayload{Reason: events.ReasonSlotTaken}))

	require.Eventually(t, func() bool { return len(sender.messages()) == 1 }, time.Second, 10*time.Millisecond)
	msg, ok := sender.messages()[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(4242), msg.ChatID)
	assert.Contains(t, msg.Text, "Cliente: Ana (111)")
}

func TestSlowSendDoesNotBlockPublisher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &fakeSender{release: make(chan struct{})}
	logger := zerolog.Nop()
	n := NewTelegramNotifier(sender, 1, brt, &logger)
	go n.Start(ctx)

	bus := events.NewEventBus()
	n.Subscribe(bus)

	published := make(chan struct{})
	go func() {
		defer close(published)
		for i := 0; i < 3; i++ {
			_ = bus.PublishJSON(events.EventAppointmentBooked, payload())
		}
	}()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publishing waited for a pending telegram send")
	}

	close(sender.release)
	assert.Eventually(t, func() bool { return len(sender.messages()) == 3 }, time.Second, 10*time.Millisecond)
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	logger := zerolog.Nop()
	n := NewTelegramNotifier(&fakeSender{}, 1, brt, &logger)

	for i := 0; i < cap(n.queue); i++ {
		require.NoError(t, n.Enqueue(payload()))
	}
	assert.ErrorIs(t, n.Enqueue(payload()), ErrQueueFull)
}

func TestNotifyBookedError(t *testing.T) {
	sender := &fakeSender{err: errors.New("network down")}
	logger := zerolog.Nop()
	n := NewTelegramNotifier(sender, 1, nil, &logger)

	assert.EqualError(t, n.NotifyBooked(payload()), "network down")
}
