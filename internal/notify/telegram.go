// Package notify tells the shop about new bookings over Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"barbershop/internal/config"
	"barbershop/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// sendTimeout bounds a single Bot API request.
const sendTimeout = 10 * time.Second

var ErrQueueFull = errors.New("telegram queue is full")

// Sender is the part of tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends booking messages from its own goroutine, so a slow
// Bot API never holds up the event publisher.
type TelegramNotifier struct {
	sender Sender
	chatID int64
	loc    *time.Location
	logger *zerolog.Logger
	queue  chan events.AppointmentPayload
}

// NewTelegramBot connects to the Telegram Bot API with a bounded HTTP client.
func NewTelegramBot(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	client := &http.Client{Timeout: sendTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

func NewTelegramNotifier(sender Sender, chatID int64, loc *time.Location, logger *zerolog.Logger) *TelegramNotifier {
	if loc == nil {
		loc = time.Local
	}
	return &TelegramNotifier{
		sender: sender,
		chatID: chatID,
		loc:    loc,
		logger: logger,
		queue:  make(chan events.AppointmentPayload, 64),
	}
}

// Subscribe queues a message for every booked appointment. Start delivers them.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventAppointmentBooked, func(e *events.Event) error {
		var p events.AppointmentPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return n.Enqueue(p)
	})
}

// Enqueue never blocks; when the queue is full the message is dropped.
func (n *TelegramNotifier) Enqueue(p events.AppointmentPayload) error {
	select {
	case n.queue <- p:
		return nil
	default:
		n.logger.Warn().Str("appointment_id", p.ID).Msg("telegram: queue full, notification dropped")
		return ErrQueueFull
	}
}

// Start sends queued notifications until ctx is done.
func (n *TelegramNotifier) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-n.queue:
			_ = n.NotifyBooked(p)
		}
	}
}

func (n *TelegramNotifier) NotifyBooked(p events.AppointmentPayload) error {
	msg := tgbotapi.NewMessage(n.chatID, FormatBooking(p, n.loc))
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error().Err(err).Int64("chat_id", n.chatID).Str("appointment_id", p.ID).Msg("telegram: send error")
		return err
	}
	return nil
}

// FormatBooking renders the notification text in the shop's language.
func FormatBooking(p events.AppointmentPayload, loc *time.Location) string {
	local := p.Datetime.In(loc)

	var sb strings.Builder
	sb.WriteString("Novo agendamento\n")
	sb.WriteString(fmt.Sprintf("Data: %s às %s\n", local.Format("02/01/2006"), local.Format("15:04")))
	sb.WriteString(fmt.Sprintf("Cliente: %s", p.Name))
	if p.Phone != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", p.Phone))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Serviços: %s", strings.Join(p.Services, ", ")))
	return sb.String()
}
