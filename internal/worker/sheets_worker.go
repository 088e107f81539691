package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"barbershop/internal/events"
	"barbershop/internal/models"
	"barbershop/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SheetsClient receives booked appointments.
type SheetsClient interface {
	AppendAppointment(ctx context.Context, apt models.Appointment) error
}

// SheetTask describes a unit of work for Sheets.
type SheetTask struct {
	Appointment models.Appointment `json:"appointment"`
	Attempt     int                `json:"attempt"`
	LastError   string             `json:"last_error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// SheetsWorker mirrors booked appointments into Google Sheets off the request
// path. Failed tasks are retried with backoff; exhausted ones go to a Redis
// dead-letter list when Redis is configured.
type SheetsWorker struct {
	sheets        SheetsClient
	redis         *redis.Client
	retryPolicy   repository.RetryPolicy
	maxRetries    int
	queue         chan SheetTask
	deadLetterKey string
	logger        *zerolog.Logger
}

// NewSheetsWorker builds a worker with sane defaults.
func NewSheetsWorker(sheets SheetsClient, redisClient *redis.Client, retry repository.RetryPolicy, maxRetries int, logger *zerolog.Logger) *SheetsWorker {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &SheetsWorker{
		sheets:        sheets,
		redis:         redisClient,
		retryPolicy:   retry,
		maxRetries:    maxRetries,
		queue:         make(chan SheetTask, 128),
		deadLetterKey: "sheets:deadletter",
		logger:        logger,
	}
}

// SetDeadLetterKey overrides the Redis list that receives exhausted tasks.
func (w *SheetsWorker) SetDeadLetterKey(key string) {
	w.deadLetterKey = key
}

// Subscribe enqueues every booked appointment.
func (w *SheetsWorker) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventAppointmentBooked, func(e *events.Event) error {
		var p events.AppointmentPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return w.Enqueue(models.Appointment{
			ID:       p.ID,
			Datetime: p.Datetime,
			Name:     p.Name,
			Phone:    p.Phone,
			Services: p.Services,
		})
	})
}

var ErrQueueFull = errors.New("sheets queue is full")

func (w *SheetsWorker) Enqueue(apt models.Appointment) error {
	return w.push(SheetTask{Appointment: apt, CreatedAt: time.Now()})
}

func (w *SheetsWorker) push(task SheetTask) error {
	select {
	case w.queue <- task:
		return nil
	default:
		w.logger.Warn().Str("appointment_id", task.Appointment.ID).Msg("sheets_worker: in-memory queue full, task dropped")
		return ErrQueueFull
	}
}

// Start launches main loop; stops when ctx is done.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sheets_worker: started")
	defer w.logger.Info().Msg("sheets_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.queue:
			w.processTask(ctx, task)
		}
	}
}

func (w *SheetsWorker) processTask(ctx context.Context, task SheetTask) {
	err := w.sheets.AppendAppointment(ctx, task.Appointment)
	if err == nil {
		w.logger.Debug().Str("appointment_id", task.Appointment.ID).Msg("sheets_worker: appointment synced")
		return
	}
	w.retryOrFail(ctx, task, err)
}

func (w *SheetsWorker) retryOrFail(ctx context.Context, task SheetTask, cause error) {
	task.Attempt++
	task.LastError = cause.Error()

	if task.Attempt >= w.maxRetries {
		w.logger.Error().Err(cause).Str("appointment_id", task.Appointment.ID).Int("attempts", task.Attempt).Msg("sheets_worker: task failed")
		w.pushDeadLetter(ctx, task)
		return
	}

	delay := w.retryPolicy.NextDelay(task.Attempt)
	w.logger.Warn().Err(cause).Str("appointment_id", task.Appointment.ID).Dur("retry_in", delay).Msg("sheets_worker: retry scheduled")

	time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		_ = w.push(task)
	})
}

func (w *SheetsWorker) pushDeadLetter(ctx context.Context, task SheetTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Msg("sheets_worker: encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Str("appointment_id", task.Appointment.ID).Msg("sheets_worker: deadletter push")
	}
}
