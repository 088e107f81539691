package domain

import (
	"context"
	"time"

	"barbershop/internal/models"
)

// KeyValueStore is the opaque per-origin persistence layer.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// SetMany writes all entries or none of them.
	SetMany(ctx context.Context, entries map[string]string) error
}

// ChangeNotifier reports keys written through other handles of the same store.
type ChangeNotifier interface {
	Subscribe(ctx context.Context) (<-chan string, error)
}

// Renderer is the display surface. It receives fully computed view data.
type Renderer interface {
	RenderMonthGrid(view models.MonthView)
	RenderSlotList(slots []models.SlotView)
	RenderBookingForm(visible bool, prefill time.Time)
	RenderServiceError(visible bool)
	ResetBookingForm()
	RenderHistory(view models.HistoryView)
	Notify(notice models.Notice)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
