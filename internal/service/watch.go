package service

import (
	"context"

	"barbershop/internal/domain"

	"github.com/rs/zerolog"
)

// Dispatcher accepts events, typically SchedulerSession.HandleEvent.
type Dispatcher func(ctx context.Context, ev Event) error

// WatchStore feeds change notifications of notifier into dispatch until ctx ends.
// The returned channel is closed once the watcher stops.
func WatchStore(ctx context.Context, notifier domain.ChangeNotifier, dispatch Dispatcher, logger *zerolog.Logger) (<-chan struct{}, error) {
	changes, err := notifier.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for key := range changes {
			logger.Debug().Str("key", key).Msg("store changed externally")
			if err := dispatch(ctx, Event{Kind: EventExternalStoreChanged, Key: key}); err != nil {
				logger.Error().Err(err).Str("key", key).Msg("failed to handle store change")
			}
		}
	}()
	return done, nil
}
