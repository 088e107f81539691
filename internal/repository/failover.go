package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"barbershop/internal/domain"

	"github.com/rs/zerolog"
)

var (
	// ErrNotificationsUnsupported is returned by Subscribe when the primary cannot announce changes.
	ErrNotificationsUnsupported = errors.New("store does not support change notifications")
	// ErrMirrorCold is returned for reads while the primary is down and the mirror
	// never saw the key, so "absent" cannot be told apart from "unknown".
	ErrMirrorCold = errors.New("primary store unavailable and key not mirrored")
)

// FailoverStore serves reads from a local mirror while the primary is unreachable.
// Writes always go to the primary and its errors are returned as is: a booking
// must never look saved when it was not.
type FailoverStore struct {
	primary domain.KeyValueStore
	mirror  *MemoryStore
	logger  *zerolog.Logger
	retry   RetryPolicy
	now     func() time.Time

	mu        sync.Mutex
	failures  int
	nextProbe time.Time
	primed    map[string]bool
}

func NewFailoverStore(primary domain.KeyValueStore, retry RetryPolicy, logger *zerolog.Logger) *FailoverStore {
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 5 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	return &FailoverStore{
		primary: primary,
		mirror:  NewMemoryStore(0),
		logger:  logger,
		retry:   retry,
		now:     time.Now,
		primed:  make(map[string]bool),
	}
}

func (r *FailoverStore) isDown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures > 0 && r.now().Before(r.nextProbe)
}

func (r *FailoverStore) markDown(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
	delay := r.retry.NextDelay(r.failures)
	r.nextProbe = r.now().Add(delay)
	r.logger.Error().Err(err).Int("failures", r.failures).Dur("retry_in", delay).Msg("Primary store failed, serving reads from mirror")
}

func (r *FailoverStore) markUp() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.logger.Info().Int("failures", r.failures).Msg("Primary store recovered")
	}
	r.failures = 0
	r.nextProbe = time.Time{}
}

func (r *FailoverStore) prime(keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		r.primed[key] = true
	}
}

func (r *FailoverStore) isPrimed(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.primed[key]
}

func (r *FailoverStore) Get(ctx context.Context, key string) (string, bool, error) {
	if !r.isDown() {
		val, ok, err := r.primary.Get(ctx, key)
		if err == nil {
			r.markUp()
			if ok {
				_ = r.mirror.Set(ctx, key, val)
			}
			r.prime(key)
			return val, ok, nil
		}
		r.markDown(err)
	}

	if !r.isPrimed(key) {
		return "", false, ErrMirrorCold
	}
	return r.mirror.Get(ctx, key)
}

func (r *FailoverStore) Set(ctx context.Context, key, value string) error {
	return r.SetMany(ctx, map[string]string{key: value})
}

func (r *FailoverStore) SetMany(ctx context.Context, entries map[string]string) error {
	if err := r.primary.SetMany(ctx, entries); err != nil {
		r.markDown(err)
		return err
	}
	r.markUp()
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	r.prime(keys...)
	return r.mirror.SetMany(ctx, entries)
}

func (r *FailoverStore) Subscribe(ctx context.Context) (<-chan string, error) {
	notifier, ok := r.primary.(domain.ChangeNotifier)
	if !ok {
		return nil, ErrNotificationsUnsupported
	}
	return notifier.Subscribe(ctx)
}
