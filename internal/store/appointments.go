package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"barbershop/internal/domain"
	"barbershop/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrCorruptPersistedData marks a persisted value that is not a JSON array of appointments.
	ErrCorruptPersistedData = errors.New("corrupt persisted appointments")
	// ErrPersistenceWrite marks a failed write; the in-memory list is left as it was.
	ErrPersistenceWrite = errors.New("failed to persist appointments")
	// ErrPersistenceRead marks a backend read failure. Writes that would replace the
	// persisted list are refused until a read succeeds.
	ErrPersistenceRead = errors.New("failed to read persisted appointments")
)

// PruneResult reports what a retention sweep did.
type PruneResult struct {
	Ran     bool
	Removed int
	Cutoff  time.Time
}

// AppointmentStore owns the appointment list and keeps it in step with the key-value store.
// Callers only ever see copies.
type AppointmentStore struct {
	kv              domain.KeyValueStore
	logger          *zerolog.Logger
	retentionMonths int
	cleanupInterval time.Duration

	mu     sync.RWMutex
	list   []models.Appointment
	synced bool
}

type Option func(*AppointmentStore)

func WithRetention(months int) Option {
	return func(s *AppointmentStore) {
		if months > 0 {
			s.retentionMonths = months
		}
	}
}

func WithCleanupInterval(interval time.Duration) Option {
	return func(s *AppointmentStore) {
		if interval > 0 {
			s.cleanupInterval = interval
		}
	}
}

func NewAppointmentStore(kv domain.KeyValueStore, logger *zerolog.Logger, opts ...Option) *AppointmentStore {
	s := &AppointmentStore{
		kv:              kv,
		logger:          logger,
		retentionMonths: models.DefaultRetentionMonths,
		cleanupInterval: models.DefaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory list with the persisted one. Missing, unreadable or
// malformed data all yield an empty list. After an unreadable backend the store is
// out of sync (see Synced) and will not overwrite the persisted list.
func (s *AppointmentStore) Load(ctx context.Context) []models.Appointment {
	synced := true
	list, err := s.read(ctx)
	if err != nil {
		if errors.Is(err, ErrCorruptPersistedData) {
			s.logger.Warn().Err(err).Msg("Invalid appointments data format, resetting to empty list")
		} else {
			s.logger.Error().Err(err).Msg("Error loading appointments")
			synced = false
		}
		list = []models.Appointment{}
	}

	s.mu.Lock()
	s.list = list
	s.synced = synced
	s.mu.Unlock()

	return clone(list)
}

// Synced reports whether the in-memory list comes from a successful read or write.
func (s *AppointmentStore) Synced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced
}

func (s *AppointmentStore) read(ctx context.Context) ([]models.Appointment, error) {
	raw, found, err := s.kv.Get(ctx, models.KeyAppointments)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceRead, err)
	}
	if !found {
		s.logger.Debug().Msg("No persisted appointments")
		return []models.Appointment{}, nil
	}

	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: not a JSON array", ErrCorruptPersistedData)
	}

	var list []models.Appointment
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPersistedData, err)
	}
	if list == nil {
		list = []models.Appointment{}
	}
	return list, nil
}

// Refresh re-reads the persisted list. Unlike Load it keeps the in-memory list
// when the read fails or the data is corrupt.
func (s *AppointmentStore) Refresh(ctx context.Context) ([]models.Appointment, error) {
	list, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.list = list
	s.synced = true
	s.mu.Unlock()

	return clone(list), nil
}

// Snapshot returns a copy of the current list.
func (s *AppointmentStore) Snapshot() []models.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.list)
}

// Save writes the full list. On success it becomes the in-memory list.
func (s *AppointmentStore) Save(ctx context.Context, list []models.Appointment) error {
	next := clone(list)
	data, err := marshal(next)
	if err != nil {
		return err
	}

	if err := s.kv.Set(ctx, models.KeyAppointments, data); err != nil {
		s.logger.Error().Err(err).Int("count", len(next)).Msg("Error saving appointments")
		return fmt.Errorf("%w: %w", ErrPersistenceWrite, err)
	}

	s.mu.Lock()
	s.list = next
	s.synced = true
	s.mu.Unlock()
	return nil
}

// Append adds one appointment and persists the list as a single operation.
// It refuses to run on a list that never came from the backend.
func (s *AppointmentStore) Append(ctx context.Context, apt models.Appointment) error {
	if !s.Synced() {
		return fmt.Errorf("%w: appointments not loaded", ErrPersistenceRead)
	}
	next := append(s.Snapshot(), apt)
	return s.Save(ctx, next)
}

// PruneOlderThan drops appointments at or before cutoff. It only runs when the
// previous run is older than the cleanup interval; the list and the new gate
// are written together so a failed write never advances the gate. Nothing runs
// while the in-memory list is out of sync with the backend.
func (s *AppointmentStore) PruneOlderThan(ctx context.Context, cutoff, now time.Time) (PruneResult, error) {
	if !s.Synced() {
		return PruneResult{}, fmt.Errorf("%w: appointments not loaded", ErrPersistenceRead)
	}
	if !s.cleanupDue(ctx, now) {
		return PruneResult{}, nil
	}

	current := s.Snapshot()
	kept := make([]models.Appointment, 0, len(current))
	for _, apt := range current {
		if apt.Datetime.After(cutoff) {
			kept = append(kept, apt)
		}
	}

	data, err := marshal(kept)
	if err != nil {
		return PruneResult{}, err
	}

	err = s.kv.SetMany(ctx, map[string]string{
		models.KeyAppointments: data,
		models.KeyLastCleanup:  strconv.FormatInt(now.UnixMilli(), 10),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Error saving pruned appointments")
		return PruneResult{}, fmt.Errorf("%w: %w", ErrPersistenceWrite, err)
	}

	s.mu.Lock()
	s.list = kept
	s.mu.Unlock()

	removed := len(current) - len(kept)
	s.logger.Info().Int("removed", removed).Time("cutoff", cutoff).Msg("Old appointments cleaned up")
	return PruneResult{Ran: true, Removed: removed, Cutoff: cutoff}, nil
}

// Cleanup runs the retention sweep with the configured retention window.
func (s *AppointmentStore) Cleanup(ctx context.Context, now time.Time) (PruneResult, error) {
	return s.PruneOlderThan(ctx, now.AddDate(0, -s.retentionMonths, 0), now)
}

func (s *AppointmentStore) cleanupDue(ctx context.Context, now time.Time) bool {
	raw, found, err := s.kv.Get(ctx, models.KeyLastCleanup)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read last cleanup, skipping cleanup")
		return false
	}
	if !found {
		return true
	}
	lastMillis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn().Str("value", raw).Msg("Unparsable last cleanup timestamp, running cleanup")
		return true
	}
	return now.Sub(time.UnixMilli(lastMillis)) > s.cleanupInterval
}

func marshal(list []models.Appointment) (string, error) {
	if list == nil {
		list = []models.Appointment{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("marshal appointments: %w", err)
	}
	return string(data), nil
}

func clone(list []models.Appointment) []models.Appointment {
	out := make([]models.Appointment, len(list))
	for i, apt := range list {
		apt.Services = append([]string(nil), apt.Services...)
		out[i] = apt
	}
	return out
}
