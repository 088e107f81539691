package store

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"barbershop/internal/models"
	"barbershop/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingKV struct {
	*repository.MemoryStore
	failWrites bool
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	return f.SetMany(ctx, map[string]string{key: value})
}

func (f *failingKV) SetMany(ctx context.Context, entries map[string]string) error {
	if f.failWrites {
		return repository.ErrQuotaExceeded
	}
	return f.MemoryStore.SetMany(ctx, entries)
}

func newTestStore(t *testing.T) (*AppointmentStore, *failingKV, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	kv := &failingKV{MemoryStore: repository.NewMemoryStore(0)}
	return NewAppointmentStore(kv, &logger), kv, &buf
}

func appointmentAt(at time.Time, name string) models.Appointment {
	return models.Appointment{Datetime: at, Name: name, Phone: "111", Services: []string{"Corte"}}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingKey", func(t *testing.T) {
		s, _, buf := newTestStore(t)
		list := s.Load(ctx)
		assert.Empty(t, list)
		assert.NotContains(t, buf.String(), `"level":"warn"`)
	})

	cases := map[string]string{
		"MalformedJSON": "{not json",
		"Object":        `{"datetime":"2025-03-10T08:00:00Z"}`,
		"Null":          "null",
		"String":        `"appointments"`,
		"BadRecord":     `[{"datetime":"yesterday"}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			s, kv, buf := newTestStore(t)
			require.NoError(t, kv.MemoryStore.Set(ctx, models.KeyAppointments, raw))

			var list []models.Appointment
			assert.NotPanics(t, func() { list = s.Load(ctx) })
			assert.NotNil(t, list)
			assert.Empty(t, list)
			assert.Contains(t, buf.String(), `"level":"warn"`)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	list := []models.Appointment{
		appointmentAt(time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC), "Bruno"),
		appointmentAt(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), "Ana"),
		{
			ID:        "d7e2",
			Datetime:  time.Date(2025, 3, 11, 17, 30, 0, 0, time.UTC),
			Name:      "Carla",
			Phone:     "333",
			Services:  []string{"Barba", "Corte"},
			CreatedAt: &created,
		},
	}

	require.NoError(t, s.Save(ctx, list))

	reloaded := NewAppointmentStore(s.kv, s.logger).Load(ctx)
	assert.Equal(t, list, reloaded)
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	s.Load(ctx)
	require.NoError(t, s.Append(ctx, appointmentAt(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), "Ana")))

	snap := s.Snapshot()
	snap[0].Name = "Mutated"
	snap[0].Services[0] = "Mutated"

	fresh := s.Snapshot()
	assert.Equal(t, "Ana", fresh[0].Name)
	assert.Equal(t, "Corte", fresh[0].Services[0])
}

func TestAppendFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	s, kv, _ := newTestStore(t)
	first := appointmentAt(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), "Ana")
	s.Load(ctx)
	require.NoError(t, s.Append(ctx, first))

	kv.failWrites = true
	err := s.Append(ctx, appointmentAt(time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC), "Bruno"))
	assert.ErrorIs(t, err, ErrPersistenceWrite)
	assert.ErrorIs(t, err, repository.ErrQuotaExceeded)

	assert.Equal(t, []models.Appointment{first}, s.Snapshot())

	kv.failWrites = false
	assert.Equal(t, []models.Appointment{first}, s.Load(ctx))
}

func TestPruneOlderThan(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	cutoff := now.AddDate(0, -6, 0)

	seed := func(t *testing.T) (*AppointmentStore, *failingKV) {
		s, kv, _ := newTestStore(t)
		require.NoError(t, s.Save(ctx, []models.Appointment{
			appointmentAt(now.AddDate(-1, -1, 0), "Old"),
			appointmentAt(cutoff, "AtCutoff"),
			appointmentAt(cutoff.Add(time.Minute), "Recent"),
		}))
		return s, kv
	}

	t.Run("RemovesAtOrBeforeCutoff", func(t *testing.T) {
		s, kv := seed(t)
		res, err := s.PruneOlderThan(ctx, cutoff, now)
		require.NoError(t, err)
		assert.Equal(t, PruneResult{Ran: true, Removed: 2, Cutoff: cutoff}, res)

		list := s.Snapshot()
		require.Len(t, list, 1)
		assert.Equal(t, "Recent", list[0].Name)

		gate, ok, _ := kv.Get(ctx, models.KeyLastCleanup)
		assert.True(t, ok)
		assert.Equal(t, strconv.FormatInt(now.UnixMilli(), 10), gate)
	})

	t.Run("GateMakesSecondRunNoop", func(t *testing.T) {
		s, _ := seed(t)
		_, err := s.PruneOlderThan(ctx, cutoff, now)
		require.NoError(t, err)

		require.NoError(t, s.Append(ctx, appointmentAt(now.AddDate(-2, 0, 0), "Ancient")))

		res, err := s.PruneOlderThan(ctx, cutoff.Add(time.Hour), now.Add(23*time.Hour))
		require.NoError(t, err)
		assert.False(t, res.Ran)
		assert.Len(t, s.Snapshot(), 2)
	})

	t.Run("RunsAgainAfterInterval", func(t *testing.T) {
		s, _ := seed(t)
		_, err := s.PruneOlderThan(ctx, cutoff, now)
		require.NoError(t, err)

		res, err := s.PruneOlderThan(ctx, cutoff, now.Add(25*time.Hour))
		require.NoError(t, err)
		assert.True(t, res.Ran)
		assert.Zero(t, res.Removed)
	})

	t.Run("UnparsableGateRuns", func(t *testing.T) {
		s, kv := seed(t)
		require.NoError(t, kv.MemoryStore.Set(ctx, models.KeyLastCleanup, "yesterday"))

		res, err := s.PruneOlderThan(ctx, cutoff, now)
		require.NoError(t, err)
		assert.True(t, res.Ran)
	})

	t.Run("FailedWriteDoesNotAdvanceGate", func(t *testing.T) {
		s, kv := seed(t)
		kv.failWrites = true

		_, err := s.PruneOlderThan(ctx, cutoff, now)
		assert.ErrorIs(t, err, ErrPersistenceWrite)
		assert.Len(t, s.Snapshot(), 3)

		_, ok, _ := kv.Get(ctx, models.KeyLastCleanup)
		assert.False(t, ok)

		kv.failWrites = false
		res, err := s.PruneOlderThan(ctx, cutoff, now)
		require.NoError(t, err)
		assert.True(t, res.Ran)
		assert.Equal(t, 2, res.Removed)
	})
}

func TestCleanupThirteenMonthsOld(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	s, kv, _ := newTestStore(t)
	require.NoError(t, s.Save(ctx, []models.Appointment{appointmentAt(now.AddDate(0, -13, 0), "Ana")}))

	res, err := s.Cleanup(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Empty(t, s.Snapshot())

	gate, ok, _ := kv.Get(ctx, models.KeyLastCleanup)
	require.True(t, ok)
	millis, err := strconv.ParseInt(gate, 10, 64)
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), millis)
}

func TestLoadReadError(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	s := NewAppointmentStore(erroringKV{}, &logger)

	list := s.Load(context.Background())
	assert.Empty(t, list)
	assert.False(t, s.Synced())
	assert.Contains(t, buf.String(), `"level":"error"`)
}

// flakyKV fails the first failGets reads, then behaves like the wrapped store.
type flakyKV struct {
	*repository.MemoryStore
	failGets int
	failKey  string
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGets > 0 && (f.failKey == "" || f.failKey == key) {
		f.failGets--
		return "", false, errors.New("i/o timeout")
	}
	return f.MemoryStore.Get(ctx, key)
}

func TestReadFailureProtectsPersistedList(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	logger := zerolog.Nop()

	seed := func(t *testing.T) (*flakyKV, []models.Appointment) {
		kv := &flakyKV{MemoryStore: repository.NewMemoryStore(0)}
		list := []models.Appointment{
			appointmentAt(now.AddDate(0, 0, 1), "Ana"),
			appointmentAt(now.AddDate(0, 0, 2), "Bruno"),
		}
		require.NoError(t, NewAppointmentStore(kv, &logger).Save(ctx, list))
		return kv, list
	}
	persisted := func(t *testing.T, kv *flakyKV) []models.Appointment {
		return NewAppointmentStore(kv.MemoryStore, &logger).Load(ctx)
	}

	t.Run("PruneRefusedAfterFailedLoad", func(t *testing.T) {
		kv, list := seed(t)
		kv.failGets = 2
		s := NewAppointmentStore(kv, &logger)

		assert.Empty(t, s.Load(ctx))
		_, err := s.Cleanup(ctx, now)
		assert.ErrorIs(t, err, ErrPersistenceRead)

		assert.Equal(t, list, persisted(t, kv))
		_, ok, _ := kv.MemoryStore.Get(ctx, models.KeyLastCleanup)
		assert.False(t, ok)
	})

	t.Run("AppendRefusedAfterFailedLoad", func(t *testing.T) {
		kv, list := seed(t)
		kv.failGets = 1
		s := NewAppointmentStore(kv, &logger)
		s.Load(ctx)

		err := s.Append(ctx, appointmentAt(now.AddDate(0, 0, 3), "Carla"))
		assert.ErrorIs(t, err, ErrPersistenceRead)
		assert.Equal(t, list, persisted(t, kv))

		_, err = s.Refresh(ctx)
		require.NoError(t, err)
		require.NoError(t, s.Append(ctx, appointmentAt(now.AddDate(0, 0, 3), "Carla")))
		assert.Len(t, persisted(t, kv), 3)
	})

	t.Run("RefreshReportsReadError", func(t *testing.T) {
		kv, _ := seed(t)
		s := NewAppointmentStore(kv, &logger)
		s.Load(ctx)
		kv.failGets = 1

		_, err := s.Refresh(ctx)
		assert.ErrorIs(t, err, ErrPersistenceRead)
		assert.False(t, errors.Is(err, ErrCorruptPersistedData))
		assert.Len(t, s.Snapshot(), 2)
	})

	t.Run("UnreadableGateSkipsCleanup", func(t *testing.T) {
		kv, list := seed(t)
		s := NewAppointmentStore(kv, &logger)
		s.Load(ctx)
		kv.failGets, kv.failKey = 1, models.KeyLastCleanup

		res, err := s.PruneOlderThan(ctx, now.AddDate(0, 0, 5), now)
		require.NoError(t, err)
		assert.False(t, res.Ran)
		assert.Equal(t, list, persisted(t, kv))
	})
}

type erroringKV struct{}

func (erroringKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}
func (erroringKV) Set(context.Context, string, string) error { return errors.New("connection refused") }
func (erroringKV) SetMany(context.Context, map[string]string) error {
	return errors.New("connection refused")
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)

	t.Run("PicksUpExternalWrite", func(t *testing.T) {
		s, kv, _ := newTestStore(t)
		require.NoError(t, s.Save(ctx, []models.Appointment{appointmentAt(at, "Ana")}))

		other := NewAppointmentStore(kv.Attach(), s.logger)
		other.Load(ctx)
		require.NoError(t, other.Append(ctx, appointmentAt(at.Add(time.Hour), "Bia")))

		list, err := s.Refresh(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)
		assert.Len(t, s.Snapshot(), 2)
	})

	t.Run("CorruptDataKeepsList", func(t *testing.T) {
		s, kv, _ := newTestStore(t)
		require.NoError(t, s.Save(ctx, []models.Appointment{appointmentAt(at, "Ana")}))
		require.NoError(t, kv.MemoryStore.Set(ctx, models.KeyAppointments, "{not json"))

		_, err := s.Refresh(ctx)
		assert.True(t, errors.Is(err, ErrCorruptPersistedData))
		assert.Len(t, s.Snapshot(), 1)
	})
}
