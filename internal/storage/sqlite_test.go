package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusguard/internal/core/model"
	"focusguard/internal/storage"
)

func openTestDatabase(t *testing.T) *storage.Database {
	t.Helper()
	database, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestDatabase(t).Store()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Set(ctx, "alpha", []byte(`{"n":1}`)))
	require.NoError(t, store.Set(ctx, "alpha", []byte(`{"n":2}`)))
	value, err := store.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(value))

	require.NoError(t, store.SetMultiple(ctx, map[string][]byte{
		"beta":  []byte(`true`),
		"gamma": []byte(`"x"`),
	}))
	values, err := store.GetMultiple(ctx, []string{"alpha", "beta", "missing"})
	require.NoError(t, err)
	assert.Len(t, values, 2)

	require.NoError(t, store.Remove(ctx, "alpha"))
	_, err = store.Get(ctx, "alpha")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	sessions := openTestDatabase(t).Sessions()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, sessions.Insert(ctx, storage.WorkSession{
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			EndedAt:   base.Add(time.Duration(i)*time.Hour + 25*time.Minute),
			WorkTime:  25 * time.Minute,
			BreakType: model.BreakShort,
		}))
	}

	recent, err := sessions.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].EndedAt.After(recent[1].EndedAt), "newest first")
	assert.NotEmpty(t, recent[0].ID)
	assert.Equal(t, 25*time.Minute, recent[0].WorkTime)

	total, count, err := sessions.TotalSince(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 50*time.Minute, total)

	require.NoError(t, sessions.Clear(ctx))
	recent, err = sessions.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestLoadBreakSettingsDefaultsAndMigration(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	settings, err := storage.LoadBreakSettings(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultBreakSettings(), settings)

	// A v0 record missing break types and with an oversized threshold
	// migrates on load and is written back.
	require.NoError(t, store.Set(ctx, storage.SettingsKey,
		[]byte(`{"workTimeThresholdMinutes":500,"notificationsEnabled":false}`)))
	settings, err = storage.LoadBreakSettings(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, model.MaxWorkThresholdMinutes, settings.WorkTimeThresholdMinutes)
	assert.False(t, settings.NotificationsEnabled)
	assert.Len(t, settings.BreakTypes, 3)
	assert.Equal(t, model.SettingsVersion, settings.Version)

	raw, err := store.Get(ctx, storage.SettingsKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"version":1`)
}

func TestSaveBreakSettingsValidates(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	settings := model.DefaultBreakSettings()
	settings.WorkTimeThresholdMinutes = 1
	assert.Error(t, storage.SaveBreakSettings(ctx, store, settings))
	assert.Equal(t, 0, store.Len())
}
