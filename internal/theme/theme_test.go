package theme

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"npbc-dashboard/internal/storage"
)

type memoryStore struct {
	values map[string]string
	getErr error
}

func (m *memoryStore) GetPreference(_ context.Context, key string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryStore) SetPreference(_ context.Context, key, value string) error {
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

func TestParse(t *testing.T) {
	got, err := Parse(" Dark ")
	require.NoError(t, err)
	assert.Equal(t, Dark, got)

	_, err = Parse("solarized")
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestLoadDefaultsToLight(t *testing.T) {
	got, err := Load(context.Background(), &memoryStore{})
	require.NoError(t, err)
	assert.Equal(t, Light, got)

	got, err = Load(context.Background(), &memoryStore{values: map[string]string{PreferenceKey: "neon"}})
	require.NoError(t, err)
	assert.Equal(t, Light, got)
}

func TestToggleRoundTrip(t *testing.T) {
	store := &memoryStore{}
	ctx := context.Background()

	next, err := Toggle(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, Dark, next)
	assert.Equal(t, "dark", store.values[PreferenceKey])

	next, err = Toggle(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, Light, next)
}

func TestToggleReportsStoreFailure(t *testing.T) {
	boom := errors.New("locked")
	_, err := Toggle(context.Background(), &memoryStore{getErr: boom})
	assert.ErrorIs(t, err, boom)
}

func TestSaveWithoutStore(t *testing.T) {
	assert.ErrorIs(t, Save(context.Background(), nil, Dark), storage.ErrNotConfigured)
}
