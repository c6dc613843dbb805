// Package theme keeps the light/dark preference of the dashboard.
package theme

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"npbc-dashboard/internal/storage"
)

// Theme is the dashboard colour scheme.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"

	// Default applies when nothing was stored yet.
	Default = Light

	// PreferenceKey is the key the theme is persisted under.
	PreferenceKey = "theme"
)

// ErrUnknown is returned by Parse for anything but light or dark.
var ErrUnknown = errors.New("theme: unknown theme")

// Parse accepts "light" or "dark" in any case.
func Parse(value string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(value))) {
	case Light:
		return Light, nil
	case Dark:
		return Dark, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknown, value)
}

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

// Load reads the stored theme. A missing or unreadable value yields Default;
// only store errors are returned.
func Load(ctx context.Context, store storage.PreferenceStore) (Theme, error) {
	if store == nil {
		return Default, nil
	}
	value, ok, err := store.GetPreference(ctx, PreferenceKey)
	if err != nil {
		return Default, err
	}
	if !ok {
		return Default, nil
	}
	t, err := Parse(value)
	if err != nil {
		return Default, nil
	}
	return t, nil
}

// Save persists t.
func Save(ctx context.Context, store storage.PreferenceStore, t Theme) error {
	if store == nil {
		return storage.ErrNotConfigured
	}
	return store.SetPreference(ctx, PreferenceKey, string(t))
}

// Toggle flips the stored theme and returns the new value.
func Toggle(ctx context.Context, store storage.PreferenceStore) (Theme, error) {
	current, err := Load(ctx, store)
	if err != nil {
		return current, err
	}
	next := current.Toggle()
	if err := Save(ctx, store, next); err != nil {
		return current, fmt.Errorf("save theme: %w", err)
	}
	return next, nil
}
