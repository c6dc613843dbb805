package timerange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for _, h := range []int{1, 6, 12, 24, 48, 72} {
		r, err := Parse(h)
		require.NoError(t, err)
		assert.Equal(t, h, r.Hours())
	}
	for _, h := range []int{0, -1, 2, 25, 168} {
		_, err := Parse(h)
		assert.ErrorIs(t, err, ErrInvalid, "hours %d", h)
	}
}

func TestBoundary(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Unix()-6*3600, Hours6.Boundary(now))
	assert.Equal(t, now.Unix()-72*3600, Hours72.Boundary(now))
	assert.Equal(t, 48*time.Hour, Hours48.Duration())
}

func TestShowsDate(t *testing.T) {
	assert.False(t, Hours12.ShowsDate())
	assert.False(t, Hours24.ShowsDate())
	assert.True(t, Hours48.ShowsDate())
	assert.Equal(t, "24h", Default.String())
}

func TestAllReturnsCopy(t *testing.T) {
	ranges := All()
	require.Len(t, ranges, 6)
	ranges[0] = Hours72
	assert.Equal(t, Hour1, All()[0])
}
