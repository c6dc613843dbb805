package visibility

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"npbc-dashboard/internal/normalize"
)

func TestNewShowsEverySeries(t *testing.T) {
	s := New()
	require.Len(t, s.Snapshot(), len(Series))
	for _, id := range Series {
		assert.True(t, s.Visible(id), id)
		assert.True(t, Known(id), id)
	}
}

func TestToggleTwiceRestoresAndKeepsData(t *testing.T) {
	s := New()
	data := []normalize.Sample{{Timestamp: 1, Tset: 65, Power: 2}, {Timestamp: 2, Tset: 66, Power: 3}}
	before := append([]normalize.Sample(nil), data...)

	assert.False(t, s.Toggle(Tset))
	assert.False(t, s.Visible(Tset))
	assert.Equal(t, []string{Tset}, s.Hidden())

	assert.True(t, s.Toggle(Tset))
	assert.True(t, s.Visible(Tset))
	assert.Empty(t, s.Hidden())
	assert.Equal(t, before, data)
}

func TestUnknownSeriesDefaultsVisible(t *testing.T) {
	s := New()
	assert.True(t, s.Visible("Pressure"))
	assert.False(t, s.Toggle("Pressure"))
	assert.False(t, s.Visible("Pressure"))
}

func TestFilterPreservesOrder(t *testing.T) {
	s := New()
	s.Toggle(DHW)
	s.Toggle(Power)
	assert.Equal(t, []string{Tset, Tboiler, TDS18, KTYPE, TBMP, Flame}, s.Filter(Series))
}

func TestConcurrentToggle(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Toggle(Flame)
		}()
	}
	wg.Wait()
	assert.True(t, s.Visible(Flame), "an even number of toggles restores the flag")
}
