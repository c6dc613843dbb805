// Package visibility tracks which chart series are shown. Hiding a series
// never touches the data behind it.
package visibility

import (
	"sort"
	"sync"
)

// Series identifiers used by the charts.
const (
	Tset    = "Tset"
	Tboiler = "Tboiler"
	TDS18   = "TDS18"
	DHW     = "DHW"
	KTYPE   = "KTYPE"
	TBMP    = "TBMP"
	Flame   = "Flame"
	Power   = "Power"
)

// Series lists every known identifier in legend order.
var Series = []string{Tset, Tboiler, TDS18, DHW, KTYPE, TBMP, Flame, Power}

// Labels are the legend captions.
var Labels = map[string]string{
	Tset:    "Set temperature",
	Tboiler: "Boiler outlet",
	TDS18:   "Boiler inlet",
	DHW:     "Hot water",
	KTYPE:   "Flue gas",
	TBMP:    "Outside",
	Flame:   "Flame",
	Power:   "Power",
}

// Known reports whether id is one of the chart series.
func Known(id string) bool {
	_, ok := Labels[id]
	return ok
}

// State maps series identifiers to their shown flag. The zero value is not
// usable; call New.
type State struct {
	mu    sync.RWMutex
	shown map[string]bool
}

// New returns a state with every known series visible.
func New() *State {
	shown := make(map[string]bool, len(Series))
	for _, id := range Series {
		shown[id] = true
	}
	return &State{shown: shown}
}

// Toggle flips the flag for id and returns the new value.
func (s *State) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := !s.visibleLocked(id)
	s.shown[id] = next
	return next
}

// Visible reports whether id is shown. Unknown ids read as visible.
func (s *State) Visible(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibleLocked(id)
}

func (s *State) visibleLocked(id string) bool {
	shown, ok := s.shown[id]
	return !ok || shown
}

// Filter keeps the visible ids, preserving order.
func (s *State) Filter(ids []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if s.visibleLocked(id) {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot copies the current flags.
func (s *State) Snapshot() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(s.shown))
	for id, shown := range s.shown {
		out[id] = shown
	}
	return out
}

// Hidden lists the hidden ids in sorted order.
func (s *State) Hidden() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for id, shown := range s.shown {
		if !shown {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
