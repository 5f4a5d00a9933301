package alerts

import (
	"fmt"
	"math"
	"sync"
)

const DefaultThresholdKm = 10.0

// Alert is the one-time proximity notification for a destination.
type Alert struct {
	Label     string  `json:"label"`
	DistanceM float64 `json:"distanceM"`
	Text      string  `json:"text"`
}

// Monitor fires at most once per destination when the route distance to it
// drops to or below the threshold.
type Monitor struct {
	thresholdKm float64

	mu          sync.Mutex
	destination string
	alerted     bool
}

func NewMonitor(thresholdKm float64) *Monitor {
	if thresholdKm <= 0 || math.IsNaN(thresholdKm) || math.IsInf(thresholdKm, 0) {
		thresholdKm = DefaultThresholdKm
	}
	return &Monitor{thresholdKm: thresholdKm}
}

func (m *Monitor) ThresholdKm() float64 {
	return m.thresholdKm
}

// SetDestination re-arms the monitor when key names a different destination
// than the current one. It reports whether the destination changed.
func (m *Monitor) SetDestination(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if key == m.destination {
		return false
	}
	m.destination = key
	m.alerted = false
	return true
}

func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerted = false
}

func (m *Monitor) Alerted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.alerted
}

// Check evaluates one destination-route distance.
func (m *Monitor) Check(distanceM float64, label string) (Alert, bool) {
	if math.IsNaN(distanceM) || math.IsInf(distanceM, 0) || distanceM < 0 {
		return Alert{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.alerted || distanceM/1000 > m.thresholdKm {
		return Alert{}, false
	}
	m.alerted = true

	return Alert{
		Label:     label,
		DistanceM: distanceM,
		Text:      fmt.Sprintf("%.1f km to %s", distanceM/1000, label),
	}, true
}
