package alerts

import "testing"

func TestMonitorFiresOncePerDestination(t *testing.T) {
	m := NewMonitor(10)
	m.SetDestination("45.00000,6.00000")

	if _, fired := m.Check(15000, "Val Thorens"); fired {
		t.Fatalf("15 km must not fire")
	}

	alert, fired := m.Check(9000, "Val Thorens")
	if !fired {
		t.Fatalf("9 km must fire")
	}
	if alert.Label != "Val Thorens" || alert.Text != "9.0 km to Val Thorens" {
		t.Fatalf("unexpected alert %+v", alert)
	}

	if _, fired := m.Check(11000, "Val Thorens"); fired {
		t.Fatalf("11 km must not re-fire")
	}
	if _, fired := m.Check(8000, "Val Thorens"); fired {
		t.Fatalf("must not re-fire after dipping below again")
	}
}

func TestMonitorRearmsOnNewDestination(t *testing.T) {
	m := NewMonitor(10)
	m.SetDestination("a")
	m.Check(5000, "A")

	if changed := m.SetDestination("a"); changed {
		t.Fatalf("same destination must not re-arm")
	}
	if _, fired := m.Check(5000, "A"); fired {
		t.Fatalf("same destination fired twice")
	}

	if changed := m.SetDestination("b"); !changed {
		t.Fatalf("expected destination change")
	}
	if m.Alerted() {
		t.Fatalf("expected alert state cleared")
	}
	if _, fired := m.Check(10000, "B"); !fired {
		t.Fatalf("expected fire exactly at threshold")
	}
}

func TestMonitorDefaults(t *testing.T) {
	if got := NewMonitor(0).ThresholdKm(); got != DefaultThresholdKm {
		t.Fatalf("expected default threshold, got %v", got)
	}

	m := NewMonitor(1)
	if _, fired := m.Check(-1, "x"); fired {
		t.Fatalf("negative distance must be ignored")
	}
	m.Check(500, "x")
	m.Reset()
	if _, fired := m.Check(500, "x"); !fired {
		t.Fatalf("expected fire after reset")
	}
}
