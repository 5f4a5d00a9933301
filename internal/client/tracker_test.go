package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/convoy/internal/alerts"
	"github.com/hilthontt/convoy/internal/domain"
	"github.com/hilthontt/convoy/internal/infrastructure/routing"
	"github.com/hilthontt/convoy/internal/reckoning"
)

type fakeLegs struct {
	mu      sync.Mutex
	destM   float64
	calls   int
	blockOn chan struct{}
}

func (f *fakeLegs) QueryDirection(ctx context.Context, dir routing.Direction, from, to routing.Coordinate) routing.Result {
	f.mu.Lock()
	f.calls++
	block := f.blockOn
	destM := f.destM
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	switch dir {
	case routing.DirectionForward:
		return routing.Result{OK: true, DurationS: 120, DistanceM: 2000}
	case routing.DirectionReverse:
		return routing.Result{OK: true, DurationS: 300, DistanceM: 2100}
	default:
		return routing.Result{OK: true, DurationS: 900, DistanceM: destM}
	}
}

func (f *fakeLegs) setDestM(m float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destM = m
}

func fptr(v float64) *float64 { return &v }

func participant(id string, withFix bool) domain.ParticipantView {
	p := domain.ParticipantView{ID: id, Name: "name-" + id}
	if withFix {
		p.Lat, p.Lon = fptr(45.1), fptr(6.1)
	}
	return p
}

func roomView(dest *domain.Destination, ps ...domain.ParticipantView) *domain.RoomView {
	return &domain.RoomView{RoomCode: "SKI", Destination: dest, Participants: ps}
}

func newTracker(legs *fakeLegs) *Tracker {
	tr := NewTracker(reckoning.NewReckoner(legs, nil), alerts.NewMonitor(10), nil)
	tr.SetSelf("me")
	return tr
}

func TestTrackerSelectsFirstPeerWithFix(t *testing.T) {
	tr := newTracker(&fakeLegs{})

	up, err := tr.Update(context.Background(), roomView(nil,
		participant("me", true), participant("a", false), participant("b", true), participant("c", true)))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if up.SelectedID != "b" {
		t.Fatalf("expected b selected, got %q", up.SelectedID)
	}
	if len(up.Peers) != 2 {
		t.Fatalf("expected two peers reckoned, got %d", len(up.Peers))
	}
	sel, ok := up.Selected()
	if !ok || sel.Verdict != reckoning.VerdictOtherAhead {
		t.Fatalf("unexpected selected reckoning %+v", sel)
	}
}

func TestTrackerKeepsPinnedPeerWhilePresent(t *testing.T) {
	tr := newTracker(&fakeLegs{})
	tr.Select("c")

	up, _ := tr.Update(context.Background(), roomView(nil,
		participant("me", true), participant("b", true), participant("c", true)))
	if up.SelectedID != "c" {
		t.Fatalf("expected pinned c, got %q", up.SelectedID)
	}

	up, _ = tr.Update(context.Background(), roomView(nil, participant("me", true), participant("b", true)))
	if up.SelectedID != "b" || tr.SelectedID() != "b" {
		t.Fatalf("expected fallback to b once c left, got %q", up.SelectedID)
	}
}

func TestTrackerWithoutOwnFixSkipsRouting(t *testing.T) {
	legs := &fakeLegs{}
	tr := newTracker(legs)

	up, err := tr.Update(context.Background(), roomView(nil, participant("me", false), participant("b", true)))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if up.SelectedID != "b" || len(up.Peers) != 0 || legs.calls != 0 {
		t.Fatalf("expected selection only, got %+v with %d calls", up, legs.calls)
	}
}

func TestTrackerDestinationAlertFiresOncePerDestination(t *testing.T) {
	legs := &fakeLegs{}
	tr := newTracker(legs)
	chalet := &domain.Destination{Label: "Chalet", Lat: 45.5, Lon: 6.5}

	steps := []struct {
		distanceM float64
		dest      *domain.Destination
		alert     bool
	}{
		{15000, chalet, false},
		{9000, chalet, true},
		{11000, chalet, false},
		{8000, chalet, false},
		{8000, &domain.Destination{Label: "Hut", Lat: 45.6, Lon: 6.6}, true},
	}

	for i, step := range steps {
		legs.setDestM(step.distanceM)
		up, err := tr.Update(context.Background(), roomView(step.dest, participant("me", true)))
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if (up.Alert != nil) != step.alert {
			t.Fatalf("step %d: expected alert=%v, got %+v", i, step.alert, up.Alert)
		}
		if up.Destination == nil || up.Destination.Result.DistanceM != step.distanceM {
			t.Fatalf("step %d: unexpected destination estimate %+v", i, up.Destination)
		}
	}
}

func TestTrackerDiscardsStaleResults(t *testing.T) {
	block := make(chan struct{})
	legs := &fakeLegs{blockOn: block}
	tr := newTracker(legs)
	view := roomView(nil, participant("me", true), participant("b", true))

	done := make(chan error, 1)
	go func() {
		_, err := tr.Update(context.Background(), view)
		done <- err
	}()

	// wait until the first update is inside the querier
	for {
		legs.mu.Lock()
		started := legs.calls > 0
		legs.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	legs.mu.Lock()
	legs.blockOn = nil
	legs.mu.Unlock()

	if _, err := tr.Update(context.Background(), view); err != nil {
		t.Fatalf("newer update: %v", err)
	}

	close(block)
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
}

func TestTrackerReArmsWhenSameDestinationIsSetAgain(t *testing.T) {
	legs := &fakeLegs{destM: 9000}
	tr := newTracker(legs)
	chalet := &domain.Destination{Label: "Chalet", Lat: 45.5, Lon: 6.5}
	view := roomView(chalet, participant("me", true))

	up, err := tr.Update(context.Background(), view)
	if err != nil || up.Alert == nil {
		t.Fatalf("expected first alert at 9 km, got %+v, %v", up.Alert, err)
	}

	up, _ = tr.Update(context.Background(), view)
	if up.Alert != nil {
		t.Fatalf("expected no repeat alert before the destination is set again")
	}

	tr.DestinationChanged()

	up, err = tr.Update(context.Background(), view)
	if err != nil || up.Alert == nil {
		t.Fatalf("expected alert after the destination was set again, got %+v, %v", up.Alert, err)
	}
	if up.Alert.Text != "9.0 km to Chalet" {
		t.Fatalf("unexpected alert text %q", up.Alert.Text)
	}
}
