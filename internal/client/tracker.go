package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/hilthontt/convoy/internal/alerts"
	"github.com/hilthontt/convoy/internal/domain"
	"github.com/hilthontt/convoy/internal/infrastructure/logging"
	"github.com/hilthontt/convoy/internal/infrastructure/routing"
	"github.com/hilthontt/convoy/internal/reckoning"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentPeers = 4

// Update is the outcome of evaluating one room snapshot from self's seat.
type Update struct {
	RoomCode    string
	SelfID      string
	SelectedID  string
	Peers       []reckoning.Reckoning
	Destination *reckoning.Estimate
	Alert       *alerts.Alert
}

// Selected returns the reckoning for the selected peer, if it was computed.
func (u Update) Selected() (reckoning.Reckoning, bool) {
	for _, r := range u.Peers {
		if r.OtherID == u.SelectedID {
			return r, true
		}
	}
	return reckoning.Reckoning{}, false
}

// Tracker turns room snapshots into relative positions and destination
// alerts for one participant. Each snapshot starts a new generation; work
// finishing after a newer snapshot arrived is discarded.
type Tracker struct {
	reckoner *reckoning.Reckoner
	monitor  *alerts.Monitor
	logger   logging.Logger

	mu         sync.Mutex
	selfID     string
	selectedID string
	generation uint64
}

func NewTracker(reckoner *reckoning.Reckoner, monitor *alerts.Monitor, logger logging.Logger) *Tracker {
	if monitor == nil {
		monitor = alerts.NewMonitor(alerts.DefaultThresholdKm)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tracker{reckoner: reckoner, monitor: monitor, logger: logger}
}

func (t *Tracker) SetSelf(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selfID = id
}

// Select pins the peer to compare against. The pin holds for as long as that
// peer stays in the room.
func (t *Tracker) Select(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selectedID = id
}

// DestinationChanged re-arms the proximity alert. The owner may set the same
// destination again, which leaves the snapshot unchanged but still counts as
// a new destination.
func (t *Tracker) DestinationChanged() {
	t.monitor.Reset()
}

func (t *Tracker) SelectedID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selectedID
}

// Update evaluates view. It returns ErrStale when a later call to Update
// started before this one finished.
func (t *Tracker) Update(ctx context.Context, view *domain.RoomView) (Update, error) {
	t.mu.Lock()
	t.generation++
	gen := t.generation
	selfID := t.selfID
	selectedID := choosePeer(view, selfID, t.selectedID)
	t.selectedID = selectedID
	t.mu.Unlock()

	out := Update{RoomCode: view.RoomCode, SelfID: selfID, SelectedID: selectedID}

	self, ok := view.Participant(selfID)
	if !ok || !self.HasFix() {
		if view.Destination == nil {
			t.monitor.SetDestination("")
		}
		return out, t.current(gen)
	}
	me := toParty(self)

	peers := make([]domain.ParticipantView, 0, len(view.Participants))
	for _, p := range view.Participants {
		if p.ID != selfID && p.HasFix() {
			peers = append(peers, p)
		}
	}

	out.Peers = make([]reckoning.Reckoning, len(peers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPeers)
	for i, p := range peers {
		g.Go(func() error {
			out.Peers[i] = t.reckoner.Reckon(gctx, me, toParty(p))
			return nil
		})
	}

	var estimate *reckoning.Estimate
	if dest := view.Destination; dest != nil {
		g.Go(func() error {
			est := t.reckoner.ToDestination(gctx, me.Position, routing.Coordinate{Lat: dest.Lat, Lon: dest.Lon})
			estimate = &est
			return nil
		})
	}
	_ = g.Wait()

	if err := t.current(gen); err != nil {
		return Update{}, err
	}
	out.Destination = estimate

	if view.Destination == nil {
		t.monitor.SetDestination("")
		return out, nil
	}

	if t.monitor.SetDestination(destinationKey(*view.Destination)) {
		t.logger.Debug(logging.Routing, logging.Alert, "destination changed, alert re-armed", map[logging.ExtraKey]any{
			logging.RoomCode: view.RoomCode,
			"destination":    view.Destination.Label,
		})
	}
	if estimate != nil && estimate.Result.OK {
		if alert, fired := t.monitor.Check(estimate.Result.DistanceM, view.Destination.Label); fired {
			out.Alert = &alert
			t.logger.Info(logging.Routing, logging.Alert, alert.Text, map[logging.ExtraKey]any{
				logging.RoomCode: view.RoomCode,
			})
		}
	}

	return out, nil
}

func (t *Tracker) current(gen uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.generation {
		return ErrStale
	}
	return nil
}

// choosePeer keeps the selected peer while it is present, otherwise falls
// back to the first other participant with a fix.
func choosePeer(view *domain.RoomView, selfID, selectedID string) string {
	if selectedID != "" && selectedID != selfID {
		if _, ok := view.Participant(selectedID); ok {
			return selectedID
		}
	}
	for _, p := range view.Participants {
		if p.ID != selfID && p.HasFix() {
			return p.ID
		}
	}
	return ""
}

func destinationKey(d domain.Destination) string {
	return fmt.Sprintf("%s|%.5f,%.5f", d.Label, d.Lat, d.Lon)
}

func toParty(p domain.ParticipantView) reckoning.Party {
	return reckoning.Party{
		ID:       p.ID,
		Name:     p.Name,
		Position: routing.Coordinate{Lat: *p.Lat, Lon: *p.Lon},
	}
}
