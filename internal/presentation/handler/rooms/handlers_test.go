package rooms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/convoy/internal/domain"
	"github.com/hilthontt/convoy/internal/infrastructure/logging"
	"github.com/hilthontt/convoy/internal/infrastructure/repository"
	"github.com/hilthontt/convoy/internal/infrastructure/routing"
	"github.com/hilthontt/convoy/internal/reckoning"
	"github.com/jonboulle/clockwork"
)

type silentBroadcaster struct{}

func (silentBroadcaster) BroadcastState(*domain.RoomView)             {}
func (silentBroadcaster) BroadcastMessage(string, domain.RoomMessage) {}

type legs map[routing.Direction]routing.Result

func (l legs) QueryDirection(ctx context.Context, dir routing.Direction, from, to routing.Coordinate) routing.Result {
	return l[dir]
}

type noUpgrade struct{}

func (noUpgrade) ServeWS(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}

func newTestServer(t *testing.T, q routing.DirectionalQuerier) (*httptest.Server, domain.RoomRegistry, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	registry := repository.NewRoomRegistry(silentBroadcaster{}, repository.WithClock(clock))
	h := NewHandler(registry, noUpgrade{}, reckoning.NewReckoner(q, logging.NewNop()), logging.NewNop(), clock)

	r := chi.NewRouter()
	r.Get("/api/rooms/{roomCode}", h.GetRoomHandler)
	r.Get("/api/rooms/{roomCode}/reckon", h.ReckonHandler)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, registry, clock
}

func join(t *testing.T, registry domain.RoomRegistry, code, id, name string) {
	t.Helper()
	if _, err := registry.Join(context.Background(), code, domain.Profile{Name: name, CarType: "car", Color: "red"}, id); err != nil {
		t.Fatalf("join %s: %v", id, err)
	}
}

func move(t *testing.T, registry domain.RoomRegistry, code, id string, lat, lon float64) {
	t.Helper()
	if _, err := registry.UpdatePosition(context.Background(), code, id, domain.Fix{Lat: lat, Lon: lon}); err != nil {
		t.Fatalf("move %s: %v", id, err)
	}
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestGetRoomNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t, legs{})

	if status := getJSON(t, srv.URL+"/api/rooms/NOPE", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestGetRoomSnapshot(t *testing.T) {
	srv, registry, clock := newTestServer(t, legs{})
	join(t, registry, "ski", "a", "Alex")
	move(t, registry, "SKI", "a", 45.1, 6.1)
	clock.Advance(90 * time.Second)

	var body struct {
		RoomCode     string `json:"roomCode"`
		OwnerID      string `json:"ownerId"`
		Participants []struct {
			ID         string `json:"id"`
			LastUpdate string `json:"lastUpdate"`
		} `json:"participants"`
	}
	if status := getJSON(t, srv.URL+"/api/rooms/ski", &body); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body.RoomCode != "SKI" || body.OwnerID != "a" {
		t.Fatalf("unexpected room %+v", body)
	}
	if len(body.Participants) != 1 || body.Participants[0].LastUpdate != "1m ago" {
		t.Fatalf("unexpected participants %+v", body.Participants)
	}
}

func TestReckonRequiresFixes(t *testing.T) {
	srv, registry, _ := newTestServer(t, legs{})
	join(t, registry, "SKI", "a", "Alex")
	join(t, registry, "SKI", "b", "Sam")
	move(t, registry, "SKI", "a", 45.1, 6.1)

	if status := getJSON(t, srv.URL+"/api/rooms/SKI/reckon?self=a&other=b", nil); status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	if status := getJSON(t, srv.URL+"/api/rooms/SKI/reckon?self=a&other=zz", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if status := getJSON(t, srv.URL+"/api/rooms/SKI/reckon?self=a&other=a", nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestReckon(t *testing.T) {
	q := legs{
		routing.DirectionForward:     {OK: true, DurationS: 300, DistanceM: 4000},
		routing.DirectionReverse:     {OK: true, DurationS: 600, DistanceM: 4200},
		routing.DirectionDestination: {OK: true, DurationS: 1800, DistanceM: 25000},
	}
	srv, registry, _ := newTestServer(t, q)
	join(t, registry, "SKI", "a", "Alex")
	join(t, registry, "SKI", "b", "Sam")
	move(t, registry, "SKI", "a", 45.1, 6.1)
	move(t, registry, "SKI", "b", 45.2, 6.2)

	dest, _ := domain.NewDestination("Chalet", 45.5, 6.5)
	if _, err := registry.SetDestination(context.Background(), "SKI", "a", dest); err != nil {
		t.Fatalf("set destination: %v", err)
	}

	var body struct {
		SelfID    string `json:"selfId"`
		Reckoning struct {
			OtherID     string `json:"otherId"`
			Verdict     string `json:"verdict"`
			VerdictText string `json:"verdictText"`
			ETAText     string `json:"etaText"`
		} `json:"reckoning"`
		Destination *struct {
			ETAText string `json:"etaText"`
		} `json:"destination"`
	}
	if status := getJSON(t, srv.URL+"/api/rooms/SKI/reckon?self=a&other=b", &body); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body.Reckoning.OtherID != "b" || body.Reckoning.VerdictText != "Sam is probably ahead of you" {
		t.Fatalf("unexpected reckoning %+v", body.Reckoning)
	}
	if body.Reckoning.ETAText != "~ 5 min · 4.0 km" {
		t.Fatalf("unexpected eta %q", body.Reckoning.ETAText)
	}
	if body.Destination == nil || body.Destination.ETAText != "~ 30 min · 25.0 km" {
		t.Fatalf("unexpected destination estimate %+v", body.Destination)
	}
}
