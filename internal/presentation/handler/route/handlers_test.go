package route

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hilthontt/convoy/internal/infrastructure/routing"
)

type stubQuerier struct {
	res   routing.Result
	calls int
}

func (q *stubQuerier) Query(ctx context.Context, from, to routing.Coordinate) routing.Result {
	q.calls++
	return q.res
}

func get(t *testing.T, h *Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	rr := httptest.NewRecorder()
	h.GetRouteHandler(rr, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return rr, body
}

func TestGetRouteOK(t *testing.T) {
	q := &stubQuerier{res: routing.Result{OK: true, DistanceM: 1200, DurationS: 90, Geometry: json.RawMessage(`{"type":"LineString","coordinates":[]}`)}}

	rr, body := get(t, NewHandler(q), "/api/route?from=45.1,6.1&to=45.2,6.2")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["ok"] != true || body["distance_m"] != 1200.0 || body["duration_s"] != 90.0 {
		t.Fatalf("unexpected body %v", body)
	}
	if _, ok := body["geometry_geojson"]; !ok {
		t.Fatalf("expected geometry in body %v", body)
	}
}

func TestGetRouteInvalidCoordinates(t *testing.T) {
	q := &stubQuerier{}

	for _, target := range []string{
		"/api/route?from=45.1,6.1",
		"/api/route?from=abc&to=45.2,6.2",
		"/api/route?from=45.1,6.1&to=NaN,6.2",
	} {
		rr, body := get(t, NewHandler(q), target)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rr.Code)
		}
		if body["ok"] != false || body["error"] != routing.ReasonInvalidCoordinates {
			t.Fatalf("%s: unexpected body %v", target, body)
		}
	}

	if q.calls != 0 {
		t.Fatalf("upstream must not be queried for invalid input, got %d calls", q.calls)
	}
}

func TestGetRouteUpstreamFailures(t *testing.T) {
	cases := []struct {
		res    routing.Result
		status int
	}{
		{routing.Failure(routing.KindUpstream, routing.ReasonUpstream), http.StatusBadGateway},
		{routing.Failure(routing.KindUpstream, routing.ReasonNoRoute), http.StatusBadGateway},
		{routing.Failure(routing.KindInternal, routing.ReasonInternal), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rr, body := get(t, NewHandler(&stubQuerier{res: tc.res}), "/api/route?from=45.1,6.1&to=45.2,6.2")
		if rr.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.res.Error, tc.status, rr.Code)
		}
		if body["ok"] != false || body["error"] != tc.res.Error {
			t.Fatalf("unexpected body %v", body)
		}
	}
}
