package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hilthontt/convoy/internal/infrastructure/routing"
)

func TestRouteClientDecodesResult(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"distance_m":1234.5,"duration_s":99,"geometry_geojson":{"type":"LineString","coordinates":[[6.1,45.1],[6.2,45.2]]}}`))
	}))
	defer srv.Close()

	c, err := NewRouteClient(RouteClientOptions{BaseURL: srv.URL + "/", UserAgent: "test-agent"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	res := c.Query(context.Background(), routing.Coordinate{Lat: 45.1, Lon: 6.1}, routing.Coordinate{Lat: 45.2, Lon: 6.2})
	if !res.OK || res.DistanceM != 1234.5 || res.DurationS != 99 || len(res.Geometry) == 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if gotQuery != "from=45.10000%2C6.10000&to=45.20000%2C6.20000" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if gotUA != "test-agent" {
		t.Fatalf("expected user agent sent, got %q", gotUA)
	}
}

func TestRouteClientFailures(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   routing.ErrorKind
		reason string
	}{
		{http.StatusBadGateway, `{"ok":false,"error":"No route"}`, routing.KindUpstream, routing.ReasonNoRoute},
		{http.StatusBadRequest, `{"ok":false,"error":"Invalid coordinates"}`, routing.KindBadRequest, routing.ReasonInvalidCoordinates},
		{http.StatusInternalServerError, `not json`, routing.KindInternal, routing.ReasonInternal},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(tc.body))
		}))

		c, _ := NewRouteClient(RouteClientOptions{BaseURL: srv.URL})
		res := c.Query(context.Background(), routing.Coordinate{Lat: 1, Lon: 1}, routing.Coordinate{Lat: 2, Lon: 2})
		srv.Close()

		if res.OK || res.Kind != tc.kind || res.Error != tc.reason {
			t.Fatalf("status %d: unexpected result %+v", tc.status, res)
		}
	}
}

func TestNewRouteClientRequiresBaseURL(t *testing.T) {
	if _, err := NewRouteClient(RouteClientOptions{}); err != ErrMissingBaseURL {
		t.Fatalf("expected ErrMissingBaseURL, got %v", err)
	}
}
