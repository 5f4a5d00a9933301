package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// Reasons carried by failed results. None of them leak upstream detail.
const (
	ReasonInvalidCoordinates = "Invalid coordinates"
	ReasonUpstream           = "Routing upstream error"
	ReasonNoRoute            = "No route"
	ReasonInternal           = "Server error"
)

var ErrInvalidCoordinate = errors.New("invalid coordinate")

type Coordinate struct {
	Lat float64
	Lon float64
}

// ParseCoordinate reads a "lat,lon" pair.
func ParseCoordinate(s string) (Coordinate, error) {
	latStr, lonStr, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}

	c := Coordinate{Lat: lat, Lon: lon}
	if !c.Finite() {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}
	return c, nil
}

func (c Coordinate) Finite() bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) &&
		!math.IsNaN(c.Lon) && !math.IsInf(c.Lon, 0)
}

// String formats the coordinate as "lat,lon" rounded to five decimals.
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Lat, 'f', 5, 64) + "," + strconv.FormatFloat(c.Lon, 'f', 5, 64)
}

type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindBadRequest
	KindUpstream
	KindInternal
)

// Status maps a result kind onto the HTTP status of /api/route.
func (k ErrorKind) Status() int {
	switch k {
	case KindNone:
		return http.StatusOK
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Result is the outcome of one directional route query. Route-unavailable is
// an ordinary result, never an error.
type Result struct {
	OK        bool
	DistanceM float64
	DurationS float64
	Geometry  json.RawMessage
	Error     string
	Kind      ErrorKind
}

func Failure(kind ErrorKind, reason string) Result {
	return Result{Kind: kind, Error: reason}
}

type wireResult struct {
	OK        bool            `json:"ok"`
	DistanceM *float64        `json:"distance_m,omitempty"`
	DurationS *float64        `json:"duration_s,omitempty"`
	Geometry  json.RawMessage `json:"geometry_geojson,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	if !r.OK {
		reason := r.Error
		if reason == "" {
			reason = ReasonInternal
		}
		return json.Marshal(wireResult{Error: reason})
	}

	distance, duration := r.DistanceM, r.DurationS
	return json.Marshal(wireResult{
		OK:        true,
		DistanceM: &distance,
		DurationS: &duration,
		Geometry:  r.Geometry,
	})
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*r = Result{OK: w.OK, Geometry: w.Geometry, Error: w.Error}
	if !w.OK {
		return nil
	}
	if w.DistanceM == nil || w.DurationS == nil {
		*r = Failure(KindUpstream, ReasonNoRoute)
		return nil
	}
	r.DistanceM = *w.DistanceM
	r.DurationS = *w.DurationS
	return nil
}

// Querier answers a single directional route query.
type Querier interface {
	Query(ctx context.Context, from, to Coordinate) Result
}

// Direction labels one leg of a comparison. It is part of the cache key, so
// the same coordinate pair asked for as different legs is cached separately.
type Direction string

const (
	DirectionNone        Direction = ""
	DirectionForward     Direction = "AB"
	DirectionReverse     Direction = "BA"
	DirectionDestination Direction = "DEST"
)

type DirectionalQuerier interface {
	QueryDirection(ctx context.Context, dir Direction, from, to Coordinate) Result
}
