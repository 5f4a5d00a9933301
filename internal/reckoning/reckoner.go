package reckoning

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/hilthontt/convoy/internal/infrastructure/logging"
	"github.com/hilthontt/convoy/internal/infrastructure/routing"
	"golang.org/x/sync/errgroup"
)

// TieRatio is the duration ratio below which two directional routes are
// considered inconclusive.
const TieRatio = 1.25

const (
	UnavailableETAText = "Route ETA unavailable"
	UnknownText        = "Unknown"
	EqualText          = "About equal / unclear"
)

type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictEqual
	VerdictOtherAhead
	VerdictOtherBehind
)

func (v Verdict) String() string {
	switch v {
	case VerdictEqual:
		return "equal"
	case VerdictOtherAhead:
		return "ahead"
	case VerdictOtherBehind:
		return "behind"
	default:
		return "unknown"
	}
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Party is one side of a comparison.
type Party struct {
	ID       string
	Name     string
	Position routing.Coordinate
}

// Reckoning is the comparison of self against other, seen from self.
type Reckoning struct {
	OtherID      string          `json:"otherId"`
	Verdict      Verdict         `json:"verdict"`
	VerdictText  string          `json:"verdictText"`
	ETAText      string          `json:"etaText"`
	DistanceText string          `json:"distanceText"`
	Ratio        float64         `json:"ratio,omitempty"`
	Geometry     json.RawMessage `json:"geometry,omitempty"`

	Forward routing.Result `json:"-"`
	Reverse routing.Result `json:"-"`
}

type Reckoner struct {
	querier routing.DirectionalQuerier
	logger  logging.Logger
}

func NewReckoner(querier routing.DirectionalQuerier, logger logging.Logger) *Reckoner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reckoner{querier: querier, logger: logger}
}

// Reckon queries self->other and other->self concurrently and judges who is
// ahead. A failed leg degrades the result; it never fails the reckoning.
func (r *Reckoner) Reckon(ctx context.Context, self, other Party) Reckoning {
	var forward, reverse routing.Result

	// legs report failure through their Result, so the group never errors
	var g errgroup.Group
	g.Go(func() error {
		forward = r.querier.QueryDirection(ctx, routing.DirectionForward, self.Position, other.Position)
		return nil
	})
	g.Go(func() error {
		reverse = r.querier.QueryDirection(ctx, routing.DirectionReverse, other.Position, self.Position)
		return nil
	})
	_ = g.Wait()

	rec := Judge(other.Name, forward, reverse)
	rec.OtherID = other.ID

	r.logger.Debug(logging.Routing, logging.Reckoning, "reckoned relative position", map[logging.ExtraKey]any{
		logging.Participant: other.ID,
		"verdict":           rec.Verdict.String(),
		"ratio":             rec.Ratio,
	})

	return rec
}

// Judge derives the verdict and texts from the two directional results.
// ETA and distance come from the forward leg only.
func Judge(otherName string, forward, reverse routing.Result) Reckoning {
	rec := Reckoning{
		Verdict:      VerdictUnknown,
		VerdictText:  UnknownText,
		ETAText:      UnavailableETAText,
		DistanceText: placeholder,
		Forward:      forward,
		Reverse:      reverse,
	}

	if !forward.OK {
		return rec
	}

	rec.ETAText = ETAText(forward.DurationS, forward.DistanceM)
	rec.DistanceText = FormatKm(forward.DistanceM) + " km"
	rec.Geometry = forward.Geometry

	if !reverse.OK {
		return rec
	}

	d1, d2 := forward.DurationS, reverse.DurationS
	rec.Ratio = math.Max(d1, d2) / math.Max(1, math.Min(d1, d2))

	switch {
	case rec.Ratio < TieRatio:
		rec.Verdict = VerdictEqual
		rec.VerdictText = EqualText
	case d1 < d2:
		rec.Verdict = VerdictOtherAhead
		rec.VerdictText = fmt.Sprintf("%s is probably ahead of you", otherName)
	default:
		rec.Verdict = VerdictOtherBehind
		rec.VerdictText = fmt.Sprintf("%s is probably behind you", otherName)
	}

	return rec
}

// Estimate is the route from a participant to the shared destination.
type Estimate struct {
	Result       routing.Result  `json:"-"`
	ETAText      string          `json:"etaText"`
	DistanceText string          `json:"distanceText"`
	Geometry     json.RawMessage `json:"geometry,omitempty"`
}

func (r *Reckoner) ToDestination(ctx context.Context, from, destination routing.Coordinate) Estimate {
	res := r.querier.QueryDirection(ctx, routing.DirectionDestination, from, destination)
	if !res.OK {
		return Estimate{Result: res, ETAText: UnavailableETAText, DistanceText: placeholder}
	}

	return Estimate{
		Result:       res,
		ETAText:      ETAText(res.DurationS, res.DistanceM),
		DistanceText: FormatKm(res.DistanceM) + " km",
		Geometry:     res.Geometry,
	}
}
