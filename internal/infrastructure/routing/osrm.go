package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hilthontt/convoy/internal/infrastructure/logging"
	"github.com/hilthontt/convoy/internal/infrastructure/metrics"
	"github.com/hilthontt/convoy/internal/infrastructure/tracing"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultBaseURL   = "https://router.project-osrm.org"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "convoy/1.0"

	// upstream bodies for a full geojson route stay well under this
	maxUpstreamBody = 8 << 20
)

type GatewayOptions struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Logger     logging.Logger
	Metrics    *metrics.Metrics
}

// Gateway forwards route queries to an OSRM-compatible driving router. It
// makes exactly one upstream request per call and never retries.
type Gateway struct {
	baseURL   string
	userAgent string
	client    *http.Client
	logger    logging.Logger
	metrics   *metrics.Metrics
}

func NewGateway(opts GatewayOptions) *Gateway {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   opts.Timeout,
		}
	}

	return &Gateway{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		client:    client,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

func (g *Gateway) routeURL(from, to Coordinate) string {
	format := func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	return fmt.Sprintf("%s/route/v1/driving/%s,%s;%s,%s?overview=full&geometries=geojson&steps=false",
		g.baseURL,
		format(from.Lon), format(from.Lat),
		format(to.Lon), format(to.Lat),
	)
}

func (g *Gateway) Query(ctx context.Context, from, to Coordinate) Result {
	if !from.Finite() || !to.Finite() {
		return Failure(KindBadRequest, ReasonInvalidCoordinates)
	}

	ctx, span := tracing.GetTracer("routing").Start(ctx, "routing.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("route.from", from.String()),
		attribute.String("route.to", to.String()),
	)

	start := time.Now()
	result, outcome := g.query(ctx, from, to)
	g.metrics.RouteUpstream(outcome, time.Since(start))

	if !result.OK {
		span.SetStatus(codes.Error, result.Error)
	}
	return result
}

func (g *Gateway) query(ctx context.Context, from, to Coordinate) (Result, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.routeURL(from, to), nil)
	if err != nil {
		g.logFailure("failed to build upstream request", err)
		return Failure(KindInternal, ReasonInternal), "internal"
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logFailure("upstream transport failure", err)
		return Failure(KindInternal, ReasonInternal), "transport"
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.Warn(logging.Routing, logging.Upstream, "upstream returned non-success status", map[logging.ExtraKey]any{
			logging.StatusCode: resp.StatusCode,
		})
		return Failure(KindUpstream, ReasonUpstream), "status"
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		g.logFailure("failed to read upstream body", err)
		return Failure(KindInternal, ReasonInternal), "transport"
	}
	if !gjson.ValidBytes(body) {
		g.logFailure("upstream body is not json", nil)
		return Failure(KindInternal, ReasonInternal), "decode"
	}

	route := gjson.GetBytes(body, "routes.0")
	distance := route.Get("distance")
	duration := route.Get("duration")
	if !route.Exists() || distance.Type != gjson.Number || duration.Type != gjson.Number {
		return Failure(KindUpstream, ReasonNoRoute), "no_route"
	}

	var geometry json.RawMessage
	if geom := route.Get("geometry"); geom.Exists() {
		geometry = json.RawMessage(geom.Raw)
	}

	return Result{
		OK:        true,
		DistanceM: distance.Float(),
		DurationS: duration.Float(),
		Geometry:  geometry,
	}, "ok"
}

func (g *Gateway) logFailure(msg string, err error) {
	extra := map[logging.ExtraKey]any{}
	if err != nil {
		extra[logging.ErrorMessage] = err.Error()
	}
	g.logger.Error(logging.Routing, logging.Upstream, msg, extra)
}
