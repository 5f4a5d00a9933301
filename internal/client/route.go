package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hilthontt/convoy/internal/infrastructure/logging"
	"github.com/hilthontt/convoy/internal/infrastructure/routing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxRouteBody = 4 << 20

type RouteClientOptions struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     logging.Logger
}

// RouteClient queries a convoy server's /api/route endpoint. It satisfies
// routing.Querier, so it can sit behind a routing.CachedQuerier.
type RouteClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
	logger    logging.Logger
}

func NewRouteClient(opts RouteClientOptions) (*RouteClient, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, ErrMissingBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, err
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "convoy-follow/1.0"
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	return &RouteClient{
		baseURL:   base,
		userAgent: opts.UserAgent,
		client:    opts.HTTPClient,
		logger:    opts.Logger,
	}, nil
}

func (c *RouteClient) Query(ctx context.Context, from, to routing.Coordinate) routing.Result {
	q := url.Values{}
	q.Set("from", from.String())
	q.Set("to", to.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/route?"+q.Encode(), nil)
	if err != nil {
		return routing.Failure(routing.KindInternal, routing.ReasonInternal)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn(logging.Routing, logging.Upstream, "route request failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return routing.Failure(routing.KindInternal, routing.ReasonInternal)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRouteBody))
	if err != nil {
		return routing.Failure(routing.KindInternal, routing.ReasonInternal)
	}

	var res routing.Result
	if err := json.Unmarshal(body, &res); err != nil {
		c.logger.Warn(logging.Routing, logging.Upstream, "undecodable route response", map[logging.ExtraKey]any{
			logging.StatusCode:   resp.StatusCode,
			logging.ErrorMessage: err.Error(),
		})
		return routing.Failure(routing.KindInternal, routing.ReasonInternal)
	}

	if !res.OK {
		res.Kind = kindFromStatus(resp.StatusCode)
	}
	return res
}

func kindFromStatus(status int) routing.ErrorKind {
	switch {
	case status == http.StatusBadRequest:
		return routing.KindBadRequest
	case status == http.StatusBadGateway:
		return routing.KindUpstream
	default:
		return routing.KindInternal
	}
}
