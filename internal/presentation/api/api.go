package api

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/convoy/internal/infrastructure/configs"
	"github.com/hilthontt/convoy/internal/infrastructure/logging"
	"github.com/hilthontt/convoy/internal/infrastructure/metrics"
	"github.com/hilthontt/convoy/internal/infrastructure/ratelimiter"
	healthHandler "github.com/hilthontt/convoy/internal/presentation/handler/health"
	roomHandler "github.com/hilthontt/convoy/internal/presentation/handler/rooms"
	routeHandler "github.com/hilthontt/convoy/internal/presentation/handler/route"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Application struct {
	config        configs.Config
	roomHandler   *roomHandler.Handler
	routeHandler  *routeHandler.Handler
	healthHandler *healthHandler.Handler
	logger        logging.Logger
	ratelimiter   ratelimiter.Limiter
	metrics       *metrics.Metrics
}

func NewApplication(
	config configs.Config,
	roomHandler *roomHandler.Handler,
	routeHandler *routeHandler.Handler,
	healthHandler *healthHandler.Handler,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
	metrics *metrics.Metrics,
) *Application {
	return &Application{
		config:        config,
		roomHandler:   roomHandler,
		routeHandler:  routeHandler,
		healthHandler: healthHandler,
		logger:        logger,
		ratelimiter:   ratelimiter,
		metrics:       metrics,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(app.enableCors)
	r.Use(app.loggerMiddleware)
	r.Use(app.prometheusMiddleware)

	r.Handle("/metrics", app.metrics.Handler())
	r.Handle("/debug/vars", expvar.Handler())

	r.Route("/api", func(r chi.Router) {
		// long-lived; kept clear of the request timeout
		r.With(app.rateLimiterMiddleware).Get("/ws", app.roomHandler.JoinRoomHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(app.requestTimeout()))
			r.Use(app.rateLimiterMiddleware)

			r.Get("/route", app.routeHandler.GetRouteHandler)

			r.Route("/rooms", func(r chi.Router) {
				r.Get("/{roomCode}", app.roomHandler.GetRoomHandler)
				r.Get("/{roomCode}/reckon", app.roomHandler.ReckonHandler)
			})
		})

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
	})

	return otelhttp.NewHandler(r, "convoy-api")
}

func (app *Application) requestTimeout() time.Duration {
	if app.config.HTTP.RequestTimeout > 0 {
		return app.config.HTTP.RequestTimeout
	}
	return 60 * time.Second
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.healthHandler.MarkUnhealthy()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
