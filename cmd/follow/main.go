package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hilthontt/convoy/internal/alerts"
	"github.com/hilthontt/convoy/internal/client"
	"github.com/hilthontt/convoy/internal/domain"
	"github.com/hilthontt/convoy/internal/infrastructure/configs"
	"github.com/hilthontt/convoy/internal/infrastructure/env"
	"github.com/hilthontt/convoy/internal/infrastructure/logging"
	"github.com/hilthontt/convoy/internal/infrastructure/routing"
	"github.com/hilthontt/convoy/internal/infrastructure/ws"
	"github.com/hilthontt/convoy/internal/reckoning"
)

// follow joins a room and reads position fixes from stdin, one per line:
//
//	lat,lon[,speedKmh,heading,accuracy]
//
// Lines starting with "/pause" or "/dest label,lat,lon" are sent as room
// actions; "/follow <participantId>" pins the compared peer.
func main() {
	// the shared config file supplies defaults; flags override it
	cfg, err := configs.Load(configs.DetermineConfigPath(""))
	if err != nil {
		log.Fatal(err)
	}

	opts := parseFlags(flag.CommandLine, cfg, os.Args[1:])

	logger, err := logging.NewLogger(&logging.LoggerConfig{
		Encoding: "console",
		Level:    opts.logLevel,
		Logger:   "zerolog",
	})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	routeClient, err := client.NewRouteClient(client.RouteClientOptions{BaseURL: opts.server, Logger: logger})
	if err != nil {
		logger.Fatalf("route client: %v", err)
	}
	querier := routing.NewCachedQuerier(routeClient, routing.CachedQuerierOptions{
		TTL:         opts.cacheTTL,
		MinInterval: opts.minInterval,
		Logger:      logger,
	})
	tracker := client.NewTracker(reckoning.NewReckoner(querier, logger), alerts.NewMonitor(opts.thresholdKm), logger)

	session, err := client.Dial(ctx, opts.server, logger)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer session.Close()

	states := make(chan *domain.RoomView, 1)
	session.SetHandlers(client.Handlers{
		Welcome: func(id string) {
			tracker.SetSelf(id)
			logger.Info(logging.Websocket, logging.Connect, "connected", map[logging.ExtraKey]any{
				logging.Participant: id,
			})
		},
		State: func(view *domain.RoomView) {
			// only the newest snapshot matters
			select {
			case <-states:
			default:
			}
			states <- view
		},
		RoomMessage: func(code string, msg domain.RoomMessage) {
			if msg.Type == domain.RoomMessageDestination {
				tracker.DestinationChanged()
			}
			logger.Info(logging.Room, logging.Dispatch, msg.Text, map[logging.ExtraKey]any{
				logging.RoomCode:  code,
				logging.EventType: string(msg.Type),
				"by":              msg.By,
			})
		},
		Error: func(p ws.ErrorPayload) {
			logger.Warn(logging.Websocket, logging.Dispatch, p.Message, map[logging.ExtraKey]any{
				"code": p.Code,
			})
		},
	})

	go func() {
		if err := session.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(logging.Websocket, logging.Disconnect, "connection lost", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		stop()
	}()

	if err := session.Join(ws.JoinPayload{RoomCode: opts.room, Name: opts.name, CarType: opts.carType, Color: opts.color}); err != nil {
		logger.Fatalf("join: %v", err)
	}

	go evaluate(ctx, tracker, states, logger)
	go readInput(ctx, session, tracker, logger)

	<-ctx.Done()
}

type options struct {
	server      string
	room        string
	name        string
	carType     string
	color       string
	thresholdKm float64
	cacheTTL    time.Duration
	minInterval time.Duration
	logLevel    string
}

// parseFlags reads the command line; values from cfg are the defaults.
func parseFlags(fs *flag.FlagSet, cfg *configs.Config, args []string) options {
	var o options
	fs.StringVar(&o.server, "server", env.GetString("CONVOY_SERVER", "http://localhost:3000"), "convoy server base url")
	fs.StringVar(&o.room, "room", "", "room code to join")
	fs.StringVar(&o.name, "name", env.GetString("USER", ""), "display name")
	fs.StringVar(&o.carType, "car", "", "car type")
	fs.StringVar(&o.color, "color", "", "car color")
	fs.Float64Var(&o.thresholdKm, "alert-km", cfg.Alerts.ThresholdKm, "destination alert distance in km")
	fs.DurationVar(&o.cacheTTL, "route-cache-ttl", cfg.Routing.CacheTTL, "route cache ttl")
	fs.DurationVar(&o.minInterval, "route-min-interval", cfg.Routing.MinInterval, "minimum interval between route queries")
	fs.StringVar(&o.logLevel, "log-level", cfg.Logger.Level, "log level")
	_ = fs.Parse(args)
	return o
}

func evaluate(ctx context.Context, tracker *client.Tracker, states <-chan *domain.RoomView, logger logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case view := <-states:
			go report(ctx, tracker, view, logger)
		}
	}
}

func report(ctx context.Context, tracker *client.Tracker, view *domain.RoomView, logger logging.Logger) {
	up, err := tracker.Update(ctx, view)
	if errors.Is(err, client.ErrStale) {
		return
	}

	now := time.Now()
	for _, p := range view.Participants {
		extra := map[logging.ExtraKey]any{
			logging.RoomCode:    view.RoomCode,
			logging.Participant: p.ID,
			"car":               p.CarType,
			"lastUpdate":        reckoning.TimeAgo(now, time.UnixMilli(p.TS)),
		}
		if view.OwnerID != nil && *view.OwnerID == p.ID {
			extra["owner"] = true
		}
		logger.Debug(logging.Room, logging.Position, p.Name, extra)
	}

	if sel, ok := up.Selected(); ok {
		logger.Info(logging.Routing, logging.Reckoning, sel.VerdictText, map[logging.ExtraKey]any{
			logging.Participant: sel.OtherID,
			"eta":               sel.ETAText,
		})
	}
	if up.Destination != nil && view.Destination != nil {
		logger.Info(logging.Routing, logging.Destination, view.Destination.Label, map[logging.ExtraKey]any{
			"eta": up.Destination.ETAText,
		})
	}
	if up.Alert != nil {
		logger.Warn(logging.Routing, logging.Alert, up.Alert.Text, nil)
	}
}

func readInput(ctx context.Context, session *client.Session, tracker *client.Tracker, logger logging.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		switch {
		case strings.HasPrefix(line, "/pause"):
			err = session.Pause(strings.TrimSpace(strings.TrimPrefix(line, "/pause")))
		case strings.HasPrefix(line, "/dest "):
			err = sendDestination(session, strings.TrimPrefix(line, "/dest "))
		case strings.HasPrefix(line, "/follow "):
			tracker.Select(strings.TrimSpace(strings.TrimPrefix(line, "/follow ")))
		default:
			var fix domain.Fix
			if fix, err = parseFix(line); err == nil {
				err = session.SendPosition(fix)
			}
		}

		if err != nil {
			logger.Warn(logging.General, logging.Dispatch, "input rejected", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
	}
}

func sendDestination(session *client.Session, arg string) error {
	parts := strings.Split(arg, ",")
	if len(parts) != 3 {
		return fmt.Errorf("expected label,lat,lon")
	}
	c, err := routing.ParseCoordinate(parts[1] + "," + parts[2])
	if err != nil {
		return err
	}
	return session.SetDestination(strings.TrimSpace(parts[0]), c.Lat, c.Lon)
}

// parseFix reads "lat,lon[,speedKmh,heading,accuracy]". The fix is checked
// locally first so obviously bad fixes never reach the server.
func parseFix(line string) (domain.Fix, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return domain.Fix{}, fmt.Errorf("expected lat,lon")
	}

	c, err := routing.ParseCoordinate(parts[0] + "," + parts[1])
	if err != nil {
		return domain.Fix{}, err
	}
	fix := domain.Fix{Lat: c.Lat, Lon: c.Lon, TS: time.Now().UnixMilli()}

	optional := []**float64{&fix.SpeedKmh, &fix.Heading, &fix.Accuracy}
	for i, raw := range parts[2:] {
		if i >= len(optional) {
			break
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Fix{}, fmt.Errorf("field %d: %w", i+3, err)
		}
		*optional[i] = &v
	}

	return fix, fix.Validate()
}
