package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/mawaqit/internal/announce"
	"github.com/smokyabdulrahman/mawaqit/internal/cache"
	"github.com/smokyabdulrahman/mawaqit/internal/geo"
	"github.com/smokyabdulrahman/mawaqit/internal/httpapi"
	"github.com/smokyabdulrahman/mawaqit/internal/tracker"
)

const shutdownTimeout = 5 * time.Second

func (a *app) newServeCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep today's schedule current and serve it over HTTP (and MQTT)",
		Long: "Run the prayer tracker as a daemon: it refreshes at local midnight, serves a\n" +
			"JSON API and Prometheus metrics, and publishes the schedule to mqtt_broker\n" +
			"when one is configured.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = a.cfg.ListenAddr
			}
			return a.runServe(cmd, listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Address to serve on (default: listen_addr, 127.0.0.1:8085)")

	return cmd
}

// provider picks the tracker's position source: configured coordinates are
// fixed, otherwise IP geolocation.
func (a *app) provider() geo.Provider {
	if a.cfg.HasCoordinates() {
		return geo.StaticLocator{Location: geo.Location{Latitude: a.cfg.Latitude, Longitude: a.cfg.Longitude}}
	}
	return a.locatorOrDefault()
}

func (a *app) runServe(cmd *cobra.Command, listen string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	s, err := a.open(ctx, cache.WithMetrics(cache.NewMetrics(reg)))
	if err != nil {
		return err
	}
	defer s.Close()
	if a.cfg.HasCoordinates() {
		a.settle(s, cache.CachedLocation{Latitude: a.cfg.Latitude, Longitude: a.cfg.Longitude})
	} else if last, err := s.svc.GetLastLocation(ctx); err == nil && last != nil {
		a.settle(s, *last)
	}

	tr := tracker.New(s.svc, a.provider(),
		tracker.WithMessages(a.msgs),
		tracker.WithLocation(s.tz),
		tracker.WithClock(a.now),
		tracker.WithLogger(a.log.With().Str("component", "tracker").Logger()),
	)
	if err := tr.Start(ctx); err != nil {
		return err
	}
	defer tr.Stop()

	if a.cfg.MQTTBroker != "" {
		closeAnnouncer, err := a.startAnnouncer(tr, s.tz)
		if err != nil {
			return err
		}
		defer closeAnnouncer()
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listen, err)
	}
	api := httpapi.NewServer(s.svc, tr,
		httpapi.WithMessages(a.msgs),
		httpapi.WithLogger(a.log.With().Str("component", "http").Logger()),
		httpapi.WithRegistry(reg),
	)
	srv := &http.Server{Handler: api.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	a.log.Info().Str("addr", ln.Addr().String()).Msg("serving")
	if a.onListen != nil {
		a.onListen(ln.Addr().String())
	}

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// startAnnouncer publishes every tracker change to MQTT, and re-announces
// each minute so the next-prayer field follows the clock.
func (a *app) startAnnouncer(tr *tracker.Tracker, tz *time.Location) (func(), error) {
	log := a.log.With().Str("component", "mqtt").Logger()
	client, err := announce.Dial(a.cfg.MQTTBroker, log)
	if err != nil {
		return nil, err
	}
	ann := announce.New(client, a.cfg.MQTTTopic,
		announce.WithLocation(tz),
		announce.WithClock(a.now),
		announce.WithLogger(log),
	)
	detach := ann.Attach(tr)

	c := cron.New(cron.WithLocation(tz))
	if _, err := c.AddFunc("@every 1m", func() {
		if err := ann.Announce(tr.State()); err != nil {
			log.Warn().Err(err).Msg("announce failed")
		}
	}); err != nil {
		detach()
		client.Close()
		return nil, fmt.Errorf("failed to schedule announcements: %w", err)
	}
	c.Start()

	return func() {
		<-c.Stop().Done()
		detach()
		client.Close()
	}, nil
}
