// Command simulate drives one or more friends along straight lines through a
// running relay, publishing a position every Duration/Steps.
//
// Usage:
//
//	go run ./cmd/simulate \
//	  -relay http://localhost:8080 \
//	  -friend t1,t2 \
//	  -from 14.5833,120.9833 -to 14.6760,121.0437 \
//	  -duration 60s -steps 20
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/couchcryptid/friend-location-relay/internal/adapter/relayclient"
	"github.com/couchcryptid/friend-location-relay/internal/config"
	"github.com/couchcryptid/friend-location-relay/internal/domain"
	"github.com/couchcryptid/friend-location-relay/internal/observability"
	"github.com/couchcryptid/friend-location-relay/internal/simulator"
	"github.com/sourcegraph/conc/pool"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	relayURL := flag.String("relay", "http://localhost:8080", "relay base URL, including any path prefix")
	friends := flag.String("friend", "", "comma-separated friend ids to simulate")
	from := flag.String("from", "", "start position as lat,lon")
	to := flag.String("to", "", "end position as lat,lon")
	duration := flag.Duration("duration", 60*time.Second, "total travel time")
	steps := flag.Int("steps", simulator.DefaultSteps, "number of intervals")
	abort := flag.Bool("abort-on-error", false, "stop a simulation at its first failed update")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	ids := splitList(*friends)
	if len(ids) == 0 || *from == "" || *to == "" {
		flag.Usage()
		return errors.New("-friend, -from and -to are required")
	}
	startLat, startLon, err := domain.ParseLatLon(*from)
	if err != nil {
		return fmt.Errorf("-from: %w", err)
	}
	endLat, endLon, err := domain.ParseLatLon(*to)
	if err != nil {
		return fmt.Errorf("-to: %w", err)
	}

	logger := observability.NewLogger(&config.Config{LogLevel: *logLevel, LogFormat: "text"})
	metrics := observability.NewMetrics()
	client := relayclient.New(*relayURL, 10*time.Second, logger)

	policy := simulator.ContinueOnError
	if *abort {
		policy = simulator.AbortOnError
	}
	sim := simulator.New(client, logger, metrics, simulator.WithErrorPolicy(policy))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := pool.New().WithErrors().WithContext(ctx)
	for _, id := range ids {
		route := simulator.Route{
			EntityID: id,
			StartLat: startLat, StartLon: startLon,
			EndLat: endLat, EndLon: endLon,
			Duration: *duration,
			Steps:    *steps,
		}
		p.Go(func(ctx context.Context) error {
			report, err := sim.Run(ctx, route)
			fmt.Fprintf(os.Stdout, "%s: %d/%d updates published, %d failed\n",
				id, report.Published, report.Attempted, report.Failed)
			if err != nil {
				return fmt.Errorf("simulate %s: %w", id, err)
			}
			return nil
		})
	}
	return p.Wait()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
