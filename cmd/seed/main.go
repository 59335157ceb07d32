// Command seed loads three Metro Manila test friends into a running relay and
// prints how far each is from a reference point.
//
// Usage:
//
//	go run ./cmd/seed -relay http://localhost:8080 -ref 14.5995,120.9842
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/couchcryptid/friend-location-relay/internal/adapter/relayclient"
	"github.com/couchcryptid/friend-location-relay/internal/config"
	"github.com/couchcryptid/friend-location-relay/internal/domain"
	"github.com/couchcryptid/friend-location-relay/internal/observability"
	"github.com/sourcegraph/conc/pool"
)

var testFriends = []domain.LocationUpdate{
	{EntityID: "1", Latitude: domain.Float(14.6760), Longitude: domain.Float(121.0437), Label: "Quezon City"},
	{EntityID: "2", Latitude: domain.Float(14.5547), Longitude: domain.Float(121.0244), Label: "Makati"},
	{EntityID: "3", Latitude: domain.Float(14.5764), Longitude: domain.Float(121.0851), Label: "Pasig"},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	relayURL := flag.String("relay", "http://localhost:8080", "relay base URL, including any path prefix")
	ref := flag.String("ref", "14.5995,120.9842", "reference position as lat,lon (default Manila)")
	flag.Parse()

	refLat, refLon, err := domain.ParseLatLon(*ref)
	if err != nil {
		return fmt.Errorf("-ref: %w", err)
	}

	logger := observability.NewLogger(&config.Config{LogLevel: "warn", LogFormat: "text"})
	client := relayclient.New(*relayURL, 10*time.Second, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p := pool.New().WithErrors().WithContext(ctx)
	for _, friend := range testFriends {
		p.Go(func(ctx context.Context) error {
			if _, err := client.UpsertLocation(ctx, friend); err != nil {
				return fmt.Errorf("seed friend %s: %w", friend.EntityID, err)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	recs, err := client.ListLocations(ctx)
	if err != nil {
		return fmt.Errorf("list locations: %w", err)
	}
	for _, rec := range recs {
		km := domain.HaversineDistanceKm(refLat, refLon, rec.Latitude, rec.Longitude)
		fmt.Fprintf(os.Stdout, "%-4s %-14s %9.4f %9.4f  %s away\n",
			rec.EntityID, rec.Label, rec.Latitude, rec.Longitude, domain.FormatDistance(km))
	}
	return nil
}
