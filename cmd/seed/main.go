package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"mapmeasure/internal/config"
	"mapmeasure/internal/geo"
	"mapmeasure/internal/measure"
	"mapmeasure/internal/storage"
)

// Seed script: writes a sample distance and circle into a session for local
// testing, using the configured storage backend.
func main() {
	sessionID := flag.String("session", "default", "session id to seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	backend, err := storage.Open(ctx, storage.Options{
		Backend:     cfg.Storage.Backend,
		FileDir:     cfg.Storage.FileDir,
		SQLitePath:  cfg.Storage.SQLitePath,
		DatabaseURL: cfg.Storage.DatabaseURL,
		RedisURL:    cfg.Storage.RedisURL,
		ValkeyAddr:  cfg.Storage.ValkeyAddr,
	})
	if err != nil {
		log.Fatalf("storage open failed: %v", err)
	}
	defer backend.Close()

	center := orb.Point{cfg.View.DefaultCenter[0], cfg.View.DefaultCenter[1]}
	now := time.Now().UTC()

	// cathedral to the opera, roughly
	a := center
	b := geo.Destination(center, 135, 850)
	dist := measure.NewDistance(uuid.NewString(), a, b, geo.DistanceMeters(a, b), now)

	ring, err := geo.CirclePolygon(center, 1000, cfg.Measure.CircleSteps)
	if err != nil {
		log.Fatalf("circle: %v", err)
	}
	circle := measure.NewCircle(uuid.NewString(), center, 1000, ring, now)

	state := measure.PersistedState{
		View:         measure.ViewState{Center: center, Zoom: cfg.View.DefaultZoom},
		Measurements: []measure.Measurement{dist, circle},
	}
	slot := storage.NewSlot(backend, cfg.Storage.KeyPrefix+":"+*sessionID)
	if err := slot.Save(ctx, state); err != nil {
		log.Fatalf("save failed: %v", err)
	}
	fmt.Printf("seeded %s in %s: %s (%s), %s (circle 1 km)\n",
		slot.Key(), backend.Name(), dist.ID, geo.FormatDistance(dist.Value), circle.ID)
}
