package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"mapmeasure/internal/measure"
)

type locationPayload struct {
	Sample *measure.Fix `json:"sample,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// Feeds geolocation samples into a session, like a device walking a line.
func main() {
	api := flag.String("api", "http://localhost:8080", "API base URL")
	sessionID := flag.String("session", "default", "session id to feed")
	lat := flag.Float64("lat", 50.9422, "starting latitude")
	lon := flag.Float64("lon", 6.9578, "starting longitude")
	accuracy := flag.Float64("accuracy", 5, "gps accuracy meters")
	interval := flag.Duration("interval", 3*time.Second, "sample interval")
	count := flag.Int("count", 20, "number of samples to send")
	stepLat := flag.Float64("delta-lat", 0.0001, "increment lat per sample")
	stepLon := flag.Float64("delta-lon", 0.0001, "increment lon per sample")
	fail := flag.String("error", "", "report this geolocation error instead of samples")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	if *fail != "" {
		if err := send(client, *api, *sessionID, locationPayload{Error: *fail}); err != nil {
			log.Fatalf("error report failed: %v", err)
		}
		log.Printf("reported geolocation error")
		return
	}
	for i := 0; i < *count; i++ {
		payload := locationPayload{Sample: &measure.Fix{
			Lat:      *lat + float64(i)*(*stepLat),
			Lng:      *lon + float64(i)*(*stepLon),
			Accuracy: *accuracy,
		}}
		if err := send(client, *api, *sessionID, payload); err != nil {
			log.Printf("sample %d failed: %v", i+1, err)
		} else {
			log.Printf("sample %d sent", i+1)
		}
		time.Sleep(*interval)
	}
}

func send(client *http.Client, api, sessionID string, payload locationPayload) error {
	body, _ := json.Marshal(payload)
	url := fmt.Sprintf("%s/api/sessions/%s/location", api, sessionID)
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %s", resp.Status)
	}
	return nil
}

func init() {
	log.SetOutput(os.Stdout)
}
