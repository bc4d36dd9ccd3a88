package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"mapmeasure/internal/geo"
)

var rootCmd = &cobra.Command{
	Use:   "measure",
	Short: "Offline geodesic measurements",
	Long: `measure runs the same geometry the map server uses, without a server.
Points are given as "lng,lat" in decimal degrees.`,
	Version: "1.0.0",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parsePoint(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("point %q: want lng,lat", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	p := orb.Point{lng, lat}
	if !geo.ValidPoint(p) {
		return orb.Point{}, fmt.Errorf("point %q out of range", s)
	}
	return p, nil
}
