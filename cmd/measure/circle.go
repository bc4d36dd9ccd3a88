package main

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"mapmeasure/internal/geo"
)

var (
	circleRadius float64
	circleSteps  int
	circleSnap   bool
)

var circleCmd = &cobra.Command{
	Use:   "circle <lng,lat>",
	Short: "Print a geodesic circle as a GeoJSON feature",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		center, err := parsePoint(args[0])
		if err != nil {
			return err
		}
		radius := circleRadius
		if circleSnap {
			radius = geo.DefaultSnapper().Snap(radius)
		}
		ring, err := geo.CirclePolygon(center, radius, circleSteps)
		if err != nil {
			return err
		}
		f := geojson.NewFeature(orb.Polygon{ring})
		f.Properties["radius"] = radius
		f.Properties["label"] = geo.FormatDistance(radius)
		out, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var snapCmd = &cobra.Command{
	Use:   "snap <meters>...",
	Short: "Show how raw radii snap to the preset targets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := geo.DefaultSnapper()
		for _, arg := range args {
			var raw float64
			if _, err := fmt.Sscan(arg, &raw); err != nil {
				return fmt.Errorf("radius %q: %w", arg, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%g -> %g\n", raw, s.Snap(raw))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(circleCmd)
	rootCmd.AddCommand(snapCmd)

	circleCmd.Flags().Float64VarP(&circleRadius, "radius", "r", 1000, "radius in meters")
	circleCmd.Flags().IntVar(&circleSteps, "steps", geo.DefaultCircleSteps, "polygon vertices")
	circleCmd.Flags().BoolVar(&circleSnap, "snap", false, "snap the radius to the preset targets")
}
