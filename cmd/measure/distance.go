package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mapmeasure/internal/geo"
)

var distanceCmd = &cobra.Command{
	Use:   "distance <lng,lat> <lng,lat>",
	Short: "Great-circle distance between two points",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := parsePoint(args[0])
		if err != nil {
			return err
		}
		b, err := parsePoint(args[1])
		if err != nil {
			return err
		}
		meters := geo.DistanceMeters(a, b)
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%.3f m, bearing %.1f°)\n", geo.FormatDistance(meters), meters, geo.Bearing(a, b))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(distanceCmd)
}
