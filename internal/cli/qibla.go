package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/mawaqit/internal/display"
	"github.com/smokyabdulrahman/mawaqit/internal/qibla"
)

type qiblaJSON struct {
	Location   locationJSON `json:"location"`
	Bearing    float64      `json:"bearing"`
	Cardinal   string       `json:"cardinal"`
	DistanceKM float64      `json:"distanceKm"`
	Heading    *float64     `json:"heading,omitempty"`
	Rotation   *float64     `json:"rotation,omitempty"`
}

func (a *app) newQiblaCmd() *cobra.Command {
	var heading float64
	var magnetometer string
	cmd := &cobra.Command{
		Use:   "qibla",
		Short: "Show the Qibla direction and the distance to the Kaaba",
		Long: "Show the bearing from true north to the Kaaba. With --heading (or a raw\n" +
			"--magnetometer reading) also show how far to turn from the current heading.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var facing *float64
			switch {
			case magnetometer != "":
				h, err := parseMagnetometer(magnetometer)
				if err != nil {
					return err
				}
				facing = &h
			case cmd.Flags().Changed("heading"):
				if heading < 0 || heading >= 360 {
					return fmt.Errorf("heading must be in [0, 360), got %g", heading)
				}
				facing = &heading
			}

			s, loc, src, err := a.locate(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			bearing := qibla.Bearing(loc.Latitude, loc.Longitude)
			cardinal := qibla.Cardinal(bearing)
			dist := qibla.Distance(loc.Latitude, loc.Longitude)
			var turn *float64
			if facing != nil {
				r := qibla.Rotation(bearing, *facing)
				turn = &r
			}

			w := cmd.OutOrStdout()
			if a.flags.json {
				return printJSON(w, qiblaJSON{
					Location:   locationJSON{Name: loc.Name, Latitude: loc.Latitude, Longitude: loc.Longitude, Timezone: s.tz.String(), Source: string(src)},
					Bearing:    bearing,
					Cardinal:   cardinal,
					DistanceKM: dist,
					Heading:    facing,
					Rotation:   turn,
				})
			}

			fmt.Fprintln(w)
			fmt.Fprintf(w, "  %s\n", loc.Name)
			fmt.Fprintln(w)
			fmt.Fprintf(w, "  %s: %s\n", a.msgs.Qibla, display.Accent(fmt.Sprintf("%.1f° %s", bearing, cardinal)))
			fmt.Fprintf(w, "  %s: %.0f km\n", a.msgs.Distance, dist)
			if turn != nil {
				fmt.Fprintf(w, "  %s\n", display.Dim(fmt.Sprintf("heading %.1f°, turn %.1f° clockwise", *facing, *turn)))
			}
			fmt.Fprintln(w)
			return nil
		},
	}

	cmd.Flags().Float64Var(&heading, "heading", 0, "Current compass heading in degrees")
	cmd.Flags().StringVar(&magnetometer, "magnetometer", "", "Raw magnetometer reading as x,y (overrides --heading)")

	return cmd
}

// parseMagnetometer turns an "x,y" reading into a heading.
func parseMagnetometer(s string) (float64, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, fmt.Errorf("invalid magnetometer reading %q: want x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid magnetometer x %q", xs)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid magnetometer y %q", ys)
	}
	if x == 0 && y == 0 {
		return 0, fmt.Errorf("invalid magnetometer reading %q: zero vector", s)
	}
	return qibla.Heading(x, y), nil
}
