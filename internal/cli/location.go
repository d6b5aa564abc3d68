package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/mawaqit/internal/cache"
	"github.com/smokyabdulrahman/mawaqit/internal/display"
)

func (a *app) newLocationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Show or set the remembered location",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the location prayers are computed for",
		Args:  cobra.NoArgs,
		RunE:  a.runLocationShow,
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "set <latitude> <longitude> [name...]",
		Short:   "Remember a location (the name is looked up when omitted)",
		Example: "  mawaqit location set 21.4225 39.8262 Makkah\n  mawaqit location set -- -33.8688 151.2093",
		Args:    cobra.MinimumNArgs(2),
		RunE:    a.runLocationSet,
	})

	return cmd
}

type locationShowJSON struct {
	locationJSON
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func (a *app) runLocationShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var loc *cache.CachedLocation
	src := sourceConfig
	if a.cfg.HasCoordinates() {
		resolved, _, err := a.resolveLocation(ctx, s.svc)
		if err != nil {
			return err
		}
		loc = &resolved
	} else {
		src = sourceCache
		if loc, err = s.svc.GetLastLocation(ctx); err != nil {
			return err
		}
	}
	if loc == nil {
		return errNoLocation
	}
	a.settle(s, *loc)

	w := cmd.OutOrStdout()
	updated := ""
	if src == sourceCache && loc.Timestamp > 0 {
		updated = time.UnixMilli(loc.Timestamp).In(s.tz).Format(time.DateTime)
	}
	if a.flags.json {
		return printJSON(w, locationShowJSON{
			locationJSON: locationJSON{Name: loc.Name, Latitude: loc.Latitude, Longitude: loc.Longitude, Timezone: s.tz.String(), Source: string(src)},
			UpdatedAt:    updated,
		})
	}

	fmt.Fprintf(w, "%s: %s\n", a.msgs.Location, display.Bold(loc.Name))
	fmt.Fprintf(w, "  %s, %s  (%s)\n", formatCoord(loc.Latitude), formatCoord(loc.Longitude), src)
	fmt.Fprintf(w, "  %s\n", s.tz)
	if updated != "" {
		fmt.Fprintf(w, "  %s\n", display.Dim(updated))
	}
	return nil
}

// parseLatLng validates a coordinate pair.
func parseLatLng(latStr, lngStr string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("invalid latitude %q: must be a number between -90 and 90", latStr)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil || lng < -180 || lng > 180 {
		return 0, 0, fmt.Errorf("invalid longitude %q: must be a number between -180 and 180", lngStr)
	}
	return lat, lng, nil
}

func (a *app) runLocationSet(cmd *cobra.Command, args []string) error {
	lat, lng, err := parseLatLng(args[0], args[1])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	name := strings.TrimSpace(strings.Join(args[2:], " "))
	if name == "" {
		name = s.svc.GetLocationName(ctx, lat, lng)
	}
	loc := cache.CachedLocation{Latitude: lat, Longitude: lng, Name: name, Timestamp: a.now().UnixMilli()}
	if err := s.svc.SaveLastLocation(ctx, loc); err != nil {
		return err
	}

	if a.cfg.HasCoordinates() {
		fmt.Fprintln(cmd.ErrOrStderr(), display.Yellow("warning:"), "configured latitude/longitude take precedence over the remembered location")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s, %s)\n", a.msgs.Location, name, formatCoord(lat), formatCoord(lng))
	return nil
}
