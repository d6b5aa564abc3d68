package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/mawaqit/internal/api"
	"github.com/smokyabdulrahman/mawaqit/internal/display"
	"github.com/smokyabdulrahman/mawaqit/internal/prayer"
)

func (a *app) newVerifyCmd() *cobra.Command {
	var date string
	var tolerance time.Duration
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare the local schedule with the Al Adhan API (MWL)",
		Long: "Fetch the same day from the Al Adhan API using the Muslim World League method\n" +
			"and report the difference per prayer. Pass --timezone so both sides agree on\n" +
			"the clock. Exits non-zero when any prayer differs by more than --tolerance.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runVerify(cmd, date, tolerance)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Date to verify as YYYY-MM-DD (default: today)")
	cmd.Flags().DurationVar(&tolerance, "tolerance", 2*time.Minute, "Largest accepted difference")

	return cmd
}

type verifyJSON struct {
	Date        string           `json:"date"`
	Location    locationJSON     `json:"location"`
	Differences []api.Difference `json:"differences"`
	MaxDelta    string           `json:"maxDelta"`
	OK          bool             `json:"ok"`
}

func (a *app) runVerify(cmd *cobra.Command, date string, tolerance time.Duration) error {
	ctx := cmd.Context()
	pick := today
	if date != "" {
		var err error
		if pick, err = onDate(date); err != nil {
			return err
		}
	}

	d, err := a.prayersFor(ctx, pick)
	if err != nil {
		return err
	}
	defer d.session.Close()

	client := a.remote
	if client == nil {
		client = api.NewClient()
	}
	resp, err := client.FetchByCoordinates(ctx, d.date, d.location.Latitude, d.location.Longitude, d.session.tz)
	if err != nil {
		return err
	}
	diffs, err := api.Compare(d.prayers, resp.Data.Timings)
	if err != nil {
		return err
	}
	worst := api.MaxDelta(diffs)
	ok := worst <= tolerance
	a.log.Debug().Dur("max_delta", worst).Dur("tolerance", tolerance).Msg("verified against al adhan")

	w := cmd.OutOrStdout()
	if a.flags.json {
		if err := printJSON(w, verifyJSON{
			Date:        prayer.DateKey(d.date),
			Location:    a.locationJSON(d),
			Differences: diffs,
			MaxDelta:    worst.String(),
			OK:          ok,
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s  %s\n", display.Bold(prayer.DateKey(d.date)), d.location.Name)
		fmt.Fprintln(w)
		tbl := display.NewTable(a.msgs.PrayerHeader, "mawaqit", "Al Adhan", "Δ")
		for i, diff := range diffs {
			delta := fmt.Sprintf("%+dm", int(diff.Delta/time.Minute))
			if diff.Delta > tolerance || diff.Delta < -tolerance {
				tbl.Highlight(i)
			}
			tbl.AddRow(a.msgs.PrayerName(diff.Prayer), diff.Local, diff.Remote, delta)
		}
		fmt.Fprint(w, tbl.Render())
		fmt.Fprintln(w)
		if ok {
			fmt.Fprintf(w, "  %s\n\n", display.Green(fmt.Sprintf("OK: within %s", tolerance)))
		} else {
			fmt.Fprintf(w, "  %s\n\n", display.Red(fmt.Sprintf("MISMATCH: up to %s", worst)))
		}
	}

	if !ok {
		return fmt.Errorf("schedules differ by %s (tolerance %s)", worst, tolerance)
	}
	return nil
}
