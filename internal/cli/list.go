package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/mawaqit/internal/display"
	"github.com/smokyabdulrahman/mawaqit/internal/hijri"
	"github.com/smokyabdulrahman/mawaqit/internal/prayer"
)

// maxDays bounds list and query ranges.
const maxDays = 366

func (a *app) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [days]",
		Short: "List prayer times for the next N days (default 7)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days := 7
			if len(args) > 0 {
				n, err := parseDays(args[0])
				if err != nil {
					return err
				}
				days = n
			}
			return a.runList(cmd, days)
		},
	}
}

func (a *app) newWeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week",
		Short: "Prayer times for the next 7 days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runList(cmd, 7)
		},
	}
}

func (a *app) newMonthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "month",
		Short: "Prayer times for the next 30 days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runList(cmd, 30)
		},
	}
}

// parseDays accepts a positive count, "week" or "month".
func parseDays(s string) (int, error) {
	switch s {
	case "week":
		return 7, nil
	case "month":
		return 30, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxDays {
		return 0, fmt.Errorf("invalid number of days: %q (must be 1-%d, 'week', or 'month')", s, maxDays)
	}
	return n, nil
}

type listJSONOutput struct {
	Location locationJSON  `json:"location"`
	Days     []listJSONDay `json:"days"`
}

type listJSONDay struct {
	Date    string            `json:"date"`
	Hijri   string            `json:"hijri"`
	Timings map[string]string `json:"timings"`
}

func (a *app) runList(cmd *cobra.Command, days int) error {
	ctx := cmd.Context()
	d, err := a.prayersFor(ctx, today)
	if err != nil {
		return err
	}
	defer d.session.Close()

	all, err := d.more(ctx, days)
	if err != nil {
		return err
	}

	if a.flags.json {
		out := listJSONOutput{Location: a.locationJSON(d)}
		for i, dp := range all {
			date := d.date.AddDate(0, 0, i)
			out.Days = append(out.Days, listJSONDay{
				Date:    prayer.DateKey(date),
				Hijri:   hijri.Format(date),
				Timings: a.timings(dp, d.session.tz),
			})
		}
		return printJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", display.Bold(fmt.Sprintf("%s (%d)", a.msgs.Title, days)))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", d.location.Name)
	fmt.Fprintln(w)

	headers := []string{a.msgs.DateHeader}
	for _, k := range prayer.Kinds {
		headers = append(headers, a.msgs.PrayerName(k))
	}
	tbl := display.NewTable(headers...)
	for i, dp := range all {
		row := []string{d.date.AddDate(0, 0, i).Format("Mon 02 Jan")}
		for _, p := range dp {
			row = append(row, p.At(d.session.tz).Format(a.cfg.TimeLayout()))
		}
		tbl.AddRow(row...)
	}
	// Today's row.
	tbl.Highlight(0)

	fmt.Fprint(w, tbl.Render())
	fmt.Fprintln(w)
	return nil
}
