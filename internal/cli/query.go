package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/mawaqit/internal/display"
	"github.com/smokyabdulrahman/mawaqit/internal/hijri"
	"github.com/smokyabdulrahman/mawaqit/internal/prayer"
)

func (a *app) newQueryCmd() *cobra.Command {
	var days string
	cmd := &cobra.Command{
		Use:   "query <prayer>",
		Short: "Query a specific prayer time",
		Long: "Query a specific prayer time for today, or across multiple days with --days.\n\n" +
			"Valid prayer names: " + strings.Join(prayer.EnglishNames[:], ", ") + " (or their Arabic names)",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := prayer.ParseKind(args[0])
			if err != nil {
				return err
			}
			n := 1
			if days != "" {
				if n, err = parseDays(days); err != nil {
					return fmt.Errorf("invalid --days value: %w", err)
				}
			}
			return a.runQuery(cmd, k, n)
		},
	}

	cmd.Flags().StringVar(&days, "days", "", "Number of days to show (or 'week'/'month')")

	return cmd
}

type queryJSONSingle struct {
	Prayer string `json:"prayer"`
	Time   string `json:"time"`
	Date   string `json:"date"`
	Hijri  string `json:"hijri"`
}

type queryJSONMulti struct {
	Location locationJSON   `json:"location"`
	Prayer   string         `json:"prayer"`
	Days     []queryJSONDay `json:"days"`
}

type queryJSONDay struct {
	Date  string `json:"date"`
	Hijri string `json:"hijri"`
	Time  string `json:"time"`
}

func (a *app) runQuery(cmd *cobra.Command, k prayer.Kind, days int) error {
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
	clock := func(dp prayer.DayPrayers) string {
		p, ok := dp.Get(k)
		if !ok {
			return ""
		}
		return p.At(d.session.tz).Format(a.cfg.TimeLayout())
	}
	w := cmd.OutOrStdout()

	if days == 1 {
		if a.flags.json {
			return printJSON(w, queryJSONSingle{
				Prayer: strings.ToLower(k.String()),
				Time:   clock(d.prayers),
				Date:   prayer.DateKey(d.date),
				Hijri:  hijri.Format(d.date),
			})
		}
		fmt.Fprintf(w, "%s %s\n", a.msgs.PrayerName(k), clock(d.prayers))
		return nil
	}

	if a.flags.json {
		out := queryJSONMulti{Location: a.locationJSON(d), Prayer: strings.ToLower(k.String())}
		for i, dp := range all {
			date := d.date.AddDate(0, 0, i)
			out.Days = append(out.Days, queryJSONDay{
				Date:  prayer.DateKey(date),
				Hijri: hijri.Format(date),
				Time:  clock(dp),
			})
		}
		return printJSON(w, out)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", display.Bold(fmt.Sprintf("%s (%d)", a.msgs.PrayerName(k), days)))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", d.location.Name)
	fmt.Fprintln(w)

	tbl := display.NewTable(a.msgs.DateHeader, a.msgs.PrayerName(k))
	for i, dp := range all {
		tbl.AddRow(d.date.AddDate(0, 0, i).Format("Mon 02 Jan"), clock(dp))
	}
	tbl.Highlight(0)

	fmt.Fprint(w, tbl.Render())
	fmt.Fprintln(w)
	return nil
}
