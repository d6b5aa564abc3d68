package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/mawaqit/internal/display"
	"github.com/smokyabdulrahman/mawaqit/internal/hijri"
	"github.com/smokyabdulrahman/mawaqit/internal/prayer"
)

func (a *app) runToday(cmd *cobra.Command, args []string) error {
	d, err := a.prayersFor(cmd.Context(), today)
	if err != nil {
		return err
	}
	defer d.session.Close()
	return a.printDay(cmd, d, true)
}

func (a *app) newDateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "date <YYYY-MM-DD>",
		Short: "Show the prayer schedule of a given date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pick, err := onDate(args[0])
			if err != nil {
				return err
			}
			d, err := a.prayersFor(cmd.Context(), pick)
			if err != nil {
				return err
			}
			defer d.session.Close()
			return a.printDay(cmd, d, prayer.DateKey(d.date) == prayer.DateKey(d.session.svc.Now()))
		},
	}
}

// printDay renders one schedule. When isToday is set the next prayer is
// highlighted with its countdown.
func (a *app) printDay(cmd *cobra.Command, d *day, isToday bool) error {
	now := d.session.svc.Now()
	var next *prayer.PrayerTime
	var tomorrow bool
	if isToday {
		var err error
		if next, tomorrow, err = d.nextPrayer(cmd.Context(), now); err != nil {
			a.log.Warn().Err(err).Msg("next prayer unavailable")
		}
	}

	if a.flags.json {
		out := dayJSON{
			Location: a.locationJSON(d),
			Date:     prayer.DateKey(d.date),
			Hijri:    hijri.Format(d.date),
			Timings:  a.timings(d.prayers, d.session.tz),
		}
		if next != nil {
			out.Next = a.nextJSON(*next, now, tomorrow, d.session.tz)
		}
		return printJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	full := hijri.FormatFull(d.date, now)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", display.Bold(a.msgs.Title))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", d.location.Name)
	fmt.Fprintf(w, "  %s\n", display.Dim(full.Gregorian))
	fmt.Fprintf(w, "  %s\n", display.Dim(full.Hijri))
	fmt.Fprintln(w)

	tbl := display.NewTable(a.msgs.PrayerHeader, a.msgs.TimeHeader, "")
	for i, p := range d.prayers {
		remaining := ""
		if next != nil && !tomorrow && p.Timestamp == next.Timestamp {
			remaining = a.msgs.Remaining(prayer.TimeRemaining(p, now))
			tbl.Highlight(i)
		}
		tbl.AddRow(a.msgs.Name(p), p.At(d.session.tz).Format(a.cfg.TimeLayout()), remaining)
	}
	fmt.Fprint(w, tbl.Render())

	if next != nil {
		when := ""
		if tomorrow {
			when = " (" + a.msgs.Tomorrow + ")"
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s: %s %s%s  %s\n",
			a.msgs.NextPrayer,
			display.Accent(a.msgs.Name(*next)),
			next.At(d.session.tz).Format(a.cfg.TimeLayout()),
			when,
			display.Gray(a.msgs.Remaining(prayer.TimeRemaining(*next, now))),
		)
	}
	fmt.Fprintln(w)
	return nil
}

type locationJSON struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Source    string  `json:"source"`
}

type nextJSON struct {
	Prayer    string `json:"prayer"`
	Name      string `json:"name"`
	Time      string `json:"time"`
	Remaining string `json:"remaining"`
	Seconds   int64  `json:"seconds"`
	Tomorrow  bool   `json:"tomorrow"`
}

type dayJSON struct {
	Location locationJSON      `json:"location"`
	Date     string            `json:"date"`
	Hijri    string            `json:"hijri"`
	Timings  map[string]string `json:"timings"`
	Next     *nextJSON         `json:"next,omitempty"`
}

func (a *app) locationJSON(d *day) locationJSON {
	return locationJSON{
		Name:      d.location.Name,
		Latitude:  d.location.Latitude,
		Longitude: d.location.Longitude,
		Timezone:  d.session.tz.String(),
		Source:    string(d.source),
	}
}

// timings keys each formatted time by the lowercase English prayer name.
func (a *app) timings(prayers prayer.DayPrayers, tz *time.Location) map[string]string {
	out := make(map[string]string, len(prayers))
	for _, p := range prayers {
		out[strings.ToLower(prayer.EnglishName(p.Name))] = p.At(tz).Format(a.cfg.TimeLayout())
	}
	return out
}

func (a *app) nextJSON(p prayer.PrayerTime, now time.Time, tomorrow bool, tz *time.Location) *nextJSON {
	d := prayer.TimeRemaining(p, now)
	return &nextJSON{
		Prayer:    strings.ToLower(prayer.EnglishName(p.Name)),
		Name:      a.msgs.Name(p),
		Time:      p.At(tz).Format(a.cfg.TimeLayout()),
		Remaining: prayer.FormatRemaining(d),
		Seconds:   int64(d / time.Second),
		Tomorrow:  tomorrow,
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
