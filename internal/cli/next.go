package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/mawaqit/internal/prayer"
)

func (a *app) newNextCmd() *cobra.Command {
	var format, prayers string
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the next prayer with countdown",
		Long: "Display the next upcoming prayer time with a countdown.\n" +
			"The output is a single line, suitable for a tmux or shell status bar.",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseKinds(prayers)
			if err != nil {
				return err
			}
			return a.runNext(cmd, format, kinds)
		},
	}

	cmd.Flags().StringVar(&format, "format", prayer.FormatFull, "Display format: time-remaining, next-prayer-time, name-and-time, name-and-remaining, short-name-and-time, short-name-and-remaining, full, or a custom Go template")
	cmd.Flags().StringVar(&prayers, "prayers", "", "Comma-separated list of prayers to track (default: all six)")

	return cmd
}

// parseKinds turns "fajr, dhuhr" into kinds; empty means every prayer.
func parseKinds(list string) ([]prayer.Kind, error) {
	if strings.TrimSpace(list) == "" {
		return prayer.Kinds[:], nil
	}
	var kinds []prayer.Kind
	for _, name := range strings.Split(list, ",") {
		k, err := prayer.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// only keeps the entries of d whose kind is in kinds.
func only(d prayer.DayPrayers, kinds []prayer.Kind) prayer.DayPrayers {
	var out prayer.DayPrayers
	for _, k := range kinds {
		if p, ok := d.Get(k); ok {
			out = append(out, p)
		}
	}
	return out
}

func (a *app) runNext(cmd *cobra.Command, format string, kinds []prayer.Kind) error {
	ctx := cmd.Context()
	d, err := a.prayersFor(ctx, today)
	if err != nil {
		return err
	}
	defer d.session.Close()

	now := d.session.svc.Now()
	next, tomorrow, err := a.nextOf(ctx, d, now, kinds)
	if err != nil {
		return err
	}

	if a.flags.json {
		return printJSON(cmd.OutOrStdout(), a.nextJSON(*next, now, tomorrow, d.session.tz))
	}
	fmt.Fprintln(cmd.OutOrStdout(), prayer.FormatOutput(*next, now, format, a.cfg.TimeLayout(), d.session.tz))
	return nil
}

// nextOf finds the next tracked prayer, rolling over to tomorrow.
func (a *app) nextOf(ctx context.Context, d *day, now time.Time, kinds []prayer.Kind) (*prayer.PrayerTime, bool, error) {
	if next := prayer.NextPrayer(only(d.prayers, kinds), now); next != nil {
		return next, false, nil
	}
	days, err := d.more(ctx, 2)
	if err != nil {
		return nil, false, err
	}
	tracked := only(days[1], kinds)
	if len(tracked) == 0 {
		return nil, false, errors.New("next prayer unavailable")
	}
	return &tracked[0], true, nil
}
