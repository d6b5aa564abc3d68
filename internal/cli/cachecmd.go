package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/mawaqit/internal/display"
)

func (a *app) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or manage the yearly prayer cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "List the cached years",
		Args:  cobra.NoArgs,
		RunE:  a.runCacheInfo,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached year (the remembered location is kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			n, err := s.svc.ClearCache(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached year(s).\n", n)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "prefetch [year]",
		Short: "Compute and store a whole year (default: next year)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runCachePrefetch,
	})

	return cmd
}

type cacheInfoJSON struct {
	Store string `json:"store"`
	Dir   string `json:"dir,omitempty"`
	Years []int  `json:"years"`
	Total int    `json:"totalSize"`
}

func (a *app) runCacheInfo(cmd *cobra.Command, args []string) error {
	s, err := a.open(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	info, err := s.svc.CacheInfo(cmd.Context())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if a.flags.json {
		return printJSON(w, cacheInfoJSON{Store: a.cfg.Store, Dir: a.cfg.CacheDir, Years: info.Years, Total: info.TotalSize})
	}

	fmt.Fprintf(w, "Store: %s\n", a.cfg.Store)
	if a.cfg.CacheDir != "" {
		fmt.Fprintf(w, "Dir:   %s\n", a.cfg.CacheDir)
	}
	if len(info.Years) == 0 {
		fmt.Fprintln(w, display.Dim("No cached years."))
		return nil
	}
	years := make([]string, len(info.Years))
	for i, y := range info.Years {
		years[i] = strconv.Itoa(y)
	}
	fmt.Fprintf(w, "Years: %s\n", strings.Join(years, ", "))
	return nil
}

func (a *app) runCachePrefetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	year := 0
	if len(args) == 1 {
		y, err := strconv.Atoi(args[0])
		if err != nil || y < 1 || y > 9999 {
			return fmt.Errorf("invalid year %q", args[0])
		}
		year = y
	}

	s, loc, _, err := a.locate(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	if year == 0 {
		year = s.svc.Now().Year() + 1
	}
	yc, err := s.svc.CacheYearPrayers(ctx, loc.Latitude, loc.Longitude, year, loc.Name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cached %d days of %d for %s.\n", len(yc.Days), year, loc.Name)
	return nil
}
