package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smokyabdulrahman/mawaqit/internal/api"
	"github.com/smokyabdulrahman/mawaqit/internal/cache"
	"github.com/smokyabdulrahman/mawaqit/internal/config"
	"github.com/smokyabdulrahman/mawaqit/internal/display"
	"github.com/smokyabdulrahman/mawaqit/internal/geo"
	"github.com/smokyabdulrahman/mawaqit/internal/i18n"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	latitude   float64
	longitude  float64
	timezone   string
	json       bool
	cacheDir   string
	timeFormat string
	store      string
	lang       string
	verbose    bool
}

// app carries everything a command needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	version string
	flags   globalFlags

	configPath string
	cfg        *config.Config
	msgs       i18n.Messages
	log        zerolog.Logger
	now        func() time.Time

	locator  geo.Provider
	geocoder geo.Geocoder
	checker  cache.Checker
	remote   *api.Client
	onListen func(addr string)
}

// Option customises the CLI. Tests use it to pin the clock and replace
// network collaborators.
type Option func(*app)

// WithConfigPath reads and writes the config file at path.
func WithConfigPath(path string) Option { return func(a *app) { a.configPath = path } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(a *app) { a.now = now } }

// WithLocator replaces IP geolocation.
func WithLocator(p geo.Provider) Option { return func(a *app) { a.locator = p } }

// WithGeocoder replaces Nominatim.
func WithGeocoder(g geo.Geocoder) Option { return func(a *app) { a.geocoder = g } }

// WithChecker replaces the HTTP connectivity check.
func WithChecker(p cache.Checker) Option { return func(a *app) { a.checker = p } }

// WithAPIClient sets the Al Adhan client used by verify.
func WithAPIClient(c *api.Client) Option { return func(a *app) { a.remote = c } }

// withListenHook is called by serve once the HTTP listener is bound.
func withListenHook(fn func(addr string)) Option { return func(a *app) { a.onListen = fn } }

// flagKeys maps persistent flags onto config keys.
var flagKeys = []struct{ flag, key string }{
	{"latitude", "latitude"},
	{"longitude", "longitude"},
	{"timezone", "timezone"},
	{"cache-dir", "cache_dir"},
	{"time-format", "time_format"},
	{"store", "store"},
	{"lang", "lang"},
}

// NewRootCmd creates the root command for the mawaqit CLI.
// The version parameter is set by the calling binary via ldflags.
func NewRootCmd(version string, opts ...Option) *cobra.Command {
	a := &app{version: version, now: time.Now, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}

	rootCmd := &cobra.Command{
		Use:   "mawaqit",
		Short: "Offline Islamic prayer times",
		Long: "Computes prayer times locally with the Muslim World League method and caches\n" +
			"a whole year per location, so the schedule works without a network.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		// Default action: show today's prayer schedule.
		RunE:          a.runToday,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate(PrintVersion("{{.Version}}"))

	pf := rootCmd.PersistentFlags()
	pf.Float64Var(&a.flags.latitude, "latitude", 0, "Override latitude")
	pf.Float64Var(&a.flags.longitude, "longitude", 0, "Override longitude")
	pf.StringVar(&a.flags.timezone, "timezone", "", "IANA time zone for display and day boundaries (default: system)")
	pf.BoolVar(&a.flags.json, "json", false, "Output as JSON (where supported)")
	pf.StringVar(&a.flags.cacheDir, "cache-dir", "", "Cache directory (default: ~/.cache/mawaqit/)")
	pf.StringVar(&a.flags.timeFormat, "time-format", "", "Time format: 12h or 24h (overrides config)")
	pf.StringVar(&a.flags.store, "store", "", "Cache backend: file, sqlite, redis or memory")
	pf.StringVar(&a.flags.lang, "lang", "", "Output language: ar or en")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(a.newNextCmd())
	rootCmd.AddCommand(a.newListCmd())
	rootCmd.AddCommand(a.newWeekCmd())
	rootCmd.AddCommand(a.newMonthCmd())
	rootCmd.AddCommand(a.newQueryCmd())
	rootCmd.AddCommand(a.newDateCmd())
	rootCmd.AddCommand(a.newQiblaCmd())
	rootCmd.AddCommand(a.newLocationCmd())
	rootCmd.AddCommand(a.newCacheCmd())
	rootCmd.AddCommand(a.newConfigCmd())
	rootCmd.AddCommand(a.newVerifyCmd())
	rootCmd.AddCommand(a.newServeCmd())

	return rootCmd
}

// PrintVersion prints the version string in the expected format.
func PrintVersion(version string) string {
	return fmt.Sprintf("mawaqit %s\n", version)
}

// setup loads the config, applies flag overrides and builds the logger and
// string table.
func (a *app) setup(cmd *cobra.Command) error {
	if a.configPath == "" {
		p, err := config.Path()
		if err != nil {
			return err
		}
		a.configPath = p
	}
	cfg, err := config.LoadWithEnv(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	merged := cfg.WithDefaults()
	a.cfg = &merged

	if a.flags.json {
		display.SetEnabled(false)
	}
	a.log = newLogger(cmd.ErrOrStderr(), a.cfg.LogLevel, a.flags.verbose)

	msgs, err := i18n.For(a.cfg.Lang)
	if err != nil {
		return err
	}
	a.msgs = msgs
	return nil
}

// applyFlags copies explicitly set flags onto cfg, validating them the same
// way `config set` does. Flags win over the environment and the file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	root := cmd.Root().PersistentFlags()
	for _, fk := range flagKeys {
		f := changedFlag(flags, root, fk.flag)
		if f == nil {
			continue
		}
		if err := cfg.Set(fk.key, f.Value.String()); err != nil {
			return fmt.Errorf("--%s: %w", fk.flag, err)
		}
	}
	return nil
}

// changedFlag returns the named flag if it was explicitly set on either the
// local or persistent flag set.
func changedFlag(local, persistent *pflag.FlagSet, name string) *pflag.Flag {
	if f := local.Lookup(name); f != nil && f.Changed {
		return f
	}
	if f := persistent.Lookup(name); f != nil && f.Changed {
		return f
	}
	return nil
}

// newLogger writes human-readable logs to w. The level comes from
// log_level, or debug when verbose.
func newLogger(w io.Writer, level string, verbose bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: !isTerminal(w)}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && f == os.Stderr && display.Enabled()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
