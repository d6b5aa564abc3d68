package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/mawaqit/internal/config"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or modify configuration",
		Long:  "Display current configuration, or use subcommands to modify it.\nWhen run without subcommands, shows the current configuration.",
		RunE:  a.runConfigShow,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration (file, environment and flags merged)",
		Args:  cobra.NoArgs,
		RunE:  a.runConfigShow,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value",
		Long: fmt.Sprintf("Set a configuration value. Valid keys: %s\n\nExamples:\n  mawaqit config set latitude 21.4225\n  mawaqit config set timezone Asia/Riyadh\n  mawaqit config set lang en\n  mawaqit config set time_format 12h\n  mawaqit config set store sqlite",
			strings.Join(config.ValidKeys, ", ")),
		Args: cobra.ExactArgs(2),
		RunE: a.runConfigSet,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset config to defaults",
		Long:  "Delete the config file and restore all settings to defaults.",
		Args:  cobra.NoArgs,
		RunE:  a.runConfigReset,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.configPath)
			return nil
		},
	})

	return cmd
}

// runConfigShow displays the effective configuration.
func (a *app) runConfigShow(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	if a.flags.json {
		values := make(map[string]string, len(config.ValidKeys))
		for _, key := range config.ValidKeys {
			values[key], _ = a.cfg.Get(key)
		}
		return printJSON(w, values)
	}

	fmt.Fprintf(w, "  Configuration (%s)\n\n", a.configPath)
	for _, key := range config.ValidKeys {
		val, _ := a.cfg.Get(key)
		if val == "" {
			val = "(not set)"
		}
		fmt.Fprintf(w, "  %-15s %s\n", key, val)
	}
	return nil
}

// runConfigSet sets a key in the config file. Environment overrides are not
// written back.
func (a *app) runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	cfg, err := config.LoadFrom(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.SaveTo(a.configPath); err != nil {
		return err
	}

	shown, _ := cfg.Get(key)
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, shown)
	return nil
}

// runConfigReset deletes the config file.
func (a *app) runConfigReset(cmd *cobra.Command, args []string) error {
	if err := config.ResetAt(a.configPath); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Configuration reset to defaults.")
	return nil
}
