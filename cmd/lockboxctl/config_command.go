package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/HerbHall/lockboxctl/internal/config"
	"github.com/HerbHall/lockboxctl/internal/dispatch"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect lockboxctl configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			s, err := cfg.Settings()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if *ctx.outputFlag == string(dispatch.FormatJSON) {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}

			if file := cfg.ConfigFile(); file != "" {
				fmt.Fprintf(out, "# %s\n", file)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(s); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one effective configuration value",
		Long:  "Print one effective configuration value. Keys: " + strings.Join(config.Keys, ", ") + ".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			value, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	})

	return configCmd
}
