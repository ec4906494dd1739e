package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/HerbHall/lockboxctl/internal/discovery"
	"github.com/HerbHall/lockboxctl/internal/dispatch"
	"github.com/HerbHall/lockboxctl/internal/lockbox"
	"github.com/HerbHall/lockboxctl/internal/password"
	"github.com/HerbHall/lockboxctl/internal/version"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var verboseFlag bool
	var outputFlag string
	var actionFlag string

	rootCmd := &cobra.Command{
		Use:           "lockboxctl",
		Short:         "Control a networked lockbox",
		Version:       version.Info(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	ctx := newCommandContext(&configFlag, &verboseFlag, &outputFlag, flags)

	flags.StringVar(&configFlag, "config", "", "Configuration file path")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging on stderr")
	flags.StringVarP(&outputFlag, "output", "o", string(dispatch.FormatText), "Output format: text, json or table")
	flags.StringP("device", "d", "", "Name of the lockbox to control")
	flags.String("host-override", "", "Base URL of the lockbox; skips discovery")
	flags.StringP("password-file", "f", password.DefaultFile, "Password artifact path (.txt, .png, .jpg or .gif)")
	flags.StringP("password", "p", "", "Password to use instead of generating or reading one")
	flags.StringP("setting", "s", "", "Setting to change, as key=value")
	flags.Duration("timeout", discovery.DefaultInterval, "Discovery poll interval")
	flags.Int("attempts", discovery.DefaultAttempts, "Discovery poll attempts")
	flags.Duration("http-timeout", lockbox.DefaultTimeout, "Timeout for one request to the lockbox")
	flags.String("interface", "", "Network interface for mDNS queries")

	rootCmd.Flags().StringVarP(&actionFlag, "action", "a", "",
		"Action to run: "+actionList())

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if actionFlag == "" {
			return cmd.Help()
		}
		action, err := dispatch.ParseAction(actionFlag)
		if err != nil {
			return err
		}
		return ctx.runAction(cmd, action, passwordFlag(cmd), settingFlag(cmd))
	}

	rootCmd.AddCommand(newLockCommand(ctx))
	rootCmd.AddCommand(newUnlockCommand(ctx))
	rootCmd.AddCommand(newActionCommand(ctx, dispatch.ActionUpdate, "Install the latest firmware on the lockbox"))
	rootCmd.AddCommand(newActionCommand(ctx, dispatch.ActionInfo, "Show the lockbox settings"))
	rootCmd.AddCommand(newChangeSettingCommand(ctx))
	rootCmd.AddCommand(newDiscoverCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newVersionCommand(ctx))

	return rootCmd
}

func actionList() string {
	names := make([]string, 0, len(dispatch.Actions))
	for _, a := range dispatch.Actions {
		names = append(names, string(a))
	}
	return strings.Join(names, ", ")
}

// passwordFlag returns the --password value, or nil when it was not given.
// An explicitly empty password is still a password.
func passwordFlag(cmd *cobra.Command) *string {
	f := cmd.Flags().Lookup("password")
	if f == nil || !f.Changed {
		return nil
	}
	v := f.Value.String()
	return &v
}

func settingFlag(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("setting")
	return v
}

func newLockCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   string(dispatch.ActionLock),
		Short: "Lock the lockbox with a new password",
		Long: "Lock the lockbox. Without --password a random password is generated. " +
			"The password is written to --password-file before the lockbox is contacted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runAction(cmd, dispatch.ActionLock, passwordFlag(cmd), "")
		},
	}
}

func newUnlockCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   string(dispatch.ActionUnlock),
		Short: "Unlock the lockbox",
		Long: "Unlock the lockbox. Without --password the password is read from " +
			"--password-file; a missing file sends an empty password.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runAction(cmd, dispatch.ActionUnlock, passwordFlag(cmd), "")
		},
	}
}

func newActionCommand(ctx *commandContext, action dispatch.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runAction(cmd, action, nil, "")
		},
	}
}

func newChangeSettingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     string(dispatch.ActionChangeSetting) + " [key=value]",
		Aliases: []string{"change-setting", "set"},
		Short:   "Change one lockbox setting",
		Long: fmt.Sprintf("Change one lockbox setting. Known keys: %s.",
			strings.Join(lockbox.SettingKeys, ", ")),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setting := settingFlag(cmd)
			if len(args) == 1 {
				if setting != "" && setting != args[0] {
					return fmt.Errorf("setting given both as argument and --setting")
				}
				setting = args[0]
			}
			return ctx.runAction(cmd, dispatch.ActionChangeSetting, nil, setting)
		},
	}
}

func newDiscoverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "List lockboxes announcing on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, s, cleanup, err := ctx.newDispatcher(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			start := time.Now()
			devices, err := d.Discover(cmd.Context(), s.Device)
			if err != nil {
				return err
			}
			if ctx.verbose() {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d device(s) in %s\n", len(devices), time.Since(start).Round(time.Millisecond))
			}
			return nil
		},
	}
}

func newVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.outputFlag != nil && *ctx.outputFlag == string(dispatch.FormatJSON) {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(version.Map())
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
			return nil
		},
	}
}
