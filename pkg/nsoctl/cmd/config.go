package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nso-bridge/nsoctl/pkg/nso/account"
	"github.com/nso-bridge/nsoctl/pkg/nsoctl/config"
	"github.com/nso-bridge/nsoctl/pkg/nsoctl/output"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage nsoctl configuration",
	}

	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigViewCommand(),
		newConfigGetValueCommand(),
		newConfigSetValueCommand(),
	)

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		deviceGUID   string
		language     string
		tokenStorage string
		tokenFile    string
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize an nsoctl config file with a new device identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := rt.configPathValue()
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config already exists: %s", path)
				}
			}
			cfg := config.DefaultConfig()
			if deviceGUID == "" {
				deviceGUID = account.NewDeviceGUID()
			}
			cfg.Account.DeviceGUID = deviceGUID
			if language != "" {
				cfg.Account.Language = language
			}
			if tokenStorage != "" {
				cfg.Settings.TokenStorage = tokenStorage
			}
			cfg.Settings.TokenFile = tokenFile
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(path, &cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Initialized config at %s (device guid %s)\n", path, deviceGUID)
			return nil
		},
	}

	cmd.Flags().StringVar(&deviceGUID, "device-guid", "", "Device GUID to attest as (generated when empty)")
	cmd.Flags().StringVar(&language, "language", "", "Account language, e.g. en-US")
	cmd.Flags().StringVar(&tokenStorage, "storage", "", "Token storage backend: keyring or file")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "Token file for file storage")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config")

	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			return output.WriteObject(rt.Writer(), output.FormatYAML, rt.cfg)
		},
	}
}

func newConfigGetValueCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "get KEY",
		Short:     "Print a configuration value",
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			value, err := rt.cfg.Get(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), value)
			return nil
		},
	}
}

func newConfigSetValueCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "set KEY VALUE",
		Short:     "Set a configuration value",
		Args:      cobra.ExactArgs(2),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			if err := rt.cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := rt.cfg.Validate(); err != nil {
				return err
			}
			return config.Save(rt.configPathValue(), rt.cfg)
		},
	}
}
