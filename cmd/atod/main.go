// @title           ATO controller API
// @version         1.0
// @description     Automatic top-off controller: status, commands, settings and updates.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ato_controller/internal/config"
	"ato_controller/internal/updater"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := buildCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildCLI() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "atod",
		Short:         "Automatic top-off controller daemon",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default configs/config.yml)")

	root.AddCommand(
		buildServeCommand(&configFile),
		buildSignCommand(),
		buildVerifyCommand(),
		buildKeygenCommand(),
		buildRollbackCommand(&configFile),
		buildVersionCommand(),
	)
	return root
}

func buildServeCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the controller, the HTTP API and the update scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func buildRollbackCommand(configFile *string) *cobra.Command {
	var content bool
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Restore the image that was active before the last update",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			path := cfg.Update.FirmwarePath
			if content {
				path = cfg.Update.ContentPath
			}
			if err := updater.NewFileTarget(path, 0).Rollback(); err != nil {
				return fmt.Errorf("rollback %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&content, "content", false, "roll back the web content instead of the firmware")
	return cmd
}

func buildVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the firmware version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
