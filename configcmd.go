package main

import (
	"fmt"

	"github.com/gr-butler/weathernode/config"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the node configuration",
	Args:  cobra.NoArgs,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load and validate the configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(args.ConfigFile)
		if err != nil {
			return err
		}
		logger.Infof("Configuration OK, mode [%v]", cfg.Mode.Kind())
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(args.ConfigFile)
		if err != nil {
			return err
		}
		b, err := config.Marshal(cfg.Redacted())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

func init() {
	configCmd.AddCommand(configCheckCmd, configPrintCmd)
}
