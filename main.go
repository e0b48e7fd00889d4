package main

import (
	"fmt"
	"os"

	"github.com/gr-butler/weathernode/env"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "GRB-WeatherNode-1.0.0"

var args env.Args

var rootCmd = &cobra.Command{
	Use:     "weathernode",
	Short:   "Battery powered weather node",
	Long:    "Reads a BME280, uploads to ThingSpeak and sleeps, stretching the interval as the battery runs down",
	Version: version,
	Args:    cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if args.Verbose {
			logger.SetLevel(logger.DebugLevel)
		}
	},
	RunE: runNode,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&args.ConfigFile, "config", "c", "", "configuration `file` (yaml, json or toml), the environment is used when empty")
	rootCmd.PersistentFlags().BoolVarP(&args.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().BoolVar(&args.Once, "once", false, "run a single wake cycle and exit")
	rootCmd.Flags().BoolVar(&args.NoUpload, "no-upload", false, "read and log only, nothing is sent to ThingSpeak or the sinks")
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
