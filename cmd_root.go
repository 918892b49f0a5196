package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/chazu/cellmesh/pkg/config"
	"github.com/chazu/cellmesh/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "cellmesh",
	Short: "Voronoi cell mesh generator",
	Long: `cellmesh partitions a domain into one convex cell per seed, removes cells
swallowed by their neighbors, and refines every surviving cell toward a facet
budget without letting it leave its territory or lose its nuclei.

Populations are read from YAML or from population Lisp (.lisp).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/cellmesh/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CELLMESH")
	// e.g. CELLMESH_SCHEDULER_MAX_WORKERS for scheduler.max_workers
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// loadSettings loads the validated config and opens the logger it names.
func loadSettings() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// readSource reads a population file and detects its format.
func readSource(path string) (string, SourceFormat, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read population: %w", err)
	}
	return string(data), format, nil
}
