package main

import (
	"fmt"

	"github.com/chazu/cellmesh/pkg/population"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <population.{yaml,lisp}>",
	Short: "Print a population as YAML",
	Long: `Evaluate a population file and print it as YAML.

Lisp populations are expanded, so grids, scatters and clusters come out as
explicit cells with their fitted domain.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadSettings()
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	source, format, err := readSource(args[0])
	if err != nil {
		return err
	}

	pop, result := NewApp(WithSettings(cfg), WithLogger(log)).Population(source, format)
	if len(result.Errors) > 0 || pop == nil {
		printFindings(cmd.ErrOrStderr(), result)
		return fmt.Errorf("population is invalid: %d error(s)", len(result.Errors))
	}
	return population.Encode(cmd.OutOrStdout(), pop)
}
