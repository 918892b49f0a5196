package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <population.{yaml,lisp}>",
	Short: "Check a population without generating a mesh",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadSettings()
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	source, format, err := readSource(args[0])
	if err != nil {
		return err
	}

	result := NewApp(WithSettings(cfg), WithLogger(log)).Validate(source, format)
	out := cmd.OutOrStdout()
	printFindings(out, result)
	if len(result.Errors) > 0 {
		return fmt.Errorf("population is invalid: %d error(s)", len(result.Errors))
	}
	fmt.Fprintf(out, "%s: %d cells, %d warning(s)\n", args[0], result.Cells, len(result.Warnings))
	return nil
}
