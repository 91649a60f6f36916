package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jonathan/codecraft/internal/implementation"
	"github.com/jonathan/codecraft/internal/observability"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Describe what a batch of recommendations would change",
	Long:  "Reads a batch request (the body of POST /api/implementation/plan) and prints one plan per recommendation. Nothing is cloned, run or pushed.",
	RunE:  runPlan,
}

var planFile string

func init() {
	planCmd.Flags().StringVarP(&planFile, "file", "f", "-", "Batch request JSON file, or - for stdin")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	var in io.Reader = cmd.InOrStdin()
	if planFile != "-" {
		f, err := os.Open(planFile)
		if err != nil {
			return fmt.Errorf("failed to open request: %w", err)
		}
		defer f.Close()
		in = f
	}

	var req implementation.PlanRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("failed to parse request: %w", err)
	}

	plans, err := implementation.PlanBatch(req)
	if err != nil {
		return err
	}

	if outputFormat == "text" {
		observability.NewPrinter(cmd.OutOrStdout()).PrintPlans(plans)
		return nil
	}
	return writeJSON(cmd.OutOrStdout(), plans)
}
