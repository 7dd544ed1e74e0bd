package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Valkje/heart-failure/pipeline"
)

var cutoffCmd = &cobra.Command{
	Use:   "cutoff",
	Short: "Select the censoring cutoff",
	Long: `Load the cohort, print the number of patients censored, deceased and
at risk at every candidate cutoff, and the cutoff selected.`,
	Args: cobra.NoArgs,
	RunE: runCutoff,
}

func init() {
	rootCmd.AddCommand(cutoffCmd)
}

func runCutoff(cmd *cobra.Command, args []string) error {

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cr, err := pipeline.Cutoff(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%6s %9s %9s %9s\n", "Time", "Censored", "Deceased", "AtRisk")
	for _, c := range cr.Table {
		mark := ""
		if c.T == cr.Cutoff {
			mark = " <-"
		}
		fmt.Fprintf(out, "%6d %9d %9d %9d%s\n", c.T, c.Censored, c.Deceased, c.AtRisk, mark)
	}
	fmt.Fprintf(out, "cutoff %d: %d of %d patients kept\n", cr.Cutoff, len(cr.Patients), len(cr.Loaded))

	return nil
}
