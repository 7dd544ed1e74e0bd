package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Valkje/heart-failure/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole analysis",
	Long: `Run every stage of the analysis and write the diagrams, plots and
results workbook to a new directory under the output directory.`,
	Args: cobra.NoArgs,
	RunE: runAnalysis,
}

var noArtifacts bool

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&noArtifacts, "no-artifacts", false, "Do not write the run directory")
}

func runAnalysis(cmd *cobra.Command, args []string) error {

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	res, err := pipeline.Run(cfg, &pipeline.Config{
		Log:         logger(cmd),
		NoArtifacts: noArtifacts,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s\n", res.RunID)
	if res.Dir != "" {
		fmt.Fprintf(out, "artifacts in %s\n", res.Dir)
	}

	cmp := res.Adjust.Comparison
	fmt.Fprintf(out, "%s on %s, adjusting for %v\n", cmp.Outcome, cmp.Exposure, res.Adjust.Set)
	fmt.Fprintf(out, "  %-22s %s\n", "unadjusted", cmp.Unadjusted)
	fmt.Fprintf(out, "  %-22s %s\n", "back-door", cmp.Adjusted)
	pr := res.Propensity
	fmt.Fprintf(out, "  %-22s %s\n", "propensity covariate", pr.Covariate)
	fmt.Fprintf(out, "  %-22s %s\n", "propensity matched", pr.Match.Estimate)
	fmt.Fprintf(out, "  %-22s %s\n", "propensity weighted", pr.Weighted)
	if cmp.Confounded {
		fmt.Fprintln(out, "adjusted and unadjusted estimates differ by more than their standard errors")
	}

	return nil
}
