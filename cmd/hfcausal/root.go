package main

import (
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/Valkje/heart-failure/config"
)

var rootCmd = &cobra.Command{
	Use:   "hfcausal",
	Short: "Causal analysis of heart failure survival",
	Long: `hfcausal tests a literature causal graph against a heart failure cohort,
refines it, estimates its edge strengths, and estimates the effect of one
exposure on survival by back-door adjustment and propensity scores.`,
	SilenceUsage: true,
}

var (
	configPath string
	envPath    string
	quiet      bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "analysis.yaml", "Analysis configuration file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "File of environment overrides")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress messages")
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath, envPath)
}

// logger writes progress to the command's error stream.
func logger(cmd *cobra.Command) *log.Logger {
	var w io.Writer = cmd.ErrOrStderr()
	if quiet {
		w = io.Discard
	}
	return log.New(w, "", log.Ltime)
}
