package main

import (
	"github.com/spf13/cobra"

	"github.com/docfield/docfield/internal/api"
	"github.com/docfield/docfield/version"
)

var (
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "docfield",
	Short: "Asynchronous contract field extraction over OCR and LLM",
	Long: `Docfield extracts typed field values from contract documents.

A submitted task names a set of files and a field contract. Each file is
OCR'd (or its cached text artifact reused), fed through an LLM with a
field-extraction prompt, and the per-file values are merged into one
result delivered to the caller's webhook.

The pipeline includes:
  - OCR artifact caching via the file center
  - PaddleOCR-VL recognition, optionally in a managed local container
  - Typed value normalization (amounts, dates, durations)
  - At-least-once callback delivery with retries`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.docfield/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
