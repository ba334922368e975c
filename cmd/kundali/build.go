package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/kundali/internal/chart"
)

var (
	buildInput  string
	buildOutput string
	buildSave   bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Validate raw chart facts and print the chart output",
	Long: `Reads a chart input document, derives houses, normalizes strength, backfills
labels and repairs the dasha trees. Disagreements between supplied and derived
houses are reported as mismatches, never as errors.

Example:
  kundali build -i input.json -o chart.json --save`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildInput, "input", "i", "-", "chart input JSON (\"-\" for stdin)")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "-", "where to write the chart output")
	buildCmd.Flags().BoolVar(&buildSave, "save", false, "archive the chart in the configured store")
}

func runBuild(cmd *cobra.Command, args []string) error {
	blob, err := readInput(buildInput)
	if err != nil {
		return err
	}
	var in chart.Input
	if err := json.Unmarshal(blob, &in); err != nil {
		return fmt.Errorf("decode chart input: %w", err)
	}

	res, err := chart.NewPipeline(cfg.Engine.Language).RunWithProgress(cmd.Context(), in, func(stage, message string) {
		logger.Debug("chart stage", zap.String("stage", stage), zap.String("message", message))
	})
	if err != nil {
		return err
	}
	out := res.Output
	for _, m := range out.Mismatches {
		logger.Warn("house mismatch",
			zap.String("planet", m.Planet),
			zap.Int("api_house", int(m.APIHouse)),
			zap.Int("derived_house", int(m.DerivedHouse)))
	}
	for _, fix := range out.FixLog {
		logger.Info("repair", zap.String("detail", fix))
	}

	if buildSave {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		rec, err := st.Save(cmd.Context(), in, out)
		if err != nil {
			return err
		}
		logger.Info("chart saved", zap.String("chart_id", rec.ID), zap.String("store", cfg.Store.Backend))
	}
	return writeJSON(buildOutput, out)
}
