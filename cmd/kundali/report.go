package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/kundali/internal/chart"
	"github.com/joelkehle/kundali/internal/dasha"
	"github.com/joelkehle/kundali/internal/render"
)

var (
	reportSrc  chartSource
	reportAt   string
	reportOut  string
	reportHTML string
	reportPDF  string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a chart report as markdown, HTML or PDF",
	Long: `Rebuilds the report for a validated chart. Markdown goes to --output (default
stdout); --html and --pdf additionally write rendered documents. PDF output
needs a local Chromium.

Example:
  kundali report -f chart.json --pdf chart.pdf`,
	RunE: runReport,
}

func init() {
	reportSrc.register(reportCmd)
	reportCmd.Flags().StringVar(&reportAt, "at", "", "instant for the active dasha section (default now)")
	reportCmd.Flags().StringVarP(&reportOut, "output", "o", "-", "where to write the markdown report")
	reportCmd.Flags().StringVar(&reportHTML, "html", "", "also write an HTML document to this path")
	reportCmd.Flags().StringVar(&reportPDF, "pdf", "", "also write a PDF document to this path")
}

func runReport(cmd *cobra.Command, args []string) error {
	at, err := instantOrNow(reportAt)
	if err != nil {
		return err
	}
	out, id, err := reportSrc.load(cmd.Context())
	if err != nil {
		return err
	}
	markdown := chart.BuildReport(out, activeChain(out, dasha.Vimshottari(), at))
	if err := writeOutput(reportOut, []byte(markdown)); err != nil {
		return err
	}
	if reportHTML == "" && reportPDF == "" {
		return nil
	}

	meta := render.Meta{
		ChartID:     id,
		Ascendant:   out.AscendantLabel,
		Language:    string(out.Language),
		GeneratedAt: time.Now(),
		Mismatches:  len(out.Mismatches),
		Repairs:     len(out.FixLog),
	}
	renderer := render.NewChromiumPDFRenderer(cfg.Render.WebDir, cfg.Render.ChromePath)
	if reportHTML != "" {
		doc, err := renderer.HTML(markdown, meta)
		if err != nil {
			return err
		}
		if err := writeOutput(reportHTML, []byte(doc)); err != nil {
			return err
		}
		logger.Info("wrote html report", zap.String("path", reportHTML))
	}
	if reportPDF != "" {
		pdf, err := renderer.Render(cmd.Context(), markdown, meta)
		if err != nil {
			return err
		}
		if err := writeOutput(reportPDF, pdf); err != nil {
			return err
		}
		logger.Info("wrote pdf report", zap.String("path", reportPDF), zap.Int("bytes", len(pdf)))
	}
	return nil
}
