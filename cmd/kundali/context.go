package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joelkehle/kundali/internal/contextstack"
	"github.com/joelkehle/kundali/internal/dasha"
)

var (
	contextSrc      chartSource
	contextAt       string
	contextTransits string
	contextAge      contextstack.Age
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Combine age, the active dasha and current transits",
	Long: `Builds the context stack for a chart: the supplied age, a summary of the
Vimshottari chain active at --at, and the transits read from --transits, each
tagged when its planet rules the current Maha or Antar period.`,
	RunE: runContext,
}

func init() {
	contextSrc.register(contextCmd)
	contextCmd.Flags().StringVar(&contextAt, "at", "", "ISO instant to query (default now)")
	contextCmd.Flags().StringVarP(&contextTransits, "transits", "t", "", "JSON array of current transits")
	contextCmd.Flags().IntVar(&contextAge.Years, "age-years", 0, "age in whole years")
	contextCmd.Flags().IntVar(&contextAge.Months, "age-months", 0, "additional months")
	contextCmd.Flags().IntVar(&contextAge.Days, "age-days", 0, "additional days")
}

func runContext(cmd *cobra.Command, args []string) error {
	if contextTransits == "-" && contextSrc.readsStdin() {
		return errors.New("--chart and --transits cannot both read stdin")
	}
	at, err := instantOrNow(contextAt)
	if err != nil {
		return err
	}
	stack, err := contextstack.Gather(cmd.Context(), contextAge,
		func(ctx context.Context) (dasha.Chain, error) {
			out, _, err := contextSrc.load(ctx)
			if err != nil {
				return nil, err
			}
			return activeChain(out, dasha.Vimshottari(), at), nil
		},
		func(context.Context) ([]contextstack.Transit, error) {
			if contextTransits == "" {
				return nil, nil
			}
			blob, err := readInput(contextTransits)
			if err != nil {
				return nil, err
			}
			var transits []contextstack.Transit
			if err := json.Unmarshal(blob, &transits); err != nil {
				return nil, fmt.Errorf("decode transits: %w", err)
			}
			return transits, nil
		})
	if err != nil {
		return err
	}
	return writeJSON("-", stack)
}
