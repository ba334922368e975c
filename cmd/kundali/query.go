package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/kundali/internal/chart"
	"github.com/joelkehle/kundali/internal/dasha"
)

var (
	chainSrc    chartSource
	upcomingSrc chartSource
	periodsSrc  chartSource

	querySystem string
	chainAt     string
	upcomingAt  string
	upcomingMax int
	periodsFrom string
	periodsTo   string
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print the active dasha chain at an instant",
	Long: `Prints the Maha, Antar, Pratyantar, Sookshma and Pran periods active at --at
(default now). Instants before the first or after the last Maha period yield
an empty chain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := instantOrNow(chainAt)
		if err != nil {
			return err
		}
		out, _, err := chainSrc.load(cmd.Context())
		if err != nil {
			return err
		}
		sys, err := querySystemByName()
		if err != nil {
			return err
		}
		chain := activeChain(out, sys, at)
		if chain == nil {
			chain = dasha.Chain{}
		}
		return writeJSON("-", chain)
	},
}

var upcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List the next period changes after an instant",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := loadHierarchy(cmd.Context(), &upcomingSrc)
		if err != nil {
			return err
		}
		from, err := instantOrNow(upcomingAt)
		if err != nil {
			return err
		}
		return writeJSON("-", nonNil(dasha.UpcomingChanges(h, from, upcomingMax)))
	},
}

var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "List every period overlapping [start, end)",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := dasha.ParseInstant(periodsFrom)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		end, err := dasha.ParseInstant(periodsTo)
		if err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		h, err := loadHierarchy(cmd.Context(), &periodsSrc)
		if err != nil {
			return err
		}
		return writeJSON("-", nonNil(dasha.PeriodsInRange(h, start, end)))
	},
}

func init() {
	for _, c := range []struct {
		cmd *cobra.Command
		src *chartSource
	}{{chainCmd, &chainSrc}, {upcomingCmd, &upcomingSrc}, {periodsCmd, &periodsSrc}} {
		c.src.register(c.cmd)
		c.cmd.Flags().StringVar(&querySystem, "system", dasha.SystemVimshottari, "dasha system: vimshottari or yogini")
	}
	chainCmd.Flags().StringVar(&chainAt, "at", "", "ISO instant to query (default now)")
	upcomingCmd.Flags().StringVar(&upcomingAt, "from", "", "ISO instant to search after (default now)")
	upcomingCmd.Flags().IntVarP(&upcomingMax, "limit", "n", 10, "maximum number of changes (0 for all)")
	periodsCmd.Flags().StringVar(&periodsFrom, "start", "", "range start, inclusive")
	periodsCmd.Flags().StringVar(&periodsTo, "end", "", "range end, exclusive")
	_ = periodsCmd.MarkFlagRequired("start")
	_ = periodsCmd.MarkFlagRequired("end")
}

func loadHierarchy(ctx context.Context, src *chartSource) (*dasha.Hierarchy, error) {
	out, _, err := src.load(ctx)
	if err != nil {
		return nil, err
	}
	sys, err := querySystemByName()
	if err != nil {
		return nil, err
	}
	h, err := chart.Hierarchy(out, cfg.Engine.Expander(sys))
	if err != nil {
		logger.Warn("supplied dasha tree failed check", zap.Error(err))
	}
	logger.Debug("hierarchy ready", zap.String("system", h.System()), zap.Int("nodes", h.Len()))
	return h, nil
}

func querySystemByName() (dasha.System, error) {
	sys, ok := dasha.SystemByName(querySystem)
	if !ok {
		return dasha.System{}, fmt.Errorf("unknown dasha system %q", querySystem)
	}
	return sys, nil
}

// activeChain expands only the path to at when the chart holds Maha periods
// alone.
func activeChain(out chart.Output, sys dasha.System, at time.Time) dasha.Chain {
	chain, err := chart.ActiveChain(out, cfg.Engine.Expander(sys), at)
	if err != nil {
		logger.Warn("supplied dasha tree failed check", zap.String("system", sys.Name()), zap.Error(err))
	}
	return chain
}

func instantOrNow(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	return dasha.ParseInstant(s)
}

func nonNil(blocks []dasha.Block) []dasha.Block {
	if blocks == nil {
		return []dasha.Block{}
	}
	return blocks
}
