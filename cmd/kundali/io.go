package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joelkehle/kundali/internal/chart"
	"github.com/joelkehle/kundali/internal/store"
)

// chartSource is shared by the commands that query an existing chart: either
// a saved output file or an archived chart id.
type chartSource struct {
	path string
	id   string
}

func (s *chartSource) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.path, "chart", "f", "", "validated chart output JSON (\"-\" for stdin)")
	cmd.Flags().StringVar(&s.id, "id", "", "id of an archived chart")
	cmd.MarkFlagsMutuallyExclusive("chart", "id")
	cmd.MarkFlagsOneRequired("chart", "id")
}

func (s *chartSource) readsStdin() bool {
	return s.id == "" && (s.path == "" || s.path == "-")
}

func (s *chartSource) load(ctx context.Context) (chart.Output, string, error) {
	if s.id != "" {
		st, err := openStore()
		if err != nil {
			return chart.Output{}, "", err
		}
		defer st.Close()
		rec, err := st.Get(ctx, s.id)
		if err != nil {
			return chart.Output{}, "", fmt.Errorf("load chart %s: %w", s.id, err)
		}
		return rec.Output, rec.ID, nil
	}
	blob, err := readInput(s.path)
	if err != nil {
		return chart.Output{}, "", err
	}
	out, err := chart.DecodeOutput(blob)
	return out, "", err
}

func openStore() (store.Store, error) {
	st, err := store.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	return st, nil
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return blob, nil
}

func writeOutput(path string, blob []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(blob)
		return err
	}
	return os.WriteFile(path, blob, 0o644)
}

func writeJSON(path string, v any) error {
	blob, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(path, append(blob, '\n'))
}
