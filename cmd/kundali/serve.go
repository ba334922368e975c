package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/kundali/internal/chart"
	"github.com/joelkehle/kundali/internal/httpapi"
	"github.com/joelkehle/kundali/internal/render"
	"github.com/joelkehle/kundali/internal/telemetry"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chart API over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr and PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flush traces", zap.Error(err))
		}
	}()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	readTimeout, writeTimeout := cfg.Server.Timeouts()
	srv := &http.Server{
		Addr: addr,
		Handler: httpapi.NewServer(httpapi.Options{
			Store:    st,
			Pipeline: chart.NewPipeline(cfg.Engine.Language),
			Engine:   cfg.Engine,
			Logger:   logger,
			PDF:      render.NewChromiumPDFRenderer(cfg.Render.WebDir, cfg.Render.ChromePath),
		}),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("kundali listening",
			zap.String("addr", addr),
			zap.String("store", cfg.Store.Backend),
			zap.String("telemetry_endpoint", cfg.Telemetry.Endpoint))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
