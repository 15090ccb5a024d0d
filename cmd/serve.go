package cmd

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

	"github.com/abhisek/dentai/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tutor over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = ":" + rt.cfg.Port
		}

		h := api.NewHandler(rt.agent, rt.metrics.Handler(), rt.logger.Named("http"))
		srv := &http.Server{
			Addr:         addr,
			Handler:      h.Router(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			rt.logger.Info("starting server", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		rt.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default :$PORT)")
}
