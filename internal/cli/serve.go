package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ytget/yt-fetcher/internal/api"
)

const readHeaderTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the download API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeHistory(store, a.logger)

	coord := a.newCoordinator(store)

	var lister api.HistoryLister
	if store != nil {
		lister = store
	}
	handler := api.NewDownloadHandler(coord, a.cfg.Request, lister, a.logger)

	server := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server starting", "address", server.Addr, "version", a.version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		serverErr := server.Shutdown(shutdownCtx)
		coordErr := coord.Shutdown(shutdownCtx)
		if err := errors.Join(serverErr, coordErr); err != nil {
			a.logger.Error("shutdown failed", "error", err)
			return err
		}
		a.logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}

