package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/matthewdavidson09/onboard-sync/internal/handler"
	"github.com/matthewdavidson09/onboard-sync/internal/schedule"
	"github.com/matthewdavidson09/onboard-sync/tools"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	addr        string
	noScheduler bool
}

func newServeCommand(opts *RootOptions) *cobra.Command {
	so := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the sync scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, opts, func(a *app) error {
				return serve(ctx, a, so)
			})
		},
	}
	cmd.Flags().StringVar(&so.addr, "addr", "", "listen address (default $HTTP_ADDR or :8080)")
	cmd.Flags().BoolVar(&so.noScheduler, "no-scheduler", false, "serve the API without running scheduled syncs")
	return cmd
}

func serve(ctx context.Context, a *app, so *serveOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	addr := so.addr
	if addr == "" {
		addr = a.cfg.ListenAddr
	}

	r := handler.NewRouter(handler.Deps{
		Sync:        a.engine,
		Provisioner: a.engine,
		Schedule:    a.schedule,
		Directory:   a.directory,
		Audit:       a.store.Audit(),
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	var wg sync.WaitGroup
	if !so.noScheduler {
		scheduler := schedule.NewScheduler(a.schedule, a.engine, a.cfg.SchedulerInterval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Start(ctx)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		tools.Log.WithField("addr", addr).Info("API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var err error
	select {
	case <-ctx.Done():
		tools.Log.Info("Shutting down API server")
	case err = <-serveErr:
		tools.Log.WithError(err).Error("API server failed")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		err = errors.Join(err, shutdownErr)
	}
	wg.Wait()
	tools.Log.Info("API server stopped")
	return err
}
