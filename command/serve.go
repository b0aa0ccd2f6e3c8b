package command

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type serveOptions struct {
	port      string
	noMigrate bool
	noSweeper bool
}

func NewServeCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the expiration sweeper",
		Args:  cobra.NoArgs,
		Example: `  salvage-market serve
  salvage-market serve --port 9090 --no-sweeper`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.port, "port", "", "Listen port (default: $PORT)")
	cmd.Flags().BoolVar(&opts.noMigrate, "no-migrate", false, "Skip schema migration on start")
	cmd.Flags().BoolVar(&opts.noSweeper, "no-sweeper", false, "Do not run the expiration sweeper in this process")

	return cmd
}

func serve(ctx context.Context, opts serveOptions) error {
	app, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	return run(ctx, app, opts)
}

// run serves HTTP and sweeps until ctx is done or the listener fails.
// It returns only after the sweeper has stopped, so the caller may
// close the store.
func run(ctx context.Context, app *App, opts serveOptions) error {
	if !opts.noMigrate {
		if err := app.Migrate(ctx); err != nil {
			return err
		}
	}

	port := app.Config.Port
	if opts.port != "" {
		port = opts.port
	}
	srv := &http.Server{
		Addr:              net.JoinHostPort("", port),
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	defer func() {
		stopSweep()
		<-sweepDone
	}()
	if opts.noSweeper {
		close(sweepDone)
	} else {
		go func() {
			defer close(sweepDone)
			if err := app.Sweeper.Run(sweepCtx); err != nil {
				app.Logger.Error("sweeper exited", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("server starting", "port", port, "driver", app.Config.DBDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		app.Logger.Info("server stopped")
	}
	return nil
}
