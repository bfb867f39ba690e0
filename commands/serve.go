package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slipsync/routes"
	"slipsync/services"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, opts, os.Stdout)
	if err != nil {
		return err
	}
	defer rt.close()

	// a failed connect leaves the gateway degraded; /api requests retry lazily
	if err := rt.gw.Connect(ctx); err != nil {
		rt.logger.Warn("starting without storage", "error", err)
	} else if rt.cfg.DB.AutoMigrate {
		if err := rt.gw.Provision(ctx); err != nil {
			rt.logger.Warn("provisioning failed, continuing", "error", err)
		}
	}

	ids := rt.ids()
	normalizer := services.Normalizer{EngineVersion: rt.cfg.EngineVersion, Now: time.Now}
	app := routes.NewApp(routes.Deps{
		Gateway:        rt.gw,
		Placement:      services.NewPlacementService(rt.store, services.NewMatchResolver(rt.store, rt.teams, rt.logger), normalizer),
		Sync:           rt.syncProcessor(),
		Slips:          services.NewSlipService(rt.store, ids, rt.logger),
		EngineVersion:  rt.cfg.EngineVersion,
		CORSOrigins:    rt.cfg.CORSOrigins,
		RequestTimeout: rt.cfg.RequestTimeout,
	}, true)

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("server running", "addr", rt.cfg.Addr())
		errCh <- app.Listen(rt.cfg.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	rt.logger.Info("gracefully shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return err
	}
	rt.logger.Info("server exited cleanly")
	return nil
}
