package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/trustlens/internal/config"
	"github.com/roach88/trustlens/internal/gateway"
	"github.com/roach88/trustlens/internal/simserver"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulator over HTTP",
		Long: `Serve the fixture-backed simulator under /api/v1 using the backend's
wire envelope, so that a real-mode client can run against fixtures.

A scenario query parameter selects the scenario for one request; the
control endpoints under /api/v1/_simulator reset state and switch the
process-wide scenario. Prometheus metrics are served on /metrics.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts, cmd)
		},
	}

	cmd.Flags().String("listen", "", "listen address (default from config, 127.0.0.1:8787)")
	_ = rootOpts.viper.BindPFlag(config.KeyListen, cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig(formatter)
	if err != nil {
		return err
	}

	sim, err := gateway.NewSimulator(cfg, opts.deps())
	if err != nil {
		return formatter.Raised(err)
	}
	defer sim.Close()

	srv := simserver.New(sim,
		simserver.WithLogger(opts.logger),
		simserver.WithRegistry(prometheus.NewRegistry()),
	)
	if err := srv.Run(ctx, cfg.Listen); err != nil {
		if ferr := formatter.Error(ErrCodeUsage, err.Error(), map[string]string{"listen": cfg.Listen}); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitCommandError, "serve", err)
	}
	return nil
}
