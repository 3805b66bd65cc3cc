package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/trustlens/internal/config"
	"github.com/roach88/trustlens/internal/gateway"
	"github.com/roach88/trustlens/internal/transport"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	viper  *viper.Viper
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the trustlens CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{viper: config.NewViper(), logger: slog.Default()}

	cmd := &cobra.Command{
		Use:   "trustlens",
		Short: "TrustLens - credit network admin data access",
		Long: `Inspect a mutual-credit network through its admin API, or through the
built-in simulator backed by fixture datasets.

Set mode to "real" and base_url to talk to a backend; the default mock
mode answers from fixtures under the selected scenario.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				msg := fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
				cmd.PrintErrln("Error:", msg)
				return NewExitError(ExitCommandError, msg)
			}
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigPath, "config", "", "config file (default ./trustlens.yaml when present)")
	pf.String("mode", "", "data source: real or mock (overrides config)")
	pf.String("scenario", "", "simulator scenario (mock mode)")
	pf.String("base-url", "", "backend origin (real mode)")
	pf.String("fixtures", "", "fixture directory (default: embedded fixtures)")
	for key, name := range map[string]string{
		config.KeyModeOverride: "mode",
		config.KeyScenario:     "scenario",
		config.KeyBaseURL:      "base-url",
		config.KeyFixturesRoot: "fixtures",
	} {
		// Bound flags take precedence over env and the config file once set.
		_ = opts.viper.BindPFlag(key, pf.Lookup(name))
	}

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewEgoCommand(opts))
	cmd.AddCommand(NewMetricsCommand(opts))
	cmd.AddCommand(NewParticipantsCommand(opts))
	cmd.AddCommand(NewCyclesCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// config loads and validates the layered configuration.
func (o *RootOptions) loadConfig(f *OutputFormatter) (*config.Config, error) {
	cfg, err := config.Load(o.viper, o.ConfigPath)
	if err != nil {
		if ferr := f.Error(ErrCodeConfig, err.Error(), nil); ferr != nil {
			return nil, ferr
		}
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	f.VerboseLog("mode=%s scenario=%s", cfg.Mode, cfg.Scenario)
	return cfg, nil
}

// deps are the process collaborators handed to the gateway.
func (o *RootOptions) deps() gateway.Deps {
	return gateway.Deps{
		Logger:   o.logger,
		Notifier: transport.LogNotifier{Logger: o.logger},
	}
}

// openAPI resolves the configuration and opens the selected data source.
func (o *RootOptions) openAPI(f *OutputFormatter) (gateway.API, *config.Config, func() error, error) {
	cfg, err := o.loadConfig(f)
	if err != nil {
		return nil, nil, nil, err
	}
	api, closeFn, err := gateway.New(cfg, o.deps())
	if err != nil {
		return nil, nil, nil, f.Raised(err)
	}
	return api, cfg, closeFn, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
