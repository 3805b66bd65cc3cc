// Package gateway is the uniform data-access interface consumed by the CLI and
// any other caller.
//
// Two implementations exist: Remote, which talks to a backend through the
// resilient request engine, and the fixture-backed *simulator.Simulator. Every
// method returns an envelope for business outcomes and an error for transport,
// protocol and injected failures. New picks one by configured mode.
package gateway

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/trustlens/internal/analytics"
	"github.com/roach88/trustlens/internal/config"
	"github.com/roach88/trustlens/internal/envelope"
	"github.com/roach88/trustlens/internal/fixtures"
	"github.com/roach88/trustlens/internal/model"
	"github.com/roach88/trustlens/internal/simulator"
	"github.com/roach88/trustlens/internal/transport"
)

// API is one method per logical backend endpoint.
type API interface {
	Health(ctx context.Context) (envelope.Envelope[model.HealthStatus], error)
	HealthDB(ctx context.Context) (envelope.Envelope[model.HealthStatus], error)
	Migrations(ctx context.Context) (envelope.Envelope[model.MigrationStatus], error)

	Config(ctx context.Context) (envelope.Envelope[model.RuntimeConfig], error)
	PatchConfig(ctx context.Context, patch model.RuntimeConfig, m model.Mutation) (envelope.Envelope[model.RuntimeConfig], error)
	FeatureFlags(ctx context.Context) (envelope.Envelope[model.FeatureFlags], error)
	PatchFeatureFlags(ctx context.Context, patch model.FeatureFlags, m model.Mutation) (envelope.Envelope[model.FeatureFlags], error)

	IntegrityStatus(ctx context.Context) (envelope.Envelope[model.IntegrityReport], error)
	IntegrityVerify(ctx context.Context) (envelope.Envelope[model.IntegrityReport], error)
	IntegrityRepair(ctx context.Context, m model.Mutation) (envelope.Envelope[model.IntegrityReport], error)

	Participants(ctx context.Context, p model.ListParams) (envelope.Envelope[model.Page[model.Participant]], error)
	FreezeParticipant(ctx context.Context, pid string, m model.Mutation) (envelope.Envelope[model.Participant], error)
	UnfreezeParticipant(ctx context.Context, pid string, m model.Mutation) (envelope.Envelope[model.Participant], error)
	ParticipantMetrics(ctx context.Context, pid string, p model.MetricsParams) (envelope.Envelope[analytics.ParticipantMetrics], error)

	TrustLines(ctx context.Context, p model.ListParams) (envelope.Envelope[model.Page[model.TrustLine]], error)
	AuditLog(ctx context.Context, p model.ListParams) (envelope.Envelope[model.Page[model.AuditLogEntry]], error)
	Incidents(ctx context.Context, p model.ListParams) (envelope.Envelope[model.Page[model.Incident]], error)

	Equivalents(ctx context.Context, p model.ListParams) (envelope.Envelope[model.Page[model.Equivalent]], error)
	CreateEquivalent(ctx context.Context, in model.EquivalentInput, m model.Mutation) (envelope.Envelope[model.Equivalent], error)
	UpdateEquivalent(ctx context.Context, code string, patch model.EquivalentPatch, m model.Mutation) (envelope.Envelope[model.Equivalent], error)
	SetEquivalentActive(ctx context.Context, code string, active bool, m model.Mutation) (envelope.Envelope[model.Equivalent], error)
	EquivalentUsage(ctx context.Context, code string) (envelope.Envelope[model.EquivalentUsage], error)
	DeleteEquivalent(ctx context.Context, code string, m model.Mutation) (envelope.Envelope[model.Equivalent], error)

	AbortTransaction(ctx context.Context, txID string, m model.Mutation) (envelope.Envelope[model.Transaction], error)

	GraphSnapshot(ctx context.Context, p model.SnapshotParams) (envelope.Envelope[model.GraphSnapshot], error)
	GraphEgo(ctx context.Context, p model.EgoParams) (envelope.Envelope[model.GraphSnapshot], error)
	ClearingCycles(ctx context.Context, p model.SnapshotParams) (envelope.Envelope[model.ClearingCycles], error)
}

var (
	_ API = (*Remote)(nil)
	_ API = (*simulator.Simulator)(nil)
)

// Deps carries process-level collaborators shared by both implementations.
type Deps struct {
	Logger   *slog.Logger
	Notifier transport.Notifier

	// Registerer receives the request engine counters. Nil skips registration.
	Registerer prometheus.Registerer

	// HTTPClient overrides the default client in real mode.
	HTTPClient transport.Doer
}

// New builds the API selected by cfg.Mode. The returned close function
// releases the simulator's resources and is a no-op in real mode.
func New(cfg *config.Config, deps Deps) (API, func() error, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Mode == config.ModeReal {
		opts := []transport.Option{
			transport.WithTimeout(cfg.Timeout),
			transport.WithRetry(cfg.Backoff()),
			transport.WithCredentials(transport.StaticCredentials(cfg.AdminToken)),
			transport.WithProductionLike(cfg.Production),
			transport.WithMetrics(transport.NewMetrics(deps.Registerer)),
			transport.WithLogger(logger),
		}
		if deps.Notifier != nil {
			opts = append(opts, transport.WithNotifier(deps.Notifier))
		}
		if deps.HTTPClient != nil {
			opts = append(opts, transport.WithHTTPClient(deps.HTTPClient))
		}
		logger.Debug("using remote backend", "base_url", cfg.BaseURL)
		return NewRemote(transport.New(cfg.BaseURL, opts...)), func() error { return nil }, nil
	}

	sim, err := NewSimulator(cfg, deps)
	if err != nil {
		return nil, nil, err
	}
	return sim, sim.Close, nil
}

// NewSimulator builds the fixture-backed simulator from cfg.
func NewSimulator(cfg *config.Config, deps Deps) (*simulator.Simulator, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fsys, err := Fixtures(cfg.FixturesRoot)
	if err != nil {
		return nil, err
	}
	opts := []simulator.Option{
		simulator.WithScenario(cfg.Scenario),
		simulator.WithBackoff(cfg.Backoff()),
		simulator.WithLogger(logger),
	}
	if deps.Notifier != nil {
		opts = append(opts, simulator.WithNotifier(deps.Notifier))
	}
	logger.Debug("using simulator", "fixtures", fixturesLabel(cfg.FixturesRoot), "scenario", cfg.Scenario)
	return simulator.New(fsys, opts...)
}

// Fixtures returns the fixture tree rooted at dir, or the embedded fixtures
// when dir is empty.
func Fixtures(dir string) (fs.FS, error) {
	if dir == "" {
		return fixtures.FS, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("fixtures root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fixtures root %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

func fixturesLabel(dir string) string {
	if dir == "" {
		return "embedded"
	}
	return dir
}
