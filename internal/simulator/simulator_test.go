package simulator

import (
	"context"
	"io/fs"
	"slices"
	"testing"
	"testing/fstest"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trustlens/internal/envelope"
	"github.com/roach88/trustlens/internal/fixtures"
	"github.com/roach88/trustlens/internal/model"
	"github.com/roach88/trustlens/internal/sched"
	"github.com/roach88/trustlens/internal/testutil"
)

func newTestSimulator(t *testing.T, fsys fs.FS, opts ...Option) (*Simulator, *testutil.VirtualScheduler) {
	t.Helper()
	vs := testutil.NewVirtualScheduler()
	base := []Option{
		WithScheduler(vs),
		WithJitter(sched.NewRand(7)),
		WithBackoff(sched.Backoff{Attempts: 1}),
		WithIDGenerator(testutil.NewFixedIDGenerator("audit")),
	}
	sim, err := New(fsys, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { sim.Close() })
	return sim, vs
}

// minimalFS holds only the required datasets and no scenarios.
func minimalFS() fstest.MapFS {
	return fstest.MapFS{
		"datasets/participants.json": {Data: []byte(`[
			{"pid": "a", "displayName": "A", "type": "person", "status": "active"},
			{"pid": "b", "displayName": "B", "type": "person", "status": "active"}
		]`)},
		"datasets/equivalents.json": {Data: []byte(`{"items": [{"code": "UAH", "precision": 2, "isActive": true}]}`)},
		"datasets/trustlines.json":  {Data: []byte(`{"items": []}`)},
		"datasets/incidents.json":   {Data: []byte(`[]`)},
	}
}

var (
	admin    = model.Mutation{Actor: "root@ops", Role: model.RoleAdmin, Reason: "maintenance", RequestID: "req-1"}
	operator = model.Mutation{Actor: "op@ops", Role: model.RoleOperator, Reason: "ticket 42"}
	auditor  = model.Mutation{Actor: "audit@ops", Role: model.RoleAuditor, Reason: "review"}
)

func pids(ps []model.Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.PID
	}
	return out
}

func TestSimulator_EmbeddedFixturesLoad(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS)
	ctx := context.Background()

	parts, err := sim.Participants(ctx, model.ListParams{})
	require.NoError(t, err)
	require.True(t, parts.Success)
	assert.Equal(t, 5, parts.Data.Total)

	lines, err := sim.TrustLines(ctx, model.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 6, lines.Data.Total)
	assert.Equal(t, model.Amount("150.5"), lines.Data.Items[2].Used)

	audit, err := sim.AuditLog(ctx, model.ListParams{})
	require.NoError(t, err)
	require.Len(t, audit.Data.Items, 1)
	assert.Equal(t, "seed-1", audit.Data.Items[0].ID)
}

func TestSimulator_HealthAndMigrations(t *testing.T) {
	sim, _ := newTestSimulator(t, minimalFS())
	ctx := context.Background()

	h, err := sim.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.HealthStatus{Status: "ok", Version: Version}, h.Data)

	db, err := sim.HealthDB(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", db.Data.Checks["auditlog"])

	m, err := sim.Migrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, "head", m.Data.CurrentRevision)
	assert.Empty(t, m.Data.Pending)
}

func TestSimulator_EmptyOverrideSkipsDatasets(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS, WithScenario("empty"))

	res, err := sim.Participants(context.Background(), model.ListParams{Page: 2, PerPage: 5})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, model.Page[model.Participant]{Items: []model.Participant{}, Total: 0, Page: 2, PerPage: 5}, res.Data)
	assert.Zero(t, sim.Datasets().Loads())

	snap, err := sim.GraphSnapshot(context.Background(), model.SnapshotParams{})
	require.NoError(t, err)
	assert.Empty(t, snap.Data.Participants)
	assert.NotNil(t, snap.Data.Participants)
	assert.Zero(t, sim.Datasets().Loads())

	// Endpoints without an override still see the data.
	eqs, err := sim.Equivalents(context.Background(), model.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 3, eqs.Data.Total)
}

func TestSimulator_ErrorOverride(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS, WithScenario("admin-outage"))
	ctx := context.Background()

	_, err := sim.Participants(ctx, model.ListParams{})
	require.Error(t, err)
	e, ok := envelope.As(err)
	require.True(t, ok)
	assert.Equal(t, 500, e.Status)
	assert.Equal(t, "INTERNAL_ERROR", e.Code)
	assert.Equal(t, "participants query failed", e.Message)
	assert.Equal(t, map[string]any{"retryAfterSeconds": 30}, e.Details)

	_, err = sim.TrustLines(ctx, model.ListParams{})
	assert.True(t, envelope.IsCode(err, "SERVICE_UNAVAILABLE"))
	assert.Equal(t, 503, envelope.StatusOf(err))

	h, err := sim.Health(ctx)
	require.NoError(t, err)
	assert.True(t, h.Success)
	assert.Zero(t, sim.Datasets().Loads())
}

func TestSimulator_LatencyWithinRange(t *testing.T) {
	sim, vs := newTestSimulator(t, fixtures.FS)

	for range 20 {
		_, err := sim.Health(context.Background())
		require.NoError(t, err)
	}
	sleeps := vs.Sleeps()
	require.Len(t, sleeps, 20)
	for _, d := range sleeps {
		assert.GreaterOrEqual(t, d, 20*time.Millisecond)
		assert.LessOrEqual(t, d, 120*time.Millisecond)
	}
}

func TestSimulator_LatencyCancelled(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS, WithScenario("slow"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Health(ctx)
	assert.True(t, envelope.IsCode(err, envelope.CodeTimeout))
}

func TestSimulator_NoScenarioFilesMeansNoLatency(t *testing.T) {
	sim, vs := newTestSimulator(t, minimalFS())

	_, err := sim.Participants(context.Background(), model.ListParams{})
	require.NoError(t, err)
	assert.Empty(t, vs.Sleeps())
	assert.Equal(t, DefaultScenario, sim.Scenario())
}

func TestSimulator_ScenarioSelection(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS)
	ctx := context.Background()

	res, err := sim.Participants(ContextWithScenario(ctx, "empty"), model.ListParams{})
	require.NoError(t, err)
	assert.Zero(t, res.Data.Total)

	_, err = sim.Participants(ContextWithScenario(ctx, "nope"), model.ListParams{})
	assert.True(t, envelope.IsCode(err, CodeUnknownScenario))
	assert.Equal(t, 400, envelope.StatusOf(err))

	require.NoError(t, sim.SetScenario("empty"))
	assert.Equal(t, "empty", sim.Scenario())
	res, err = sim.Participants(ContextWithScenario(ctx, "happy"), model.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Data.Total, "request scenario wins over the process-wide one")

	assert.Error(t, sim.SetScenario("nope"))
	assert.Equal(t, "empty", sim.Scenario())

	require.NoError(t, sim.SetScenario(""))
	assert.Equal(t, DefaultScenario, sim.Scenario())
}

func TestNew_UnknownScenario(t *testing.T) {
	_, err := New(fixtures.FS, WithScenario("nope"))
	assert.True(t, envelope.IsCode(err, CodeUnknownScenario))
}

func TestSimulator_ParticipantSearchAndFilters(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS)
	ctx := context.Background()

	tests := []struct {
		name   string
		params model.ListParams
		want   []string
		total  int
	}{
		{"folded search", model.ListParams{Q: "ÉVELYNE"}, []string{"eve"}, 1},
		{"search by type", model.ListParams{Q: "person"}, []string{"carol", "dmytro"}, 2},
		{"display status", model.ListParams{Filters: map[string]string{"status": "frozen"}}, []string{"dmytro"}, 1},
		{"backend status", model.ListParams{Filters: map[string]string{"status": "Suspended"}}, []string{"dmytro"}, 1},
		{"unknown filter ignored", model.ListParams{Filters: map[string]string{"color": "red"}}, []string{"alice", "bob", "carol", "dmytro", "eve"}, 5},
		{"last page", model.ListParams{Page: 3, PerPage: 2}, []string{"eve"}, 5},
		{"past the end", model.ListParams{Page: 9, PerPage: 2}, []string{}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := sim.Participants(ctx, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pids(res.Data.Items))
			assert.Equal(t, tt.total, res.Data.Total)
		})
	}
}

func TestSimulator_TrustLineAndIncidentFilters(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS)
	ctx := context.Background()

	lines, err := sim.TrustLines(ctx, model.ListParams{Filters: map[string]string{"equivalent": "hour"}})
	require.NoError(t, err)
	assert.Equal(t, 2, lines.Data.Total)

	incs, err := sim.Incidents(ctx, model.ListParams{Filters: map[string]string{"initiatorPid": "bob"}})
	require.NoError(t, err)
	require.Equal(t, 1, incs.Data.Total)
	assert.Equal(t, "tx-1004", incs.Data.Items[0].TxID)

	eqs, err := sim.Equivalents(ctx, model.ListParams{Filters: map[string]string{"isActive": "false"}})
	require.NoError(t, err)
	require.Len(t, eqs.Data.Items, 1)
	assert.Equal(t, "EUR", eqs.Data.Items[0].Code)
}

func TestPaginate_CoversEveryItemOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("pages concatenate to the input", prop.ForAll(
		func(items []int, perPage int) bool {
			var joined []int
			pages := (len(items) + perPage - 1) / perPage
			for page := 1; page <= pages; page++ {
				chunk := Paginate(items, page, perPage)
				if len(chunk) == 0 || len(chunk) > perPage {
					return false
				}
				joined = append(joined, chunk...)
			}
			if len(Paginate(items, pages+1, perPage)) != 0 {
				return false
			}
			return slices.Equal(joined, items)
		},
		gen.SliceOf(gen.Int()),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}

func TestSimulator_FreezeParticipant(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS)
	ctx := context.Background()

	t.Run("missing reason", func(t *testing.T) {
		m := admin
		m.Reason = "   "
		res, err := sim.FreezeParticipant(ctx, "alice", m)
		require.NoError(t, err)
		require.False(t, res.Success)
		assert.Equal(t, envelope.CodeValidation, res.Error.Code)
		assert.Equal(t, map[string]any{"fields": map[string]string{"reason": "required"}}, res.Error.Details)
	})

	t.Run("auditor forbidden", func(t *testing.T) {
		res, err := sim.FreezeParticipant(ctx, "alice", auditor)
		require.NoError(t, err)
		assert.Equal(t, envelope.CodeForbidden, res.Error.Code)
	})

	t.Run("unknown participant", func(t *testing.T) {
		res, err := sim.FreezeParticipant(ctx, "zed", admin)
		require.NoError(t, err)
		assert.Equal(t, envelope.CodeNotFound, res.Error.Code)
	})

	audit, err := sim.AuditLog(ctx, model.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, audit.Data.Total, "rejected mutations are not audited")

	res, err := sim.FreezeParticipant(ctx, "alice", operator)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, model.StatusSuspended, res.Data.Status)

	again, err := sim.FreezeParticipant(ctx, "alice", operator)
	require.NoError(t, err)
	assert.Equal(t, envelope.CodeConflict, again.Error.Code)

	audit, err = sim.AuditLog(ctx, model.ListParams{})
	require.NoError(t, err)
	require.Equal(t, 2, audit.Data.Total)
	entry := audit.Data.Items[0]
	assert.Equal(t, "audit-1", entry.ID)
	assert.Equal(t, ActionParticipantFreeze, entry.Action)
	assert.Equal(t, "alice", entry.ObjectID)
	assert.Equal(t, "ticket 42", entry.Reason)
	assert.Equal(t, map[string]any{"status": "active"}, pick(entry.BeforeState, "status"))
	assert.Equal(t, map[string]any{"status": "suspended"}, pick(entry.AfterState, "status"))

	byObject, err := sim.AuditLog(ctx, model.ListParams{Filters: map[string]string{"objectId": "dmytro"}})
	require.NoError(t, err)
	assert.Equal(t, 1, byObject.Data.Total)

	frozen, err := sim.Participants(ctx, model.ListParams{Filters: map[string]string{"status": "frozen"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "dmytro"}, pids(frozen.Data.Items))

	un, err := sim.UnfreezeParticipant(ctx, "dmytro", admin)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, un.Data.Status)
}

// pick keeps only key from a decoded JSON object.
func pick(v any, key string) map[string]any {
	m, _ := v.(map[string]any)
	return map[string]any{key: m[key]}
}

func TestSimulator_Equivalents(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS)
	ctx := context.Background()

	usage, err := sim.EquivalentUsage(ctx, "UAH")
	require.NoError(t, err)
	assert.Equal(t, model.EquivalentUsage{Code: "UAH", TrustLines: 4, Debts: 3, Transactions: 3, Incidents: 1}, usage.Data)

	created, err := sim.CreateEquivalent(ctx, model.EquivalentInput{Code: " XAU ", Precision: 3, Description: "Gold"}, admin)
	require.NoError(t, err)
	require.True(t, created.Success)
	assert.Equal(t, model.Equivalent{Code: "XAU", Precision: 3, Description: "Gold", IsActive: true}, created.Data)

	dup, err := sim.CreateEquivalent(ctx, model.EquivalentInput{Code: "uah"}, admin)
	require.NoError(t, err)
	assert.Equal(t, envelope.CodeConflict, dup.Error.Code)

	bad, err := sim.CreateEquivalent(ctx, model.EquivalentInput{Code: "no spaces", Precision: 40}, admin)
	require.NoError(t, err)
	assert.Equal(t, envelope.CodeValidation, bad.Error.Code)

	byOperator, err := sim.CreateEquivalent(ctx, model.EquivalentInput{Code: "GBP"}, operator)
	require.NoError(t, err)
	assert.Equal(t, envelope.CodeForbidden, byOperator.Error.Code)

	four := 4
	locked, err := sim.UpdateEquivalent(ctx, "UAH", model.EquivalentPatch{Precision: &four}, admin)
	require.NoError(t, err)
	assert.Equal(t, envelope.CodeConflict, locked.Error.Code)

	desc := "Euro (dormant)"
	updated, err := sim.UpdateEquivalent(ctx, "EUR", model.EquivalentPatch{Precision: &four, Description: &desc}, admin)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Data.Precision)
	assert.Equal(t, desc, updated.Data.Description)

	noop, err := sim.UpdateEquivalent(ctx, "EUR", model.EquivalentPatch{}, admin)
	require.NoError(t, err)
	assert.Equal(t, envelope.CodeValidation, noop.Error.Code)

	active, err := sim.SetEquivalentActive(ctx, "EUR", true, admin)
	require.NoError(t, err)
	assert.True(t, active.Data.IsActive)

	inUse, err := sim.DeleteEquivalent(ctx, "UAH", admin)
	require.NoError(t, err)
	assert.Equal(t, envelope.CodeConflict, inUse.Error.Code)

	deleted, err := sim.DeleteEquivalent(ctx, "EUR", admin)
	require.NoError(t, err)
	assert.Equal(t, "EUR", deleted.Data.Code)

	gone, err := sim.EquivalentUsage(ctx, "EUR")
	require.NoError(t, err)
	assert.Equal(t, envelope.CodeNotFound, gone.Error.Code)

	audit, err := sim.AuditLog(ctx, model.ListParams{Filters: map[string]string{"objectType": "equivalent"}})
	require.NoError(t, err)
	var actions []string
	for _, e := range audit.Data.Items {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{ActionEquivalentDelete, ActionEquivalentActivate, ActionEquivalentUpdate, ActionEquivalentCreate}, actions)
}

func TestSimulator_AbortTransaction(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS)
	ctx := context.Background()

	res, err := sim.AbortTransaction(ctx, "tx-1004", operator)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "ABORTED", res.Data.State)
	assert.NotEmpty(t, res.Data.UpdatedAt)

	incs, err := sim.Incidents(ctx, model.ListParams{})
	require.NoError(t, err)
	assert.Zero(t, incs.Data.Total)

	done, err := sim.AbortTransaction(ctx, "tx-1001", operator)
	require.NoError(t, err)
	assert.Equal(t, envelope.CodeConflict, done.Error.Code)

	missing, err := sim.AbortTransaction(ctx, "tx-9999", operator)
	require.NoError(t, err)
	assert.Equal(t, envelope.CodeNotFound, missing.Error.Code)
}

func TestSimulator_PatchFeatureFlagsAndConfig(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS)
	ctx := context.Background()

	res, err := sim.PatchFeatureFlags(ctx, model.FeatureFlags{"full_multipath": true}, admin)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, model.FeatureFlags{"clearing": true, "multipath_payments": false, "full_multipath": true}, res.Data)

	flags, err := sim.FeatureFlags(ctx)
	require.NoError(t, err)
	assert.True(t, flags.Data["full_multipath"])

	empty, err := sim.PatchFeatureFlags(ctx, model.FeatureFlags{}, admin)
	require.NoError(t, err)
	assert.Equal(t, envelope.CodeValidation, empty.Error.Code)

	forbidden, err := sim.PatchFeatureFlags(ctx, model.FeatureFlags{"clearing": false}, operator)
	require.NoError(t, err)
	assert.Equal(t, envelope.CodeForbidden, forbidden.Error.Code)

	cfg, err := sim.PatchConfig(ctx, model.RuntimeConfig{"clearing.enabled": false}, admin)
	require.NoError(t, err)
	assert.Equal(t, false, cfg.Data["clearing.enabled"])
	assert.Equal(t, float64(6), cfg.Data["payments.max_hops"])

	// Mutating the returned map must not leak into the simulator.
	cfg.Data["payments.max_hops"] = 99
	again, err := sim.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(6), again.Data["payments.max_hops"])
}

func TestSimulator_IntegrityOnFixtures(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS)
	ctx := context.Background()

	res, err := sim.IntegrityVerify(ctx)
	require.NoError(t, err)
	assert.Equal(t, IntegrityOK, res.Data.Status)

	var codes []string
	totals := map[string]model.Amount{}
	for _, c := range res.Data.Equivalents {
		codes = append(codes, c.Equivalent)
		totals[c.Equivalent] = c.DebtTotal
		assert.Len(t, c.Checksum, 64)
	}
	assert.Equal(t, []string{"EUR", "HOUR", "UAH"}, codes)
	assert.Equal(t, map[string]model.Amount{"EUR": "0.00", "HOUR": "12", "UAH": "930.50"}, totals)

	cached, err := sim.IntegrityStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Data, cached.Data)
}

func TestSimulator_IntegrityRepair(t *testing.T) {
	fsys := minimalFS()
	fsys["datasets/debts.json"] = &fstest.MapFile{Data: []byte(`[
		{"equivalent": "UAH", "debtor": "a", "creditor": "b", "amount": "10.00"},
		{"equivalent": "UAH", "debtor": "a", "creditor": "zed", "amount": "5.00"},
		{"equivalent": "UAH", "debtor": "b", "creditor": "b", "amount": "1.00"}
	]`)}
	sim, _ := newTestSimulator(t, fsys)
	ctx := context.Background()

	status, err := sim.IntegrityStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, IntegrityIssues, status.Data.Status)
	require.Len(t, status.Data.Equivalents, 1)
	assert.Len(t, status.Data.Equivalents[0].Issues, 2)

	denied, err := sim.IntegrityRepair(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, envelope.CodeForbidden, denied.Error.Code)

	repaired, err := sim.IntegrityRepair(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, IntegrityOK, repaired.Data.Status)
	assert.Equal(t, model.Amount("10.00"), repaired.Data.Equivalents[0].DebtTotal)

	audit, err := sim.AuditLog(ctx, model.ListParams{Filters: map[string]string{"action": ActionIntegrityRepair}})
	require.NoError(t, err)
	require.Len(t, audit.Data.Items, 1)
	assert.Equal(t, float64(2), audit.Data.Items[0].AfterState.(map[string]any)["removed"])
}

func TestSimulator_GraphSnapshotAndEgo(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS)
	ctx := context.Background()

	snap, err := sim.GraphSnapshot(ctx, model.SnapshotParams{Equivalent: "HOUR"})
	require.NoError(t, err)
	assert.Len(t, snap.Data.Participants, 5)
	assert.Len(t, snap.Data.TrustLines, 2)
	assert.Len(t, snap.Data.Debts, 1)
	assert.Len(t, snap.Data.AuditLog, 1)

	ego, err := sim.GraphEgo(ctx, model.EgoParams{Root: "alice", Depth: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol", "dmytro"}, pids(ego.Data.Participants))
	assert.Len(t, ego.Data.TrustLines, 4)

	active, err := sim.GraphEgo(ctx, model.EgoParams{Root: "alice", Depth: 1, Statuses: []string{"active"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, pids(active.Data.Participants))
}

func TestSimulator_ClearingCyclesDerivedFromDebts(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS)
	ctx := context.Background()

	all, err := sim.ClearingCycles(ctx, model.SnapshotParams{})
	require.NoError(t, err)
	require.Contains(t, all.Data, "UAH")
	require.Len(t, all.Data["UAH"].Cycles, 1)
	assert.Len(t, all.Data["UAH"].Cycles[0], 3)

	hour, err := sim.ClearingCycles(ctx, model.SnapshotParams{Equivalent: "HOUR"})
	require.NoError(t, err)
	assert.Empty(t, hour.Data)
}

func TestSimulator_ClearingCyclesFixture(t *testing.T) {
	fsys := minimalFS()
	fsys["datasets/clearing-cycles.json"] = &fstest.MapFile{Data: []byte(`{
		"UAH": {"cycles": [[
			{"equivalent": "UAH", "debtor": "a", "creditor": "b", "amount": "1.00"},
			{"equivalent": "UAH", "debtor": "b", "creditor": "a", "amount": "1.00"}
		]]}
	}`)}
	sim, _ := newTestSimulator(t, fsys)

	res, err := sim.ClearingCycles(context.Background(), model.SnapshotParams{Equivalent: "UAH"})
	require.NoError(t, err)
	require.Len(t, res.Data["UAH"].Cycles, 1)
	assert.Len(t, res.Data["UAH"].Cycles[0], 2)
}

func TestSimulator_ParticipantMetrics(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS)
	ctx := context.Background()

	res, err := sim.ParticipantMetrics(ctx, "alice", model.MetricsParams{Equivalent: "UAH"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "alice", res.Data.PID)
	assert.NotEmpty(t, res.Data.Balances)
	assert.NotNil(t, res.Data.Capacity)

	missing, err := sim.ParticipantMetrics(ctx, "zed", model.MetricsParams{})
	require.NoError(t, err)
	assert.Equal(t, envelope.CodeNotFound, missing.Error.Code)

	bad, err := sim.ParticipantMetrics(ctx, "alice", model.MetricsParams{Threshold: "2"})
	require.NoError(t, err)
	assert.Equal(t, envelope.CodeValidation, bad.Error.Code)
}

func TestSimulator_Reset(t *testing.T) {
	sim, _ := newTestSimulator(t, fixtures.FS)
	ctx := context.Background()
	initial := sim.Scenario()

	_, err := sim.FreezeParticipant(ctx, "alice", admin)
	require.NoError(t, err)
	require.NotZero(t, sim.Datasets().Loads())
	require.NoError(t, sim.SetScenario("slow"))

	require.NoError(t, sim.Reset(ctx))
	assert.Zero(t, sim.Datasets().Loads())
	assert.Equal(t, initial, sim.Scenario(), "reset restores the starting scenario")
	assert.NotEqual(t, "slow", initial)

	res, err := sim.Participants(ctx, model.ListParams{Filters: map[string]string{"pid": "alice"}})
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, res.Data.Items[0].Status)

	audit, err := sim.AuditLog(ctx, model.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, audit.Data.Total)
}

func TestSimulator_DatasetFailures(t *testing.T) {
	t.Run("missing required dataset", func(t *testing.T) {
		fsys := minimalFS()
		delete(fsys, "datasets/incidents.json")
		sim, _ := newTestSimulator(t, fsys)

		_, err := sim.Participants(context.Background(), model.ListParams{})
		assert.True(t, envelope.IsCode(err, envelope.CodeInternal))
		assert.Equal(t, 500, envelope.StatusOf(err))
	})

	t.Run("malformed JSON", func(t *testing.T) {
		fsys := minimalFS()
		fsys["datasets/trustlines.json"] = &fstest.MapFile{Data: []byte(`{"items": [`)}
		sim, _ := newTestSimulator(t, fsys)

		_, err := sim.TrustLines(context.Background(), model.ListParams{})
		assert.True(t, envelope.IsCode(err, envelope.CodeInvalidJSON))
	})

	t.Run("object without items", func(t *testing.T) {
		fsys := minimalFS()
		fsys["datasets/incidents.json"] = &fstest.MapFile{Data: []byte(`{"rows": []}`)}
		sim, _ := newTestSimulator(t, fsys)

		_, err := sim.Incidents(context.Background(), model.ListParams{})
		assert.True(t, envelope.IsCode(err, envelope.CodeInvalidJSON))
	})

	t.Run("optional datasets default to empty", func(t *testing.T) {
		sim, _ := newTestSimulator(t, minimalFS())

		flags, err := sim.FeatureFlags(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, flags.Data)
		assert.Empty(t, flags.Data)

		snap, err := sim.GraphSnapshot(context.Background(), model.SnapshotParams{})
		require.NoError(t, err)
		assert.NotNil(t, snap.Data.Debts)
		assert.Equal(t, []string{"a", "b"}, pids(snap.Data.Participants))
	})
}
