package simulator

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/roach88/trustlens/internal/analytics"
	"github.com/roach88/trustlens/internal/auditlog"
	"github.com/roach88/trustlens/internal/cycles"
	"github.com/roach88/trustlens/internal/egonet"
	"github.com/roach88/trustlens/internal/envelope"
	"github.com/roach88/trustlens/internal/model"
	"github.com/roach88/trustlens/internal/route"
)

// Version is reported by the simulated health endpoint.
const Version = "simulator"

// Health reports the simulator as healthy.
func (s *Simulator) Health(ctx context.Context) (envelope.Envelope[model.HealthStatus], error) {
	if _, err := s.enter(ctx, route.Health); err != nil {
		return envelope.Envelope[model.HealthStatus]{}, err
	}
	return envelope.OK(model.HealthStatus{Status: "ok", Version: Version}), nil
}

// HealthDB reports the state of the audit store.
func (s *Simulator) HealthDB(ctx context.Context) (envelope.Envelope[model.HealthStatus], error) {
	if _, err := s.enter(ctx, route.HealthDB); err != nil {
		return envelope.Envelope[model.HealthStatus]{}, err
	}
	status := model.HealthStatus{Status: "ok", Checks: map[string]string{"auditlog": "ok"}}
	if _, err := s.audit.Count(ctx); err != nil {
		status.Status = "degraded"
		status.Checks["auditlog"] = err.Error()
	}
	return envelope.OK(status), nil
}

// Migrations reports a fully migrated schema.
func (s *Simulator) Migrations(ctx context.Context) (envelope.Envelope[model.MigrationStatus], error) {
	if _, err := s.enter(ctx, route.Migrations); err != nil {
		return envelope.Envelope[model.MigrationStatus]{}, err
	}
	return envelope.OK(model.MigrationStatus{CurrentRevision: "head", HeadRevision: "head", Pending: []string{}}), nil
}

// Config returns the runtime configuration.
func (s *Simulator) Config(ctx context.Context) (envelope.Envelope[model.RuntimeConfig], error) {
	st, err := s.enterLoaded(ctx, route.Config)
	if err != nil {
		return envelope.Envelope[model.RuntimeConfig]{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return envelope.OK(maps.Clone(st.config)), nil
}

// FeatureFlags returns the feature flags.
func (s *Simulator) FeatureFlags(ctx context.Context) (envelope.Envelope[model.FeatureFlags], error) {
	st, err := s.enterLoaded(ctx, route.FeatureFlags)
	if err != nil {
		return envelope.Envelope[model.FeatureFlags]{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return envelope.OK(maps.Clone(st.flags)), nil
}

// IntegrityStatus returns the last verification report, verifying first if
// none exists.
func (s *Simulator) IntegrityStatus(ctx context.Context) (envelope.Envelope[model.IntegrityReport], error) {
	st, err := s.enterLoaded(ctx, route.IntegrityStatus)
	if err != nil {
		return envelope.Envelope[model.IntegrityReport]{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.integrity == nil {
		r := verify(st, s.now())
		st.integrity = &r
	}
	return envelope.OK(*st.integrity), nil
}

// IntegrityVerify recomputes the integrity report.
func (s *Simulator) IntegrityVerify(ctx context.Context) (envelope.Envelope[model.IntegrityReport], error) {
	st, err := s.enterLoaded(ctx, route.IntegrityVerify)
	if err != nil {
		return envelope.Envelope[model.IntegrityReport]{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := verify(st, s.now())
	st.integrity = &r
	return envelope.OK(r), nil
}

// Participants lists participants. The status filter accepts either status
// vocabulary.
func (s *Simulator) Participants(ctx context.Context, p model.ListParams) (envelope.Envelope[model.Page[model.Participant]], error) {
	empty, err := s.enter(ctx, route.Participants)
	if err != nil {
		return envelope.Envelope[model.Page[model.Participant]]{}, err
	}
	if empty {
		return envelope.OK(emptyPage[model.Participant](p)), nil
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return envelope.Envelope[model.Page[model.Participant]]{}, err
	}

	if v, ok := p.Filters["status"]; ok {
		p.Filters = maps.Clone(p.Filters)
		if status := model.ParseStatus(v); status != model.StatusUnknown {
			p.Filters["status"] = status.ToBackend()
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return envelope.OK(list(st.participants, p, participantFields)), nil
}

// TrustLines lists trust lines.
func (s *Simulator) TrustLines(ctx context.Context, p model.ListParams) (envelope.Envelope[model.Page[model.TrustLine]], error) {
	empty, err := s.enter(ctx, route.TrustLines)
	if err != nil {
		return envelope.Envelope[model.Page[model.TrustLine]]{}, err
	}
	if empty {
		return envelope.OK(emptyPage[model.TrustLine](p)), nil
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return envelope.Envelope[model.Page[model.TrustLine]]{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return envelope.OK(list(st.trustlines, p, trustLineFields)), nil
}

// Incidents lists incidents.
func (s *Simulator) Incidents(ctx context.Context, p model.ListParams) (envelope.Envelope[model.Page[model.Incident]], error) {
	empty, err := s.enter(ctx, route.Incidents)
	if err != nil {
		return envelope.Envelope[model.Page[model.Incident]]{}, err
	}
	if empty {
		return envelope.OK(emptyPage[model.Incident](p)), nil
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return envelope.Envelope[model.Page[model.Incident]]{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return envelope.OK(list(st.incidents, p, incidentFields)), nil
}

// Equivalents lists equivalents.
func (s *Simulator) Equivalents(ctx context.Context, p model.ListParams) (envelope.Envelope[model.Page[model.Equivalent]], error) {
	empty, err := s.enter(ctx, route.Equivalents)
	if err != nil {
		return envelope.Envelope[model.Page[model.Equivalent]]{}, err
	}
	if empty {
		return envelope.OK(emptyPage[model.Equivalent](p)), nil
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return envelope.Envelope[model.Page[model.Equivalent]]{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return envelope.OK(list(st.equivalents, p, equivalentFields)), nil
}

// AuditLog lists audit entries newest first. The actor, action, objectType
// and objectId filters are exact.
func (s *Simulator) AuditLog(ctx context.Context, p model.ListParams) (envelope.Envelope[model.Page[model.AuditLogEntry]], error) {
	empty, err := s.enter(ctx, route.AuditLog)
	if err != nil {
		return envelope.Envelope[model.Page[model.AuditLogEntry]]{}, err
	}
	if empty {
		return envelope.OK(emptyPage[model.AuditLogEntry](p)), nil
	}
	if _, err := s.loadState(ctx); err != nil {
		return envelope.Envelope[model.Page[model.AuditLogEntry]]{}, err
	}
	entries, err := s.audit.List(ctx, auditlog.Filter{
		Actor:      p.Filters["actor"],
		Action:     p.Filters["action"],
		ObjectType: p.Filters["objectType"],
		ObjectID:   p.Filters["objectId"],
	})
	if err != nil {
		return envelope.Envelope[model.Page[model.AuditLogEntry]]{}, envelope.Wrap(http.StatusInternalServerError, envelope.CodeInternal, "list audit log", err)
	}
	return envelope.OK(list(entries, p, auditFields)), nil
}

// EquivalentUsage counts the objects referencing an equivalent.
func (s *Simulator) EquivalentUsage(ctx context.Context, code string) (envelope.Envelope[model.EquivalentUsage], error) {
	st, err := s.enterLoaded(ctx, route.EquivalentUsage(code))
	if err != nil {
		return envelope.Envelope[model.EquivalentUsage]{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if findEquivalent(st, code) < 0 {
		return notFound[model.EquivalentUsage]("equivalent", code), nil
	}
	return envelope.OK(usageOf(st, code)), nil
}

// GraphSnapshot returns the aggregate graph, restricted to one equivalent when
// p.Equivalent is set.
func (s *Simulator) GraphSnapshot(ctx context.Context, p model.SnapshotParams) (envelope.Envelope[model.GraphSnapshot], error) {
	empty, err := s.enter(ctx, route.GraphSnapshot)
	if err != nil {
		return envelope.Envelope[model.GraphSnapshot]{}, err
	}
	if empty {
		return envelope.OK(emptySnapshot()), nil
	}
	snap, err := s.snapshot(ctx, p.Equivalent)
	if err != nil {
		return envelope.Envelope[model.GraphSnapshot]{}, err
	}
	return envelope.OK(snap), nil
}

// GraphEgo returns the ego network of p.Root computed over the full snapshot.
func (s *Simulator) GraphEgo(ctx context.Context, p model.EgoParams) (envelope.Envelope[model.GraphSnapshot], error) {
	empty, err := s.enter(ctx, route.GraphEgo)
	if err != nil {
		return envelope.Envelope[model.GraphSnapshot]{}, err
	}
	if empty {
		return envelope.OK(emptySnapshot()), nil
	}
	snap, err := s.snapshot(ctx, "")
	if err != nil {
		return envelope.Envelope[model.GraphSnapshot]{}, err
	}
	return envelope.OK(egonet.Query(snap, egonet.Params{
		Root:       p.Root,
		Depth:      p.Depth,
		Equivalent: p.Equivalent,
		Statuses:   p.Statuses,
	})), nil
}

// ClearingCycles returns the clearing cycles fixture, or cycles found in the
// current debts when there is none.
func (s *Simulator) ClearingCycles(ctx context.Context, p model.SnapshotParams) (envelope.Envelope[model.ClearingCycles], error) {
	empty, err := s.enter(ctx, route.ClearingCycles)
	if err != nil {
		return envelope.Envelope[model.ClearingCycles]{}, err
	}
	if empty {
		return envelope.OK(model.ClearingCycles{}), nil
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return envelope.Envelope[model.ClearingCycles]{}, err
	}

	s.mu.RLock()
	all := st.cycles
	if all == nil {
		all = cycles.Find(st.debts)
	}
	s.mu.RUnlock()

	if p.Equivalent == "" {
		return envelope.OK(maps.Clone(all)), nil
	}
	out := model.ClearingCycles{}
	if set, ok := all[p.Equivalent]; ok {
		out[p.Equivalent] = set
	}
	return envelope.OK(out), nil
}

// ParticipantMetrics computes analytics for pid over the current snapshot.
func (s *Simulator) ParticipantMetrics(ctx context.Context, pid string, p model.MetricsParams) (envelope.Envelope[analytics.ParticipantMetrics], error) {
	if _, err := s.enter(ctx, route.ParticipantMetrics(pid)); err != nil {
		return envelope.Envelope[analytics.ParticipantMetrics]{}, err
	}
	threshold, err := analytics.ParseThreshold(p.Threshold)
	if err != nil {
		return envelope.Fail[analytics.ParticipantMetrics](envelope.CodeValidation, err.Error(),
			map[string]any{"threshold": p.Threshold}), nil
	}
	snap, err := s.snapshot(ctx, "")
	if err != nil {
		return envelope.Envelope[analytics.ParticipantMetrics]{}, err
	}
	if !snap.HasParticipant(pid) {
		return notFound[analytics.ParticipantMetrics]("participant", pid), nil
	}
	return envelope.OK(analytics.Compute(snap, analytics.Params{
		PID:                 pid,
		Equivalent:          p.Equivalent,
		BottleneckThreshold: threshold,
		Now:                 s.sched.Now(),
	})), nil
}

// enterLoaded runs enter for a non-list endpoint and loads the datasets.
func (s *Simulator) enterLoaded(ctx context.Context, p string) (*state, error) {
	if _, err := s.enter(ctx, p); err != nil {
		return nil, err
	}
	return s.loadState(ctx)
}

// snapshot copies the current state into a GraphSnapshot.
func (s *Simulator) snapshot(ctx context.Context, eq string) (model.GraphSnapshot, error) {
	st, err := s.loadState(ctx)
	if err != nil {
		return model.GraphSnapshot{}, err
	}
	audit, err := s.audit.List(ctx, auditlog.Filter{})
	if err != nil {
		return model.GraphSnapshot{}, envelope.Wrap(http.StatusInternalServerError, envelope.CodeInternal, "list audit log", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	in := func(e string) bool { return eq == "" || e == eq }
	return model.GraphSnapshot{
		Participants: slices.Clone(st.participants),
		TrustLines:   filtered(st.trustlines, func(tl model.TrustLine) bool { return in(tl.Equivalent) }),
		Incidents:    filtered(st.incidents, func(i model.Incident) bool { return in(i.Equivalent) }),
		Equivalents:  slices.Clone(st.equivalents),
		Debts:        filtered(st.debts, func(d model.Debt) bool { return in(d.Equivalent) }),
		AuditLog:     audit,
		Transactions: filtered(st.transactions, func(t model.Transaction) bool { return in(t.Equivalent) }),
	}, nil
}

func filtered[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func emptySnapshot() model.GraphSnapshot {
	return model.GraphSnapshot{
		Participants: []model.Participant{},
		TrustLines:   []model.TrustLine{},
		Incidents:    []model.Incident{},
		Equivalents:  []model.Equivalent{},
		Debts:        []model.Debt{},
		AuditLog:     []model.AuditLogEntry{},
		Transactions: []model.Transaction{},
	}
}

func notFound[T any](kind, id string) envelope.Envelope[T] {
	return envelope.Fail[T](envelope.CodeNotFound, fmt.Sprintf("%s %q not found", kind, id),
		map[string]any{"type": kind, "id": id})
}

func usageOf(st *state, code string) model.EquivalentUsage {
	u := model.EquivalentUsage{Code: code}
	for _, tl := range st.trustlines {
		if tl.Equivalent == code {
			u.TrustLines++
		}
	}
	for _, d := range st.debts {
		if d.Equivalent == code {
			u.Debts++
		}
	}
	for _, tx := range st.transactions {
		if tx.Equivalent == code {
			u.Transactions++
		}
	}
	for _, inc := range st.incidents {
		if inc.Equivalent == code {
			u.Incidents++
		}
	}
	return u
}

func findEquivalent(st *state, code string) int {
	return slices.IndexFunc(st.equivalents, func(eq model.Equivalent) bool { return eq.Code == code })
}

func findParticipant(st *state, pid string) int {
	return slices.IndexFunc(st.participants, func(p model.Participant) bool { return p.PID == pid })
}
