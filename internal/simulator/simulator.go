package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/trustlens/internal/auditlog"
	"github.com/roach88/trustlens/internal/cycles"
	"github.com/roach88/trustlens/internal/envelope"
	"github.com/roach88/trustlens/internal/model"
	"github.com/roach88/trustlens/internal/sched"
	"github.com/roach88/trustlens/internal/transport"
)

// CodeUnknownScenario is raised when the selected scenario does not exist or
// cannot be parsed.
const CodeUnknownScenario = "UNKNOWN_SCENARIO"

// Dataset names under datasets/.
const (
	DatasetParticipants   = "participants"
	DatasetEquivalents    = "equivalents"
	DatasetTrustLines     = "trustlines"
	DatasetIncidents      = "incidents"
	DatasetDebts          = "debts"
	DatasetAuditLog       = "audit-log"
	DatasetTransactions   = "transactions"
	DatasetConfig         = "config"
	DatasetFeatureFlags   = "feature-flags"
	DatasetClearingCycles = "clearing-cycles"
)

// Simulator is the fixture-backed stand-in for the backend.
type Simulator struct {
	fsys     fs.FS
	sched    sched.Scheduler
	jitter   sched.Jitter
	backoff  sched.Backoff
	notifier transport.Notifier
	logger   *slog.Logger
	ids      auditlog.Generator

	datasets *DatasetCache
	audit    *auditlog.Store

	scMu      sync.RWMutex
	initial   string
	scenario  string
	scenarios map[string]*Scenario

	mu sync.RWMutex
	st *state
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithScheduler sets the scheduler for latency, retry waits and timestamps.
func WithScheduler(s sched.Scheduler) Option {
	return func(sim *Simulator) { sim.sched = s }
}

// WithJitter sets the random source for latency and backoff jitter.
func WithJitter(j sched.Jitter) Option {
	return func(sim *Simulator) { sim.jitter = j }
}

// WithBackoff sets the dataset load retry policy.
func WithBackoff(b sched.Backoff) Option {
	return func(sim *Simulator) { sim.backoff = b }
}

// WithNotifier sets the observer told about dataset load failures.
func WithNotifier(n transport.Notifier) Option {
	return func(sim *Simulator) { sim.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(sim *Simulator) { sim.logger = l }
}

// WithScenario selects the initial scenario.
func WithScenario(name string) Option {
	return func(sim *Simulator) { sim.scenario = name }
}

// WithIDGenerator sets the audit entry ID generator.
func WithIDGenerator(g auditlog.Generator) Option {
	return func(sim *Simulator) { sim.ids = g }
}

// New creates a simulator reading scenarios/ and datasets/ from fsys.
func New(fsys fs.FS, opts ...Option) (*Simulator, error) {
	s := &Simulator{
		fsys:      fsys,
		sched:     sched.Real{},
		jitter:    sched.NewRand(uint64(time.Now().UnixNano())),
		backoff:   sched.DefaultBackoff(),
		logger:    slog.Default(),
		ids:       auditlog.UUIDv7Generator{},
		scenario:  DefaultScenario,
		scenarios: make(map[string]*Scenario),
	}
	for _, o := range opts {
		o(s)
	}
	if s.scenario == "" {
		s.scenario = DefaultScenario
	}
	s.initial = s.scenario

	s.datasets = NewDatasetCache(FSLoader(fsys), s.sched, s.jitter, s.backoff, s.notifier, s.logger)

	audit, err := auditlog.Open("", auditlog.WithGenerator(s.ids), auditlog.WithScheduler(s.sched))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}
	s.audit = audit

	if _, err := s.resolveScenario(s.scenario); err != nil {
		audit.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the audit store.
func (s *Simulator) Close() error {
	return s.audit.Close()
}

// Datasets returns the dataset cache handle.
func (s *Simulator) Datasets() *DatasetCache {
	return s.datasets
}

// Reset drops every cache, the audit trail and all in-memory mutations, and
// restores the scenario the simulator was created with.
func (s *Simulator) Reset(ctx context.Context) error {
	s.datasets.Reset()

	s.scMu.Lock()
	s.scenario = s.initial
	s.scenarios = make(map[string]*Scenario)
	s.scMu.Unlock()

	s.mu.Lock()
	s.st = nil
	s.mu.Unlock()

	return s.audit.Reset(ctx)
}

// Scenario returns the name of the process-wide scenario.
func (s *Simulator) Scenario() string {
	s.scMu.RLock()
	defer s.scMu.RUnlock()
	return s.scenario
}

// SetScenario selects the process-wide scenario. An empty name selects the
// default.
func (s *Simulator) SetScenario(name string) error {
	if name == "" {
		name = DefaultScenario
	}
	if _, err := s.resolveScenario(name); err != nil {
		return err
	}
	s.scMu.Lock()
	s.scenario = name
	s.scMu.Unlock()
	s.logger.Debug("scenario selected", "scenario", name)
	return nil
}

type scenarioKey struct{}

// ContextWithScenario selects a scenario for calls made with the returned
// context, taking precedence over SetScenario.
func ContextWithScenario(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, scenarioKey{}, name)
}

func scenarioFromContext(ctx context.Context) string {
	name, _ := ctx.Value(scenarioKey{}).(string)
	return name
}

// resolveScenario returns the parsed scenario, or nil when the default is not
// present in the fixtures.
func (s *Simulator) resolveScenario(name string) (*Scenario, error) {
	s.scMu.RLock()
	sc, ok := s.scenarios[name]
	s.scMu.RUnlock()
	if ok {
		return sc, nil
	}

	sc, err := loadScenario(s.fsys, name)
	if err != nil {
		if name == DefaultScenario && errors.Is(err, fs.ErrNotExist) {
			sc = nil
		} else {
			return nil, envelope.Wrap(http.StatusBadRequest, CodeUnknownScenario, err.Error(), err)
		}
	}

	s.scMu.Lock()
	s.scenarios[name] = sc
	s.scMu.Unlock()
	return sc, nil
}

// enter runs the per-call scenario behaviour for logical path p: simulated
// latency, then override matching. It reports true for an empty override and
// returns the injected failure for an error override.
func (s *Simulator) enter(ctx context.Context, p string) (bool, error) {
	name := scenarioFromContext(ctx)
	if name == "" {
		name = s.Scenario()
	}
	sc, err := s.resolveScenario(name)
	if err != nil {
		return false, err
	}

	if sc != nil && len(sc.LatencyRangeMs) == 2 {
		ms := sched.Between(s.jitter, sc.LatencyRangeMs[0], sc.LatencyRangeMs[1])
		if ms > 0 {
			if err := s.sched.Sleep(ctx, time.Duration(ms)*time.Millisecond); err != nil {
				return false, envelope.Wrap(0, envelope.CodeTimeout, p+" cancelled during simulated latency", err)
			}
		}
	}

	o, ok := sc.Match(p)
	if !ok {
		return false, nil
	}
	if o.Mode == ModeError {
		s.logger.Debug("injecting scenario failure", "path", p, "code", o.Code, "status", o.Status)
		return false, o.Err(p)
	}
	return true, nil
}

// state is the mutable in-memory copy of the datasets.
type state struct {
	participants []model.Participant
	equivalents  []model.Equivalent
	trustlines   []model.TrustLine
	incidents    []model.Incident
	debts        []model.Debt
	transactions []model.Transaction
	config       model.RuntimeConfig
	flags        model.FeatureFlags

	// cycles is nil when no fixture exists; cycles are then derived from debts.
	cycles model.ClearingCycles

	integrity *model.IntegrityReport
}

// loadState returns the in-memory state, building it from the datasets on first
// use. Callers hold s.mu while reading or mutating it.
func (s *Simulator) loadState(ctx context.Context) (*state, error) {
	s.mu.RLock()
	st := s.st
	s.mu.RUnlock()
	if st != nil {
		return st, nil
	}

	st, audit, err := s.buildState(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st != nil {
		return s.st, nil
	}
	if err := s.audit.Seed(ctx, audit); err != nil {
		return nil, envelope.Wrap(http.StatusInternalServerError, envelope.CodeInternal, "seed audit log", err)
	}
	s.st = st
	return st, nil
}

func (s *Simulator) buildState(ctx context.Context) (*state, []model.AuditLogEntry, error) {
	st := &state{}
	var audit []model.AuditLogEntry

	steps := []struct {
		name     string
		required bool
		decode   func([]byte) error
	}{
		{DatasetParticipants, true, itemsInto(DatasetParticipants, &st.participants)},
		{DatasetEquivalents, true, itemsInto(DatasetEquivalents, &st.equivalents)},
		{DatasetTrustLines, true, itemsInto(DatasetTrustLines, &st.trustlines)},
		{DatasetIncidents, true, itemsInto(DatasetIncidents, &st.incidents)},
		{DatasetDebts, false, itemsInto(DatasetDebts, &st.debts)},
		{DatasetAuditLog, false, itemsInto(DatasetAuditLog, &audit)},
		{DatasetTransactions, false, itemsInto(DatasetTransactions, &st.transactions)},
		{DatasetConfig, false, objectInto(&st.config)},
		{DatasetFeatureFlags, false, objectInto(&st.flags)},
		{DatasetClearingCycles, false, func(b []byte) error {
			c, err := cycles.Decode(b)
			if err != nil {
				return err
			}
			st.cycles = c
			return nil
		}},
	}

	for _, step := range steps {
		raw, err := s.datasets.Get(ctx, step.name)
		if errors.Is(err, fs.ErrNotExist) && !step.required {
			continue
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, envelope.Wrap(http.StatusInternalServerError, envelope.CodeInternal,
				fmt.Sprintf("required dataset %s is missing", step.name), err)
		}
		if err != nil {
			return nil, nil, err
		}
		if err := step.decode(raw); err != nil {
			if _, ok := envelope.As(err); ok {
				return nil, nil, err
			}
			return nil, nil, envelope.Wrap(0, envelope.CodeInvalidJSON, fmt.Sprintf("decode dataset %s", step.name), err)
		}
	}

	if st.config == nil {
		st.config = model.RuntimeConfig{}
	}
	if st.flags == nil {
		st.flags = model.FeatureFlags{}
	}
	for _, p := range []any{&st.participants, &st.equivalents, &st.trustlines, &st.incidents, &st.debts, &st.transactions} {
		ensureSlice(p)
	}
	return st, audit, nil
}

// itemsInto decodes either a bare array or {items: [...]}.
func itemsInto[T any](name string, dst *[]T) func([]byte) error {
	return func(raw []byte) error {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			return json.Unmarshal(trimmed, dst)
		}
		var wrapped struct {
			Items *[]T `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return err
		}
		if wrapped.Items == nil {
			return fmt.Errorf("dataset %s has neither an array nor an items member", name)
		}
		*dst = *wrapped.Items
		return nil
	}
}

func objectInto[T any](dst *T) func([]byte) error {
	return func(raw []byte) error {
		return json.Unmarshal(raw, dst)
	}
}

// ensureSlice replaces a nil slice behind ptr with an empty one so that empty
// collections encode as [].
func ensureSlice(ptr any) {
	v := reflect.ValueOf(ptr).Elem()
	if v.Kind() == reflect.Slice && v.IsNil() {
		v.Set(reflect.MakeSlice(v.Type(), 0, 0))
	}
}

var mutationValidate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validationFailure turns a validator error into a business failure envelope.
func validationFailure[T any](err error) envelope.Envelope[T] {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return envelope.Fail[T](envelope.CodeValidation, err.Error(), nil)
	}
	fields := make(map[string]string, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return envelope.Fail[T](envelope.CodeValidation, "invalid input: "+strings.Join(msgs, ", "),
		map[string]any{"fields": fields})
}

// gate validates the mutation and checks the caller's role. The returned
// envelope is meaningful only when ok is false.
func gate[T any](m *model.Mutation, roles ...string) (envelope.Envelope[T], bool) {
	m.Actor = strings.TrimSpace(m.Actor)
	m.Reason = strings.TrimSpace(m.Reason)
	if err := mutationValidate.Struct(m); err != nil {
		return validationFailure[T](err), false
	}
	if len(roles) > 0 && !m.HasRole(roles...) {
		return envelope.Fail[T](envelope.CodeForbidden,
			fmt.Sprintf("role %q may not perform this action", m.Role),
			map[string]any{"allowedRoles": roles}), false
	}
	return envelope.Envelope[T]{}, true
}

// record appends an audit entry for a mutation.
func (s *Simulator) record(ctx context.Context, m model.Mutation, action, objectType, objectID string, before, after any) error {
	_, err := s.audit.Append(ctx, model.AuditLogEntry{
		Actor:       m.Actor,
		Role:        m.Role,
		Action:      action,
		ObjectType:  objectType,
		ObjectID:    objectID,
		Reason:      m.Reason,
		BeforeState: before,
		AfterState:  after,
		RequestID:   m.RequestID,
	})
	if err != nil {
		return envelope.Wrap(http.StatusInternalServerError, envelope.CodeInternal, "record audit entry", err)
	}
	s.logger.Info("simulated mutation", "action", action, "object", objectType+"/"+objectID, "actor", m.Actor)
	return nil
}

func (s *Simulator) now() string {
	return s.sched.Now().UTC().Format(time.RFC3339)
}
