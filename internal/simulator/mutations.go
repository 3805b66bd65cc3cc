package simulator

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/trustlens/internal/envelope"
	"github.com/roach88/trustlens/internal/model"
	"github.com/roach88/trustlens/internal/route"
)

// Audit actions recorded by the simulator.
const (
	ActionConfigPatch          = "config.patch"
	ActionFeatureFlagsPatch    = "feature_flags.patch"
	ActionIntegrityRepair      = "integrity.repair"
	ActionParticipantFreeze    = "participant.freeze"
	ActionParticipantUnfreeze  = "participant.unfreeze"
	ActionEquivalentCreate     = "equivalent.create"
	ActionEquivalentUpdate     = "equivalent.update"
	ActionEquivalentActivate   = "equivalent.activate"
	ActionEquivalentDeactivate = "equivalent.deactivate"
	ActionEquivalentDelete     = "equivalent.delete"
	ActionTransactionAbort     = "transaction.abort"
)

var (
	adminOnly     = []string{model.RoleAdmin}
	adminOperator = []string{model.RoleAdmin, model.RoleOperator}
)

// PatchConfig merges patch into the runtime configuration.
func (s *Simulator) PatchConfig(ctx context.Context, patch model.RuntimeConfig, m model.Mutation) (envelope.Envelope[model.RuntimeConfig], error) {
	if _, err := s.enter(ctx, route.Config); err != nil {
		return envelope.Envelope[model.RuntimeConfig]{}, err
	}
	if fail, ok := gate[model.RuntimeConfig](&m, adminOnly...); !ok {
		return fail, nil
	}
	if len(patch) == 0 {
		return envelope.Fail[model.RuntimeConfig](envelope.CodeValidation, "config patch is empty", nil), nil
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return envelope.Envelope[model.RuntimeConfig]{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	before := maps.Clone(st.config)
	after := maps.Clone(st.config)
	maps.Copy(after, patch)
	if err := s.record(ctx, m, ActionConfigPatch, "config", "runtime", before, after); err != nil {
		return envelope.Envelope[model.RuntimeConfig]{}, err
	}
	st.config = after
	return envelope.OK(maps.Clone(after)), nil
}

// PatchFeatureFlags merges patch into the feature flags.
func (s *Simulator) PatchFeatureFlags(ctx context.Context, patch model.FeatureFlags, m model.Mutation) (envelope.Envelope[model.FeatureFlags], error) {
	if _, err := s.enter(ctx, route.FeatureFlags); err != nil {
		return envelope.Envelope[model.FeatureFlags]{}, err
	}
	if fail, ok := gate[model.FeatureFlags](&m, adminOnly...); !ok {
		return fail, nil
	}
	if len(patch) == 0 {
		return envelope.Fail[model.FeatureFlags](envelope.CodeValidation, "feature flag patch is empty", nil), nil
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return envelope.Envelope[model.FeatureFlags]{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	before := maps.Clone(st.flags)
	after := maps.Clone(st.flags)
	maps.Copy(after, patch)
	if err := s.record(ctx, m, ActionFeatureFlagsPatch, "feature_flags", "global", before, after); err != nil {
		return envelope.Envelope[model.FeatureFlags]{}, err
	}
	st.flags = after
	return envelope.OK(maps.Clone(after)), nil
}

// IntegrityRepair drops debts that fail verification and returns a fresh report.
func (s *Simulator) IntegrityRepair(ctx context.Context, m model.Mutation) (envelope.Envelope[model.IntegrityReport], error) {
	if _, err := s.enter(ctx, route.IntegrityRepair); err != nil {
		return envelope.Envelope[model.IntegrityReport]{}, err
	}
	if fail, ok := gate[model.IntegrityReport](&m, adminOnly...); !ok {
		return fail, nil
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return envelope.Envelope[model.IntegrityReport]{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	before := verify(st, s.now())
	debts := slices.Clone(st.debts)
	removed := repair(st)
	after := verify(st, s.now())
	if err := s.record(ctx, m, ActionIntegrityRepair, "integrity", "debts",
		map[string]any{"status": before.Status, "debts": len(debts)},
		map[string]any{"status": after.Status, "debts": len(st.debts), "removed": removed},
	); err != nil {
		st.debts = debts
		return envelope.Envelope[model.IntegrityReport]{}, err
	}
	st.integrity = &after
	return envelope.OK(after), nil
}

// FreezeParticipant suspends an active participant.
func (s *Simulator) FreezeParticipant(ctx context.Context, pid string, m model.Mutation) (envelope.Envelope[model.Participant], error) {
	return s.setParticipantStatus(ctx, route.ParticipantFreeze(pid), pid, m,
		ActionParticipantFreeze, model.StatusActive, model.StatusSuspended)
}

// UnfreezeParticipant reactivates a suspended participant.
func (s *Simulator) UnfreezeParticipant(ctx context.Context, pid string, m model.Mutation) (envelope.Envelope[model.Participant], error) {
	return s.setParticipantStatus(ctx, route.ParticipantUnfreeze(pid), pid, m,
		ActionParticipantUnfreeze, model.StatusSuspended, model.StatusActive)
}

func (s *Simulator) setParticipantStatus(ctx context.Context, p, pid string, m model.Mutation, action string, from, to model.Status) (envelope.Envelope[model.Participant], error) {
	if _, err := s.enter(ctx, p); err != nil {
		return envelope.Envelope[model.Participant]{}, err
	}
	if fail, ok := gate[model.Participant](&m, adminOperator...); !ok {
		return fail, nil
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return envelope.Envelope[model.Participant]{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := findParticipant(st, pid)
	if i < 0 {
		return notFound[model.Participant]("participant", pid), nil
	}
	before := st.participants[i]
	if before.Status != from {
		return envelope.Fail[model.Participant](envelope.CodeConflict,
			fmt.Sprintf("participant %q is %s, expected %s", pid, before.Status.ToDisplay(), from.ToDisplay()),
			map[string]any{"status": before.Status.ToBackend()}), nil
	}
	after := before
	after.Status = to
	if err := s.record(ctx, m, action, "participant", pid, before, after); err != nil {
		return envelope.Envelope[model.Participant]{}, err
	}
	st.participants[i] = after
	return envelope.OK(after), nil
}

// CreateEquivalent adds an equivalent. Codes are unique case-insensitively.
func (s *Simulator) CreateEquivalent(ctx context.Context, in model.EquivalentInput, m model.Mutation) (envelope.Envelope[model.Equivalent], error) {
	if _, err := s.enter(ctx, route.Equivalents); err != nil {
		return envelope.Envelope[model.Equivalent]{}, err
	}
	if fail, ok := gate[model.Equivalent](&m, adminOnly...); !ok {
		return fail, nil
	}
	in.Code = strings.TrimSpace(in.Code)
	if err := mutationValidate.Struct(in); err != nil {
		return validationFailure[model.Equivalent](err), nil
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return envelope.Envelope[model.Equivalent]{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.ContainsFunc(st.equivalents, func(eq model.Equivalent) bool { return strings.EqualFold(eq.Code, in.Code) }) {
		return envelope.Fail[model.Equivalent](envelope.CodeConflict,
			fmt.Sprintf("equivalent %q already exists", in.Code), map[string]any{"code": in.Code}), nil
	}
	eq := model.Equivalent{Code: in.Code, Precision: in.Precision, Description: in.Description, IsActive: true}
	if in.IsActive != nil {
		eq.IsActive = *in.IsActive
	}
	if err := s.record(ctx, m, ActionEquivalentCreate, "equivalent", eq.Code, nil, eq); err != nil {
		return envelope.Envelope[model.Equivalent]{}, err
	}
	st.equivalents = append(st.equivalents, eq)
	return envelope.OK(eq), nil
}

// UpdateEquivalent changes an equivalent's description or precision. The
// precision is frozen once any object references the equivalent.
func (s *Simulator) UpdateEquivalent(ctx context.Context, code string, patch model.EquivalentPatch, m model.Mutation) (envelope.Envelope[model.Equivalent], error) {
	if _, err := s.enter(ctx, route.Equivalent(code)); err != nil {
		return envelope.Envelope[model.Equivalent]{}, err
	}
	if fail, ok := gate[model.Equivalent](&m, adminOnly...); !ok {
		return fail, nil
	}
	if patch.Precision == nil && patch.Description == nil {
		return envelope.Fail[model.Equivalent](envelope.CodeValidation, "equivalent patch is empty", nil), nil
	}
	if err := mutationValidate.Struct(patch); err != nil {
		return validationFailure[model.Equivalent](err), nil
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return envelope.Envelope[model.Equivalent]{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := findEquivalent(st, code)
	if i < 0 {
		return notFound[model.Equivalent]("equivalent", code), nil
	}
	before := st.equivalents[i]
	after := before
	if patch.Description != nil {
		after.Description = *patch.Description
	}
	if patch.Precision != nil && *patch.Precision != before.Precision {
		if u := usageOf(st, code); u.InUse() {
			return envelope.Fail[model.Equivalent](envelope.CodeConflict,
				fmt.Sprintf("precision of %q cannot change while it is in use", code), u), nil
		}
		after.Precision = *patch.Precision
	}
	if err := s.record(ctx, m, ActionEquivalentUpdate, "equivalent", code, before, after); err != nil {
		return envelope.Envelope[model.Equivalent]{}, err
	}
	st.equivalents[i] = after
	return envelope.OK(after), nil
}

// SetEquivalentActive activates or deactivates an equivalent.
func (s *Simulator) SetEquivalentActive(ctx context.Context, code string, active bool, m model.Mutation) (envelope.Envelope[model.Equivalent], error) {
	if _, err := s.enter(ctx, route.EquivalentActivation(code, active)); err != nil {
		return envelope.Envelope[model.Equivalent]{}, err
	}
	if fail, ok := gate[model.Equivalent](&m, adminOnly...); !ok {
		return fail, nil
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return envelope.Envelope[model.Equivalent]{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := findEquivalent(st, code)
	if i < 0 {
		return notFound[model.Equivalent]("equivalent", code), nil
	}
	before := st.equivalents[i]
	after := before
	after.IsActive = active
	action := ActionEquivalentDeactivate
	if active {
		action = ActionEquivalentActivate
	}
	if err := s.record(ctx, m, action, "equivalent", code, before, after); err != nil {
		return envelope.Envelope[model.Equivalent]{}, err
	}
	st.equivalents[i] = after
	return envelope.OK(after), nil
}

// DeleteEquivalent removes an unused equivalent and returns it.
func (s *Simulator) DeleteEquivalent(ctx context.Context, code string, m model.Mutation) (envelope.Envelope[model.Equivalent], error) {
	if _, err := s.enter(ctx, route.Equivalent(code)); err != nil {
		return envelope.Envelope[model.Equivalent]{}, err
	}
	if fail, ok := gate[model.Equivalent](&m, adminOnly...); !ok {
		return fail, nil
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return envelope.Envelope[model.Equivalent]{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := findEquivalent(st, code)
	if i < 0 {
		return notFound[model.Equivalent]("equivalent", code), nil
	}
	if u := usageOf(st, code); u.InUse() {
		return envelope.Fail[model.Equivalent](envelope.CodeConflict,
			fmt.Sprintf("equivalent %q is in use", code), u), nil
	}
	before := st.equivalents[i]
	if err := s.record(ctx, m, ActionEquivalentDelete, "equivalent", code, before, nil); err != nil {
		return envelope.Envelope[model.Equivalent]{}, err
	}
	st.equivalents = slices.Delete(st.equivalents, i, i+1)
	return envelope.OK(before), nil
}

// AbortTransaction aborts a transaction that has not reached a terminal state
// and clears its incidents.
func (s *Simulator) AbortTransaction(ctx context.Context, txID string, m model.Mutation) (envelope.Envelope[model.Transaction], error) {
	if _, err := s.enter(ctx, route.TransactionAbort(txID)); err != nil {
		return envelope.Envelope[model.Transaction]{}, err
	}
	if fail, ok := gate[model.Transaction](&m, adminOperator...); !ok {
		return fail, nil
	}
	st, err := s.loadState(ctx)
	if err != nil {
		return envelope.Envelope[model.Transaction]{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(st.transactions, func(tx model.Transaction) bool { return tx.TxID == txID })
	if i < 0 {
		return notFound[model.Transaction]("transaction", txID), nil
	}
	before := st.transactions[i]
	if model.TerminalTransactionStates[strings.ToUpper(before.State)] {
		return envelope.Fail[model.Transaction](envelope.CodeConflict,
			fmt.Sprintf("transaction %q is already %s", txID, before.State),
			map[string]any{"state": before.State}), nil
	}
	after := before
	after.State = "ABORTED"
	after.UpdatedAt = s.now()
	if err := s.record(ctx, m, ActionTransactionAbort, "transaction", txID, before, after); err != nil {
		return envelope.Envelope[model.Transaction]{}, err
	}
	st.transactions[i] = after
	st.incidents = slices.DeleteFunc(st.incidents, func(inc model.Incident) bool { return inc.TxID == txID })
	return envelope.OK(after), nil
}
