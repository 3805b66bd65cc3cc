package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/roach88/trustlens/internal/analytics"
	"github.com/roach88/trustlens/internal/cycles"
	"github.com/roach88/trustlens/internal/envelope"
	"github.com/roach88/trustlens/internal/model"
	"github.com/roach88/trustlens/internal/route"
	"github.com/roach88/trustlens/internal/serializer"
	"github.com/roach88/trustlens/internal/transport"
)

// Serialization keys for read-modify-write documents.
const (
	keyConfig       = "config"
	keyFeatureFlags = "feature-flags"
)

// Remote implements API against a backend over HTTP.
type Remote struct {
	engine *transport.Engine
	serial *serializer.Serializer
}

// NewRemote wraps e.
func NewRemote(e *transport.Engine) *Remote {
	return &Remote{engine: e, serial: serializer.New()}
}

// Engine returns the underlying request engine.
func (r *Remote) Engine() *transport.Engine {
	return r.engine
}

// returnedAsStatus lists the business codes a backend answers with a 4xx
// status. They are handed back as failed envelopes, the same as the simulator.
var returnedAsStatus = map[string]bool{
	envelope.CodeValidation: true,
	envelope.CodeForbidden:  true,
	envelope.CodeNotFound:   true,
	envelope.CodeConflict:   true,
}

func call[T any](ctx context.Context, r *Remote, req transport.Request, opts ...transport.CallOption) (envelope.Envelope[T], error) {
	res, err := transport.Do[T](ctx, r.engine, req, opts...)
	if err != nil {
		if e, ok := envelope.As(err); ok && e.Status >= 400 && e.Status < 500 && returnedAsStatus[e.Code] {
			return envelope.Fail[T](e.Code, e.Message, e.Details), nil
		}
		return envelope.Envelope[T]{}, err
	}
	return res, nil
}

func get[T any](ctx context.Context, r *Remote, path string, privileged bool, opts ...transport.CallOption) (envelope.Envelope[T], error) {
	return call[T](ctx, r, transport.Request{Method: http.MethodGet, Path: path, Privileged: privileged}, opts...)
}

func list[T any](ctx context.Context, r *Remote, path string, p model.ListParams) (envelope.Envelope[model.Page[T]], error) {
	return call[model.Page[T]](ctx, r, transport.Request{
		Method:     http.MethodGet,
		Path:       path,
		Query:      p.Query(),
		Privileged: true,
	}, transport.WithValidator(pageSchema))
}

func mutate[T any](ctx context.Context, r *Remote, method, path string, body any, m model.Mutation) (envelope.Envelope[T], error) {
	return call[T](ctx, r, transport.Request{
		Method:     method,
		Path:       path,
		Body:       body,
		Header:     route.MutationHeader(m),
		Privileged: true,
	})
}

// Health implements API.
func (r *Remote) Health(ctx context.Context) (envelope.Envelope[model.HealthStatus], error) {
	return get[model.HealthStatus](ctx, r, route.Health, false)
}

// HealthDB implements API.
func (r *Remote) HealthDB(ctx context.Context) (envelope.Envelope[model.HealthStatus], error) {
	return get[model.HealthStatus](ctx, r, route.HealthDB, false)
}

// Migrations implements API.
func (r *Remote) Migrations(ctx context.Context) (envelope.Envelope[model.MigrationStatus], error) {
	return get[model.MigrationStatus](ctx, r, route.Migrations, true)
}

// Config implements API.
func (r *Remote) Config(ctx context.Context) (envelope.Envelope[model.RuntimeConfig], error) {
	return get[model.RuntimeConfig](ctx, r, route.Config, true)
}

// PatchConfig fetches the current configuration, applies patch over it and
// pushes the merged document. Concurrent patches from this process are
// applied one at a time.
func (r *Remote) PatchConfig(ctx context.Context, patch model.RuntimeConfig, m model.Mutation) (envelope.Envelope[model.RuntimeConfig], error) {
	return mergePatch(ctx, r, keyConfig, route.Config, patch, m)
}

// FeatureFlags implements API.
func (r *Remote) FeatureFlags(ctx context.Context) (envelope.Envelope[model.FeatureFlags], error) {
	return get[model.FeatureFlags](ctx, r, route.FeatureFlags, true)
}

// PatchFeatureFlags is PatchConfig for the feature flag document.
func (r *Remote) PatchFeatureFlags(ctx context.Context, patch model.FeatureFlags, m model.Mutation) (envelope.Envelope[model.FeatureFlags], error) {
	return mergePatch(ctx, r, keyFeatureFlags, route.FeatureFlags, patch, m)
}

// failedEnvelope carries a business failure out of a serialized step.
type failedEnvelope struct {
	body *envelope.ErrorBody
}

func (f *failedEnvelope) Error() string {
	return f.body.Code + ": " + f.body.Message
}

func mergePatch[M ~map[string]V, V any](ctx context.Context, r *Remote, key, path string, patch M, m model.Mutation) (envelope.Envelope[M], error) {
	unwrap := func(res envelope.Envelope[M], err error) (map[string]V, error) {
		if err != nil {
			return nil, err
		}
		if !res.Success {
			return nil, &failedEnvelope{body: res.Error}
		}
		return res.Data, nil
	}

	merged, err := serializer.MergePatch(ctx, r.serial, key,
		func(ctx context.Context) (map[string]V, error) {
			return unwrap(call[M](ctx, r, transport.Request{
				Method:          http.MethodGet,
				Path:            path,
				Privileged:      true,
				NoCacheFallback: true,
			}))
		},
		func(ctx context.Context, full map[string]V) (map[string]V, error) {
			return unwrap(mutate[M](ctx, r, http.MethodPatch, path, full, m))
		},
		patch,
	)
	if err != nil {
		var failed *failedEnvelope
		if errors.As(err, &failed) {
			return envelope.Envelope[M]{Error: failed.body}, nil
		}
		return envelope.Envelope[M]{}, err
	}
	return envelope.OK(M(merged)), nil
}

// IntegrityStatus implements API.
func (r *Remote) IntegrityStatus(ctx context.Context) (envelope.Envelope[model.IntegrityReport], error) {
	return get[model.IntegrityReport](ctx, r, route.IntegrityStatus, false)
}

// IntegrityVerify implements API.
func (r *Remote) IntegrityVerify(ctx context.Context) (envelope.Envelope[model.IntegrityReport], error) {
	return call[model.IntegrityReport](ctx, r, transport.Request{Method: http.MethodPost, Path: route.IntegrityVerify})
}

// IntegrityRepair implements API.
func (r *Remote) IntegrityRepair(ctx context.Context, m model.Mutation) (envelope.Envelope[model.IntegrityReport], error) {
	return mutate[model.IntegrityReport](ctx, r, http.MethodPost, route.IntegrityRepair, nil, m)
}

// Participants implements API.
func (r *Remote) Participants(ctx context.Context, p model.ListParams) (envelope.Envelope[model.Page[model.Participant]], error) {
	return list[model.Participant](ctx, r, route.Participants, p)
}

// FreezeParticipant implements API.
func (r *Remote) FreezeParticipant(ctx context.Context, pid string, m model.Mutation) (envelope.Envelope[model.Participant], error) {
	return mutate[model.Participant](ctx, r, http.MethodPost, route.ParticipantFreeze(pid), nil, m)
}

// UnfreezeParticipant implements API.
func (r *Remote) UnfreezeParticipant(ctx context.Context, pid string, m model.Mutation) (envelope.Envelope[model.Participant], error) {
	return mutate[model.Participant](ctx, r, http.MethodPost, route.ParticipantUnfreeze(pid), nil, m)
}

// ParticipantMetrics implements API.
func (r *Remote) ParticipantMetrics(ctx context.Context, pid string, p model.MetricsParams) (envelope.Envelope[analytics.ParticipantMetrics], error) {
	return call[analytics.ParticipantMetrics](ctx, r, transport.Request{
		Method:     http.MethodGet,
		Path:       route.ParticipantMetrics(pid),
		Query:      p.Query(),
		Privileged: true,
	})
}

// TrustLines implements API.
func (r *Remote) TrustLines(ctx context.Context, p model.ListParams) (envelope.Envelope[model.Page[model.TrustLine]], error) {
	return list[model.TrustLine](ctx, r, route.TrustLines, p)
}

// AuditLog implements API.
func (r *Remote) AuditLog(ctx context.Context, p model.ListParams) (envelope.Envelope[model.Page[model.AuditLogEntry]], error) {
	return list[model.AuditLogEntry](ctx, r, route.AuditLog, p)
}

// Incidents implements API.
func (r *Remote) Incidents(ctx context.Context, p model.ListParams) (envelope.Envelope[model.Page[model.Incident]], error) {
	return list[model.Incident](ctx, r, route.Incidents, p)
}

// Equivalents implements API.
func (r *Remote) Equivalents(ctx context.Context, p model.ListParams) (envelope.Envelope[model.Page[model.Equivalent]], error) {
	return list[model.Equivalent](ctx, r, route.Equivalents, p)
}

// CreateEquivalent implements API.
func (r *Remote) CreateEquivalent(ctx context.Context, in model.EquivalentInput, m model.Mutation) (envelope.Envelope[model.Equivalent], error) {
	in.Code = strings.TrimSpace(in.Code)
	return mutate[model.Equivalent](ctx, r, http.MethodPost, route.Equivalents, in, m)
}

// UpdateEquivalent implements API.
func (r *Remote) UpdateEquivalent(ctx context.Context, code string, patch model.EquivalentPatch, m model.Mutation) (envelope.Envelope[model.Equivalent], error) {
	return mutate[model.Equivalent](ctx, r, http.MethodPatch, route.Equivalent(code), patch, m)
}

// SetEquivalentActive implements API.
func (r *Remote) SetEquivalentActive(ctx context.Context, code string, active bool, m model.Mutation) (envelope.Envelope[model.Equivalent], error) {
	return mutate[model.Equivalent](ctx, r, http.MethodPost, route.EquivalentActivation(code, active), nil, m)
}

// EquivalentUsage implements API.
func (r *Remote) EquivalentUsage(ctx context.Context, code string) (envelope.Envelope[model.EquivalentUsage], error) {
	return get[model.EquivalentUsage](ctx, r, route.EquivalentUsage(code), true)
}

// DeleteEquivalent implements API.
func (r *Remote) DeleteEquivalent(ctx context.Context, code string, m model.Mutation) (envelope.Envelope[model.Equivalent], error) {
	return mutate[model.Equivalent](ctx, r, http.MethodDelete, route.Equivalent(code), nil, m)
}

// AbortTransaction implements API.
func (r *Remote) AbortTransaction(ctx context.Context, txID string, m model.Mutation) (envelope.Envelope[model.Transaction], error) {
	return mutate[model.Transaction](ctx, r, http.MethodPost, route.TransactionAbort(txID), nil, m)
}

// GraphSnapshot implements API.
func (r *Remote) GraphSnapshot(ctx context.Context, p model.SnapshotParams) (envelope.Envelope[model.GraphSnapshot], error) {
	return call[model.GraphSnapshot](ctx, r, transport.Request{
		Method:     http.MethodGet,
		Path:       route.GraphSnapshot,
		Query:      p.Query(),
		Privileged: true,
	}, transport.WithValidator(snapshotSchema))
}

// GraphEgo implements API.
func (r *Remote) GraphEgo(ctx context.Context, p model.EgoParams) (envelope.Envelope[model.GraphSnapshot], error) {
	return call[model.GraphSnapshot](ctx, r, transport.Request{
		Method:     http.MethodGet,
		Path:       route.GraphEgo,
		Query:      p.Query(),
		Privileged: true,
	}, transport.WithValidator(snapshotSchema))
}

// ClearingCycles implements API.
func (r *Remote) ClearingCycles(ctx context.Context, p model.SnapshotParams) (envelope.Envelope[model.ClearingCycles], error) {
	return call[model.ClearingCycles](ctx, r, transport.Request{
		Method:     http.MethodGet,
		Path:       route.ClearingCycles,
		Query:      p.Query(),
		Privileged: true,
	}, transport.WithValidator(cycles.Validate))
}
