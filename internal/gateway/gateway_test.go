package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trustlens/internal/config"
	"github.com/roach88/trustlens/internal/envelope"
	"github.com/roach88/trustlens/internal/fixtures"
	"github.com/roach88/trustlens/internal/model"
	"github.com/roach88/trustlens/internal/route"
	"github.com/roach88/trustlens/internal/sched"
	"github.com/roach88/trustlens/internal/simulator"
	"github.com/roach88/trustlens/internal/testutil"
	"github.com/roach88/trustlens/internal/transport"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var admin = model.Mutation{Actor: "root@ops", Role: model.RoleAdmin, Reason: "rollout"}

func testConfig(mode config.Mode) *config.Config {
	return &config.Config{
		Mode:     mode,
		BaseURL:  "http://127.0.0.1:1",
		Scenario: "empty",
		Timeout:  time.Second,
		Retry:    config.Retry{Attempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		Listen:   "127.0.0.1:0",
	}
}

func TestNew_MockModeUsesSimulator(t *testing.T) {
	api, closeFn, err := New(testConfig(config.ModeMock), Deps{Logger: quiet})
	require.NoError(t, err)
	t.Cleanup(func() { closeFn() })

	sim, ok := api.(*simulator.Simulator)
	require.True(t, ok)
	assert.Equal(t, "empty", sim.Scenario())

	eqs, err := api.Equivalents(context.Background(), model.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 3, eqs.Data.Total)
}

func TestNew_MockModeUnknownScenario(t *testing.T) {
	cfg := testConfig(config.ModeMock)
	cfg.Scenario = "nope"
	_, _, err := New(cfg, Deps{Logger: quiet})
	assert.True(t, envelope.IsCode(err, simulator.CodeUnknownScenario))
}

func TestNew_RealModeUsesRemote(t *testing.T) {
	reg := prometheus.NewRegistry()
	api, closeFn, err := New(testConfig(config.ModeReal), Deps{Logger: quiet, Registerer: reg})
	require.NoError(t, err)
	assert.NoError(t, closeFn())
	_, ok := api.(*Remote)
	assert.True(t, ok)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestFixtures(t *testing.T) {
	fsys, err := Fixtures("")
	require.NoError(t, err)
	assert.Equal(t, fixtures.FS, fsys)

	_, err = Fixtures(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	file := filepath.Join(t.TempDir(), "file.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o644))
	_, err = Fixtures(file)
	assert.ErrorContains(t, err, "not a directory")

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "datasets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "datasets", "config.json"), []byte(`{"a": 1}`), 0o644))
	fsys, err = Fixtures(dir)
	require.NoError(t, err)
	_, err = fsys.Open("datasets/config.json")
	assert.NoError(t, err)
}

func newRemote(t *testing.T, h http.Handler) *Remote {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewRemote(transport.New(ts.URL,
		transport.WithHTTPClient(ts.Client()),
		transport.WithScheduler(testutil.NewVirtualScheduler()),
		transport.WithJitter(sched.NewRand(1)),
		transport.WithRetry(sched.Backoff{Attempts: 1}),
		transport.WithCredentials(transport.StaticCredentials("s3cret")),
		transport.WithLogger(quiet),
	))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestRemote_BusinessStatusBecomesEnvelope(t *testing.T) {
	r := newRemote(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusConflict, `{"success": false, "error": {"code": "CONFLICT", "message": "already frozen", "details": {"pid": "alice"}}}`)
	}))

	res, err := r.FreezeParticipant(context.Background(), "alice", admin)
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, envelope.CodeConflict, res.Error.Code)
	assert.Equal(t, map[string]any{"pid": "alice"}, res.Error.Details)
}

func TestRemote_ServerFailureIsRaised(t *testing.T) {
	r := newRemote(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case route.Prefix + route.Participants:
			writeJSON(w, http.StatusInternalServerError, `{"success": false, "error": {"code": "INTERNAL_ERROR", "message": "boom"}}`)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	ctx := context.Background()

	_, err := r.Participants(ctx, model.ListParams{})
	assert.True(t, envelope.IsCode(err, envelope.CodeInternal))
	assert.Equal(t, http.StatusInternalServerError, envelope.StatusOf(err))

	// A bare non-2xx response has no envelope to convert.
	_, err = r.Health(ctx)
	assert.True(t, envelope.IsCode(err, envelope.CodeHTTPError))
}

func TestRemote_PrivilegedAndMutationHeaders(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string]http.Header{}
	)
	r := newRemote(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		seen[req.Method+" "+req.URL.Path] = req.Header.Clone()
		mu.Unlock()
		switch req.URL.Path {
		case route.Prefix + route.Health:
			writeJSON(w, http.StatusOK, `{"status": "ok"}`)
		default:
			writeJSON(w, http.StatusOK, `{"success": true, "data": {"code": "XAU", "precision": 3, "isActive": true}}`)
		}
	}))
	ctx := context.Background()

	h, err := r.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Data.Status)

	eq, err := r.CreateEquivalent(ctx, model.EquivalentInput{Code: " XAU ", Precision: 3}, admin)
	require.NoError(t, err)
	assert.Equal(t, "XAU", eq.Data.Code)

	mu.Lock()
	defer mu.Unlock()
	health := seen["GET "+route.Prefix+route.Health]
	assert.Empty(t, health.Get(transport.AdminTokenHeader))

	create := seen["POST "+route.Prefix+route.Equivalents]
	assert.Equal(t, "s3cret", create.Get(transport.AdminTokenHeader))
	assert.Equal(t, admin, route.MutationFromHeader(create))
}

func TestRemote_ClearingCyclesSchemaIsEnforced(t *testing.T) {
	var body atomic.Value
	body.Store(`{"success": true, "data": {"UAH": {"cycles": [[{"equivalent": "UAH", "debtor": "A", "creditor": "B", "amount": "5.00"}]]}}}`)
	r := newRemote(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, body.Load().(string))
	}))
	ctx := context.Background()

	res, err := r.ClearingCycles(ctx, model.SnapshotParams{})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Len(t, res.Data["UAH"].Cycles, 1)

	tests := []struct {
		name string
		body string
	}{
		{"missing creditor", `{"success": true, "data": {"UAH": {"cycles": [[{"equivalent": "UAH", "debtor": "A", "amount": "5.00"}]]}}}`},
		{"amount not a number", `{"success": true, "data": {"UAH": {"cycles": [[{"equivalent": "UAH", "debtor": "A", "creditor": "B", "amount": "abc"}]]}}}`},
		{"cycles not a list", `{"success": true, "data": {"UAH": {"cycles": "none"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body.Store(tt.body)
			_, err := r.ClearingCycles(ctx, model.SnapshotParams{})
			require.Error(t, err)
			assert.True(t, envelope.IsCode(err, envelope.CodeInvalidResponse))
		})
	}
}

func TestRemote_SchemaViolationIsInvalidResponse(t *testing.T) {
	r := newRemote(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case route.Prefix + route.TrustLines:
			writeJSON(w, http.StatusOK, `{"success": true, "data": {"items": "nope", "total": 1}}`)
		case route.Prefix + route.GraphSnapshot:
			writeJSON(w, http.StatusOK, `{"participants": [{"pid": ""}], "trustlines": [], "equivalents": []}`)
		default:
			writeJSON(w, http.StatusOK, `{"success": true, "data": {"items": [], "total": 0, "page": 1, "perPage": 20}}`)
		}
	}))
	ctx := context.Background()

	_, err := r.TrustLines(ctx, model.ListParams{})
	assert.True(t, envelope.IsCode(err, envelope.CodeInvalidResponse))

	_, err = r.GraphSnapshot(ctx, model.SnapshotParams{})
	assert.True(t, envelope.IsCode(err, envelope.CodeInvalidResponse))

	res, err := r.Incidents(ctx, model.ListParams{})
	require.NoError(t, err)
	assert.Empty(t, res.Data.Items)
}

// flagServer stores one feature flag document and answers GET and PATCH on it.
type flagServer struct {
	mu      sync.Mutex
	doc     map[string]bool
	patches int
}

func (s *flagServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Method == http.MethodPatch {
		if req.Header.Get(route.HeaderRole) != model.RoleAdmin {
			writeJSON(w, http.StatusForbidden, `{"success": false, "error": {"code": "FORBIDDEN", "message": "admin only"}}`)
			return
		}
		var full map[string]bool
		if err := json.NewDecoder(req.Body).Decode(&full); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.doc = full
		s.patches++
	}
	b, _ := json.Marshal(map[string]any{"success": true, "data": s.doc})
	writeJSON(w, http.StatusOK, string(b))
}

func TestRemote_ConcurrentFlagPatchesAreSerialized(t *testing.T) {
	srv := &flagServer{doc: map[string]bool{"clearing": true}}
	r := newRemote(t, srv)
	ctx := context.Background()

	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.PatchFeatureFlags(ctx, model.FeatureFlags{k: true}, admin)
			assert.NoError(t, err)
			assert.True(t, res.Success)
		}()
	}
	wg.Wait()

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, len(keys), srv.patches)
	assert.Len(t, srv.doc, len(keys)+1, "no patch was lost")
	for _, k := range keys {
		assert.True(t, srv.doc[k])
	}
}

// failingReads passes requests through until reads are switched off, then
// fails every GET at the transport level.
type failingReads struct {
	next transport.Doer
	off  atomic.Bool
}

func (d *failingReads) Do(req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodGet && d.off.Load() {
		return nil, errors.New("read tcp: connection reset by peer")
	}
	return d.next.Do(req)
}

func TestRemote_PatchFailsWhenFetchFails(t *testing.T) {
	srv := &flagServer{doc: map[string]bool{"a": false, "b": false, "c": false}}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	doer := &failingReads{next: ts.Client()}
	r := NewRemote(transport.New(ts.URL,
		transport.WithHTTPClient(doer),
		transport.WithScheduler(testutil.NewVirtualScheduler()),
		transport.WithJitter(sched.NewRand(1)),
		transport.WithRetry(sched.Backoff{Attempts: 2}),
		transport.WithCredentials(transport.StaticCredentials("s3cret")),
		transport.WithLogger(quiet),
	))
	ctx := context.Background()

	// Leave an older read of the document in the fetch cache.
	_, err := r.FeatureFlags(ctx)
	require.NoError(t, err)

	res, err := r.PatchFeatureFlags(ctx, model.FeatureFlags{"a": true}, admin)
	require.NoError(t, err)
	require.True(t, res.Success)

	doer.off.Store(true)
	_, err = r.PatchFeatureFlags(ctx, model.FeatureFlags{"b": true}, admin)
	require.Error(t, err)
	assert.True(t, envelope.IsCode(err, envelope.CodeNetwork))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 1, srv.patches, "nothing is pushed without a fresh fetch")
	assert.Equal(t, map[string]bool{"a": true, "b": false, "c": false}, srv.doc)
}

func TestRemote_PatchForbiddenIsEnvelope(t *testing.T) {
	srv := &flagServer{doc: map[string]bool{"clearing": true}}
	r := newRemote(t, srv)

	m := admin
	m.Role = model.RoleOperator
	res, err := r.PatchFeatureFlags(context.Background(), model.FeatureFlags{"clearing": false}, m)
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, envelope.CodeForbidden, res.Error.Code)
	assert.True(t, srv.doc["clearing"])
}
