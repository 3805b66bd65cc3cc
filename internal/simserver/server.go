// Package simserver serves the simulator over HTTP using the backend's wire
// envelope, so the remote client and other tools can run against fixtures.
//
// Every logical endpoint is mounted under route.Prefix. A scenario query
// parameter selects the scenario for that request. Business failures map to
// HTTP statuses (see StatusFor); raised failures use the status they carry.
package simserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/trustlens/internal/envelope"
	"github.com/roach88/trustlens/internal/model"
	"github.com/roach88/trustlens/internal/route"
	"github.com/roach88/trustlens/internal/simulator"
)

// ControlPrefix holds the simulator control endpoints, relative to route.Prefix.
const ControlPrefix = "/_simulator"

// ShutdownTimeout bounds graceful shutdown in Run.
const ShutdownTimeout = 5 * time.Second

// Server exposes a Simulator over HTTP.
type Server struct {
	sim      *simulator.Simulator
	logger   *slog.Logger
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	router   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRegistry serves and registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// New builds the router for sim.
func New(sim *simulator.Simulator, opts ...Option) *Server {
	s := &Server{sim: sim, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trustlens_simserver_requests_total",
		Help: "Requests served by the simulation server by route and status.",
	}, []string{"route", "status"})
	s.registry.MustRegister(s.requests)

	r := gin.New()
	r.Use(gin.Recovery(), s.observe, scenarioFromQuery)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := r.Group(route.Prefix)
	{
		api.GET(route.Health, s.health)
		api.GET(route.HealthDB, s.healthDB)
		api.GET(route.Migrations, s.migrations)

		api.GET(route.Config, s.config)
		api.PATCH(route.Config, s.patchConfig)
		api.GET(route.FeatureFlags, s.featureFlags)
		api.PATCH(route.FeatureFlags, s.patchFeatureFlags)

		api.GET(route.IntegrityStatus, s.integrityStatus)
		api.POST(route.IntegrityVerify, s.integrityVerify)
		api.POST(route.IntegrityRepair, s.integrityRepair)

		api.GET(route.Participants, s.participants)
		api.POST(route.Participants+"/:pid/freeze", s.freeze)
		api.POST(route.Participants+"/:pid/unfreeze", s.unfreeze)
		api.GET(route.Participants+"/:pid/metrics", s.participantMetrics)

		api.GET(route.TrustLines, s.trustLines)
		api.GET(route.AuditLog, s.auditLog)
		api.GET(route.Incidents, s.incidents)

		api.GET(route.Equivalents, s.equivalents)
		api.POST(route.Equivalents, s.createEquivalent)
		api.PATCH(route.Equivalents+"/:code", s.updateEquivalent)
		api.DELETE(route.Equivalents+"/:code", s.deleteEquivalent)
		api.POST(route.Equivalents+"/:code/activate", s.setEquivalentActive(true))
		api.POST(route.Equivalents+"/:code/deactivate", s.setEquivalentActive(false))
		api.GET(route.Equivalents+"/:code/usage", s.equivalentUsage)

		api.POST("/admin/transactions/:txid/abort", s.abortTransaction)

		api.GET(route.GraphSnapshot, s.graphSnapshot)
		api.GET(route.GraphEgo, s.graphEgo)
		api.GET(route.ClearingCycles, s.clearingCycles)
	}

	ctl := api.Group(ControlPrefix)
	{
		ctl.POST("/reset", s.reset)
		ctl.GET("/scenario", s.scenario)
		ctl.PUT("/scenario", s.setScenario)
	}

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("simulation server listening", "addr", addr, "scenario", s.sim.Scenario())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	s.logger.Info("simulation server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	status := c.Writer.Status()
	s.requests.WithLabelValues(path, strconv.Itoa(status)).Inc()
	s.logger.Debug("request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", status,
		"duration", time.Since(start),
	)
}

func scenarioFromQuery(c *gin.Context) {
	if name := c.Query(model.ParamScenario); name != "" {
		c.Request = c.Request.WithContext(simulator.ContextWithScenario(c.Request.Context(), name))
	}
	c.Next()
}

// StatusFor maps a business failure code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case envelope.CodeValidation:
		return http.StatusBadRequest
	case envelope.CodeForbidden:
		return http.StatusForbidden
	case envelope.CodeNotFound:
		return http.StatusNotFound
	case envelope.CodeConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// statusForError is the status for a raised failure: its own status when it
// has one, otherwise 503 for transport failures and 500 for anything else.
func statusForError(err error) int {
	e, ok := envelope.As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if e.Status != 0 {
		return e.Status
	}
	if envelope.KindOf(e.Code) == envelope.KindTransport {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// write sends the outcome of a simulator call.
func write[T any](c *gin.Context, res envelope.Envelope[T], err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	if !res.Success {
		c.JSON(StatusFor(res.Error.Code), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func writeError(c *gin.Context, err error) {
	body := &envelope.ErrorBody{Code: envelope.CodeInternal, Message: err.Error()}
	if e, ok := envelope.As(err); ok {
		body = e.Body()
	}
	c.JSON(statusForError(err), envelope.Envelope[any]{Error: body})
}

// badRequest rejects a body that could not be decoded.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, envelope.Fail[any](envelope.CodeValidation, "invalid request body: "+err.Error(), nil))
}

func mutation(c *gin.Context) model.Mutation {
	return route.MutationFromHeader(c.Request.Header)
}

func listParams(c *gin.Context) model.ListParams {
	return model.ListParamsFromQuery(c.Request.URL.Query())
}
