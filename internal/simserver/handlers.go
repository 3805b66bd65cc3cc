package simserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/trustlens/internal/envelope"
	"github.com/roach88/trustlens/internal/model"
)

func (s *Server) health(c *gin.Context) {
	res, err := s.sim.Health(c.Request.Context())
	write(c, res, err)
}

func (s *Server) healthDB(c *gin.Context) {
	res, err := s.sim.HealthDB(c.Request.Context())
	write(c, res, err)
}

func (s *Server) migrations(c *gin.Context) {
	res, err := s.sim.Migrations(c.Request.Context())
	write(c, res, err)
}

func (s *Server) config(c *gin.Context) {
	res, err := s.sim.Config(c.Request.Context())
	write(c, res, err)
}

func (s *Server) patchConfig(c *gin.Context) {
	var patch model.RuntimeConfig
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.sim.PatchConfig(c.Request.Context(), patch, mutation(c))
	write(c, res, err)
}

func (s *Server) featureFlags(c *gin.Context) {
	res, err := s.sim.FeatureFlags(c.Request.Context())
	write(c, res, err)
}

func (s *Server) patchFeatureFlags(c *gin.Context) {
	var patch model.FeatureFlags
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.sim.PatchFeatureFlags(c.Request.Context(), patch, mutation(c))
	write(c, res, err)
}

func (s *Server) integrityStatus(c *gin.Context) {
	res, err := s.sim.IntegrityStatus(c.Request.Context())
	write(c, res, err)
}

func (s *Server) integrityVerify(c *gin.Context) {
	res, err := s.sim.IntegrityVerify(c.Request.Context())
	write(c, res, err)
}

func (s *Server) integrityRepair(c *gin.Context) {
	res, err := s.sim.IntegrityRepair(c.Request.Context(), mutation(c))
	write(c, res, err)
}

func (s *Server) participants(c *gin.Context) {
	res, err := s.sim.Participants(c.Request.Context(), listParams(c))
	write(c, res, err)
}

func (s *Server) freeze(c *gin.Context) {
	res, err := s.sim.FreezeParticipant(c.Request.Context(), c.Param("pid"), mutation(c))
	write(c, res, err)
}

func (s *Server) unfreeze(c *gin.Context) {
	res, err := s.sim.UnfreezeParticipant(c.Request.Context(), c.Param("pid"), mutation(c))
	write(c, res, err)
}

func (s *Server) participantMetrics(c *gin.Context) {
	p := model.MetricsParamsFromQuery(c.Request.URL.Query())
	res, err := s.sim.ParticipantMetrics(c.Request.Context(), c.Param("pid"), p)
	write(c, res, err)
}

func (s *Server) trustLines(c *gin.Context) {
	res, err := s.sim.TrustLines(c.Request.Context(), listParams(c))
	write(c, res, err)
}

func (s *Server) auditLog(c *gin.Context) {
	res, err := s.sim.AuditLog(c.Request.Context(), listParams(c))
	write(c, res, err)
}

func (s *Server) incidents(c *gin.Context) {
	res, err := s.sim.Incidents(c.Request.Context(), listParams(c))
	write(c, res, err)
}

func (s *Server) equivalents(c *gin.Context) {
	res, err := s.sim.Equivalents(c.Request.Context(), listParams(c))
	write(c, res, err)
}

func (s *Server) createEquivalent(c *gin.Context) {
	var in model.EquivalentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.sim.CreateEquivalent(c.Request.Context(), in, mutation(c))
	write(c, res, err)
}

func (s *Server) updateEquivalent(c *gin.Context) {
	var patch model.EquivalentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.sim.UpdateEquivalent(c.Request.Context(), c.Param("code"), patch, mutation(c))
	write(c, res, err)
}

func (s *Server) setEquivalentActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := s.sim.SetEquivalentActive(c.Request.Context(), c.Param("code"), active, mutation(c))
		write(c, res, err)
	}
}

func (s *Server) equivalentUsage(c *gin.Context) {
	res, err := s.sim.EquivalentUsage(c.Request.Context(), c.Param("code"))
	write(c, res, err)
}

func (s *Server) deleteEquivalent(c *gin.Context) {
	res, err := s.sim.DeleteEquivalent(c.Request.Context(), c.Param("code"), mutation(c))
	write(c, res, err)
}

func (s *Server) abortTransaction(c *gin.Context) {
	res, err := s.sim.AbortTransaction(c.Request.Context(), c.Param("txid"), mutation(c))
	write(c, res, err)
}

func (s *Server) graphSnapshot(c *gin.Context) {
	res, err := s.sim.GraphSnapshot(c.Request.Context(), model.SnapshotParamsFromQuery(c.Request.URL.Query()))
	write(c, res, err)
}

func (s *Server) graphEgo(c *gin.Context) {
	res, err := s.sim.GraphEgo(c.Request.Context(), model.EgoParamsFromQuery(c.Request.URL.Query()))
	write(c, res, err)
}

func (s *Server) clearingCycles(c *gin.Context) {
	res, err := s.sim.ClearingCycles(c.Request.Context(), model.SnapshotParamsFromQuery(c.Request.URL.Query()))
	write(c, res, err)
}

type scenarioBody struct {
	Name string `json:"name"`
}

func (s *Server) reset(c *gin.Context) {
	if err := s.sim.Reset(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) scenario(c *gin.Context) {
	c.JSON(http.StatusOK, envelope.OK(scenarioBody{Name: s.sim.Scenario()}))
}

func (s *Server) setScenario(c *gin.Context) {
	var body scenarioBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.sim.SetScenario(body.Name); err != nil {
		writeError(c, err)
		return
	}
	s.logger.Info("scenario changed", "scenario", s.sim.Scenario())
	c.JSON(http.StatusOK, envelope.OK(scenarioBody{Name: s.sim.Scenario()}))
}
