package controller

import (
	"errors"
	"net/http"

	"recon-engine/internal/model"
	"recon-engine/internal/repository"
	"recon-engine/internal/service"
	"recon-engine/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type ReconController struct {
	recon     service.ReconService
	stats     *service.StatsCollector
	validator *validator.Validate
}

func NewReconController(recon service.ReconService, stats *service.StatsCollector) *ReconController {
	return &ReconController{
		recon:     recon,
		stats:     stats,
		validator: validator.New(),
	}
}

// Run godoc
// @Summary Run reconciliation definitions
// @Description Parses natural-language reconciliation definitions against a knowledge graph, generates matched/unmatched SQL for the requested dialect and optionally executes it against the configured endpoints
// @Tags reconciliation
// @Accept json
// @Produce json
// @Param request body model.ReconRequest true "Reconciliation run request"
// @Success 200 {object} Response{data=model.ReconResponse}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/reconciliation/run [post]
func (rc *ReconController) Run(c *gin.Context) {
	var req model.ReconRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := utils.NewValidationError("Invalid request body", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}

	if err := rc.validator.Struct(&req); err != nil {
		appErr := utils.NewValidationError("Validation failed", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}

	result, err := rc.recon.Run(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDialect):
			sendError(c, http.StatusBadRequest, "INVALID_DIALECT", err.Error())
		case errors.Is(err, service.ErrNoDefinitions):
			sendError(c, http.StatusBadRequest, "NO_DEFINITIONS", err.Error())
		case errors.Is(err, service.ErrNoSourceEndpoint):
			sendError(c, http.StatusBadRequest, "NO_SOURCE_ENDPOINT", err.Error())
		case errors.Is(err, repository.ErrGraphNotFound):
			sendError(c, http.StatusNotFound, "GRAPH_NOT_FOUND", "Knowledge graph not found")
		case errors.Is(err, repository.ErrEndpointNotFound):
			sendError(c, http.StatusNotFound, "ENDPOINT_NOT_FOUND", err.Error())
		default:
			sendError(c, http.StatusInternalServerError, "RUN_FAILED", "Reconciliation run failed: "+err.Error())
		}
		return
	}

	sendData(c, http.StatusOK, result)
}

// GetStats godoc
// @Summary Get execution statistics
// @Description Returns aggregated query execution statistics across all endpoints
// @Tags reconciliation
// @Produce json
// @Success 200 {object} Response{data=service.StatsSummary}
// @Router /api/v1/reconciliation/stats [get]
func (rc *ReconController) GetStats(c *gin.Context) {
	sendData(c, http.StatusOK, rc.stats.Summary())
}

// GetEndpointStats godoc
// @Summary Get per-endpoint execution statistics
// @Description Returns query execution statistics for a single endpoint
// @Tags reconciliation
// @Produce json
// @Param id path string true "Endpoint UUID"
// @Success 200 {object} Response{data=service.EndpointStats}
// @Failure 404 {object} Response
// @Router /api/v1/reconciliation/stats/{id} [get]
func (rc *ReconController) GetEndpointStats(c *gin.Context) {
	id := c.Param("id")
	es, ok := rc.stats.EndpointStatsFor(id)
	if !ok {
		sendError(c, http.StatusNotFound, "STATS_NOT_FOUND", "No statistics recorded for endpoint")
		return
	}
	sendData(c, http.StatusOK, es)
}

// ResetEndpointStats godoc
// @Summary Reset per-endpoint execution statistics
// @Description Clears the recorded statistics for a single endpoint
// @Tags reconciliation
// @Produce json
// @Param id path string true "Endpoint UUID"
// @Success 200 {object} Response
// @Router /api/v1/reconciliation/stats/{id} [delete]
func (rc *ReconController) ResetEndpointStats(c *gin.Context) {
	rc.stats.Reset(c.Param("id"))
	sendMessage(c, http.StatusOK, "Endpoint statistics reset")
}

// GetSupportedDialects godoc
// @Summary List supported SQL dialects
// @Description Returns the SQL dialects reconciliation queries can be generated for
// @Tags reconciliation
// @Produce json
// @Success 200 {object} Response{data=[]string}
// @Router /api/v1/reconciliation/dialects [get]
func (rc *ReconController) GetSupportedDialects(c *gin.Context) {
	dialects := []model.Dialect{
		model.DialectMySQL,
		model.DialectMariaDB,
		model.DialectPostgreSQL,
		model.DialectOracle,
		model.DialectSQLServer,
	}
	sendData(c, http.StatusOK, dialects)
}
