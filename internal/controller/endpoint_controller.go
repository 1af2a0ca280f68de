package controller

import (
	"errors"
	"net/http"
	"strconv"

	"recon-engine/internal/database"
	"recon-engine/internal/model"
	"recon-engine/internal/repository"
	"recon-engine/internal/service"
	"recon-engine/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type EndpointController struct {
	service   service.EndpointService
	pool      *database.Pool
	checker   *database.HealthChecker
	validator *validator.Validate
}

// TestConfigRequest probes a connection configuration that has not been
// stored as an endpoint yet.
type TestConfigRequest struct {
	Type   model.DatabaseType   `json:"type" validate:"required"`
	Config model.EndpointConfig `json:"config" validate:"required"`
}

func NewEndpointController(service service.EndpointService, pool *database.Pool, checker *database.HealthChecker) *EndpointController {
	return &EndpointController{
		service:   service,
		pool:      pool,
		checker:   checker,
		validator: validator.New(),
	}
}

// CreateEndpoint godoc
// @Summary Create a new endpoint
// @Description Creates a new database endpoint for reconciliation query execution
// @Tags endpoints
// @Accept json
// @Produce json
// @Param request body service.CreateEndpointRequest true "Create endpoint request"
// @Success 201 {object} Response{data=model.Endpoint}
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Router /api/v1/endpoints [post]
func (ec *EndpointController) CreateEndpoint(c *gin.Context) {
	var req service.CreateEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := utils.NewValidationError("Invalid request body", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}

	if err := ec.validator.Struct(&req); err != nil {
		appErr := utils.NewValidationError("Validation failed", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}

	endpoint, err := ec.service.CreateEndpoint(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEndpointExists):
			sendError(c, http.StatusConflict, "ENDPOINT_EXISTS", "Endpoint with this name already exists")
		case errors.Is(err, repository.ErrInvalidDatabaseType):
			sendError(c, http.StatusBadRequest, "INVALID_TYPE", "Invalid database type. Supported types: mysql, mariadb, postgresql, oracle, sqlserver")
		default:
			sendError(c, http.StatusBadRequest, "CREATE_FAILED", err.Error())
		}
		return
	}

	sendData(c, http.StatusCreated, endpoint)
}

// GetEndpoint godoc
// @Summary Get an endpoint by ID
// @Description Retrieves an endpoint by its UUID
// @Tags endpoints
// @Produce json
// @Param id path string true "Endpoint UUID"
// @Success 200 {object} Response{data=model.Endpoint}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/endpoints/{id} [get]
func (ec *EndpointController) GetEndpoint(c *gin.Context) {
	endpoint, err := ec.service.GetEndpoint(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEndpointNotFound):
			sendError(c, http.StatusNotFound, "ENDPOINT_NOT_FOUND", "Endpoint not found")
		case errors.Is(err, repository.ErrInvalidUUID):
			sendError(c, http.StatusBadRequest, "INVALID_ID", "Invalid endpoint ID format")
		default:
			sendError(c, http.StatusInternalServerError, "GET_FAILED", "Failed to get endpoint")
		}
		return
	}

	sendData(c, http.StatusOK, endpoint)
}

// ListEndpoints godoc
// @Summary List endpoints
// @Description Retrieves a paginated list of endpoints with optional status filtering
// @Tags endpoints
// @Produce json
// @Param status query string false "Filter by status (active, inactive, error)"
// @Param limit query int false "Maximum number of items to return (default: 20, max: 100)"
// @Param offset query int false "Number of items to skip (default: 0)"
// @Success 200 {object} Response{data=service.ListEndpointsResponse}
// @Router /api/v1/endpoints [get]
func (ec *EndpointController) ListEndpoints(c *gin.Context) {
	req := &service.ListEndpointsRequest{}

	if statusStr := c.Query("status"); statusStr != "" {
		req.Status = model.EndpointStatus(statusStr)
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			req.Limit = limit
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			req.Offset = offset
		}
	}

	if err := ec.validator.Struct(req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	result, err := ec.service.ListEndpoints(c.Request.Context(), req)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list endpoints")
		return
	}

	sendData(c, http.StatusOK, result)
}

// UpdateEndpoint godoc
// @Summary Update an endpoint
// @Description Updates an existing endpoint's name, configuration or status
// @Tags endpoints
// @Accept json
// @Produce json
// @Param id path string true "Endpoint UUID"
// @Param request body service.UpdateEndpointRequest true "Update endpoint request"
// @Success 200 {object} Response{data=model.Endpoint}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/endpoints/{id} [put]
func (ec *EndpointController) UpdateEndpoint(c *gin.Context) {
	var req service.UpdateEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error())
		return
	}

	if err := ec.validator.Struct(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	endpoint, err := ec.service.UpdateEndpoint(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEndpointNotFound):
			sendError(c, http.StatusNotFound, "ENDPOINT_NOT_FOUND", "Endpoint not found")
		case errors.Is(err, repository.ErrInvalidUUID):
			sendError(c, http.StatusBadRequest, "INVALID_ID", "Invalid endpoint ID format")
		default:
			sendError(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update endpoint")
		}
		return
	}

	sendData(c, http.StatusOK, endpoint)
}

// DeleteEndpoint godoc
// @Summary Delete an endpoint
// @Description Deletes an endpoint and closes its pooled connections
// @Tags endpoints
// @Produce json
// @Param id path string true "Endpoint UUID"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/endpoints/{id} [delete]
func (ec *EndpointController) DeleteEndpoint(c *gin.Context) {
	err := ec.service.DeleteEndpoint(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEndpointNotFound):
			sendError(c, http.StatusNotFound, "ENDPOINT_NOT_FOUND", "Endpoint not found")
		case errors.Is(err, repository.ErrInvalidUUID):
			sendError(c, http.StatusBadRequest, "INVALID_ID", "Invalid endpoint ID format")
		default:
			sendError(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete endpoint")
		}
		return
	}

	sendMessage(c, http.StatusOK, "Endpoint deleted successfully")
}

// TestEndpoint godoc
// @Summary Test a stored endpoint
// @Description Tests connectivity of a stored endpoint and reports latency
// @Tags endpoints
// @Produce json
// @Param id path string true "Endpoint UUID"
// @Success 200 {object} Response{data=database.HealthCheckResult}
// @Failure 404 {object} Response
// @Failure 503 {object} Response
// @Router /api/v1/endpoints/{id}/test [post]
func (ec *EndpointController) TestEndpoint(c *gin.Context) {
	result, err := ec.service.TestEndpoint(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEndpointNotFound):
			sendError(c, http.StatusNotFound, "ENDPOINT_NOT_FOUND", "Endpoint not found")
		case errors.Is(err, repository.ErrInvalidUUID):
			sendError(c, http.StatusBadRequest, "INVALID_ID", "Invalid endpoint ID format")
		case errors.Is(err, repository.ErrConnectionFailed):
			sendError(c, http.StatusServiceUnavailable, "CONNECTION_FAILED", err.Error())
		default:
			sendError(c, http.StatusInternalServerError, "TEST_FAILED", "Failed to test endpoint")
		}
		return
	}

	sendData(c, http.StatusOK, result)
}

// TestConfig godoc
// @Summary Test a connection configuration
// @Description Tests connectivity for a configuration without storing it
// @Tags endpoints
// @Accept json
// @Produce json
// @Param request body TestConfigRequest true "Configuration to test"
// @Success 200 {object} Response{data=database.HealthCheckResult}
// @Failure 400 {object} Response
// @Router /api/v1/endpoints/test [post]
func (ec *EndpointController) TestConfig(c *gin.Context) {
	var req TestConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := utils.NewValidationError("Invalid request body", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}

	if !model.IsValidDatabaseType(string(req.Type)) {
		sendError(c, http.StatusBadRequest, "INVALID_TYPE", "Invalid database type. Supported types: mysql, mariadb, postgresql, oracle, sqlserver")
		return
	}

	result, err := ec.service.TestConfig(c.Request.Context(), req.Type, &req.Config)
	if err != nil {
		sendError(c, http.StatusBadRequest, "TEST_FAILED", err.Error())
		return
	}

	sendData(c, http.StatusOK, result)
}

// ValidateConfig godoc
// @Summary Validate a connection configuration
// @Description Validates an endpoint configuration without opening a connection
// @Tags endpoints
// @Accept json
// @Produce json
// @Param request body TestConfigRequest true "Configuration to validate"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Router /api/v1/endpoints/validate [post]
func (ec *EndpointController) ValidateConfig(c *gin.Context) {
	var req TestConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := utils.NewValidationError("Invalid request body", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}

	if !model.IsValidDatabaseType(string(req.Type)) {
		sendError(c, http.StatusBadRequest, "INVALID_TYPE", "Invalid database type. Supported types: mysql, mariadb, postgresql, oracle, sqlserver")
		return
	}

	if err := ec.checker.ValidateConfig(&req.Config, req.Type); err != nil {
		sendData(c, http.StatusOK, map[string]interface{}{
			"valid":  false,
			"errors": []string{err.Error()},
		})
		return
	}

	sendData(c, http.StatusOK, map[string]interface{}{"valid": true})
}

// GetDrivers godoc
// @Summary List supported database drivers
// @Description Returns the registered database drivers with their default ports
// @Tags endpoints
// @Produce json
// @Success 200 {object} Response{data=[]database.DriverInfo}
// @Router /api/v1/endpoints/drivers [get]
func (ec *EndpointController) GetDrivers(c *gin.Context) {
	sendData(c, http.StatusOK, ec.checker.GetDriverInfo())
}

// GetConnectionStats godoc
// @Summary Get connection pool statistics
// @Description Returns connection pool statistics for every pooled endpoint
// @Tags endpoints
// @Produce json
// @Success 200 {object} Response{data=map[string]database.ConnectionStats}
// @Router /api/v1/endpoints/connections/stats [get]
func (ec *EndpointController) GetConnectionStats(c *gin.Context) {
	sendData(c, http.StatusOK, ec.pool.GetStats())
}

// GetHealthSummary godoc
// @Summary Get endpoint health summary
// @Description Pings every pooled endpoint and aggregates the outcome
// @Tags endpoints
// @Produce json
// @Success 200 {object} Response{data=database.HealthSummary}
// @Router /api/v1/endpoints/health [get]
func (ec *EndpointController) GetHealthSummary(c *gin.Context) {
	sendData(c, http.StatusOK, ec.checker.Summary(c.Request.Context()))
}
