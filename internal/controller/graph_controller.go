package controller

import (
	"errors"
	"net/http"
	"strconv"

	"recon-engine/internal/alias"
	"recon-engine/internal/graph"
	"recon-engine/internal/repository"
	"recon-engine/internal/service"
	"recon-engine/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type GraphController struct {
	service   service.GraphService
	validator *validator.Validate
}

func NewGraphController(service service.GraphService) *GraphController {
	return &GraphController{
		service:   service,
		validator: validator.New(),
	}
}

// CreateGraph godoc
// @Summary Create a knowledge graph
// @Description Creates a new knowledge graph with optional initial tables and relationships
// @Tags graphs
// @Accept json
// @Produce json
// @Param request body service.CreateGraphRequest true "Create graph request"
// @Success 201 {object} Response{data=model.KnowledgeGraph}
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Router /api/v1/graphs [post]
func (gc *GraphController) CreateGraph(c *gin.Context) {
	var req service.CreateGraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := utils.NewValidationError("Invalid request body", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}

	if err := gc.validator.Struct(&req); err != nil {
		appErr := utils.NewValidationError("Validation failed", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}

	kg, err := gc.service.CreateGraph(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, repository.ErrGraphExists) {
			sendError(c, http.StatusConflict, "GRAPH_EXISTS", "Knowledge graph with this name already exists")
			return
		}
		sendError(c, http.StatusBadRequest, "CREATE_FAILED", err.Error())
		return
	}

	sendData(c, http.StatusCreated, kg)
}

// ListGraphs godoc
// @Summary List knowledge graphs
// @Description Retrieves a paginated list of knowledge graphs
// @Tags graphs
// @Produce json
// @Param limit query int false "Maximum number of items to return (default: 20, max: 100)"
// @Param offset query int false "Number of items to skip (default: 0)"
// @Success 200 {object} Response{data=service.ListGraphsResponse}
// @Router /api/v1/graphs [get]
func (gc *GraphController) ListGraphs(c *gin.Context) {
	limit := 0
	offset := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil {
			limit = v
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if v, err := strconv.Atoi(offsetStr); err == nil {
			offset = v
		}
	}

	result, err := gc.service.ListGraphs(c.Request.Context(), limit, offset)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list knowledge graphs")
		return
	}

	sendData(c, http.StatusOK, result)
}

// GetGraph godoc
// @Summary Get a knowledge graph by name
// @Description Retrieves a knowledge graph with its tables and relationships
// @Tags graphs
// @Produce json
// @Param name path string true "Graph name"
// @Success 200 {object} Response{data=model.KnowledgeGraph}
// @Failure 404 {object} Response
// @Router /api/v1/graphs/{name} [get]
func (gc *GraphController) GetGraph(c *gin.Context) {
	kg, err := gc.service.GetGraph(c.Request.Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, repository.ErrGraphNotFound) {
			sendError(c, http.StatusNotFound, "GRAPH_NOT_FOUND", "Knowledge graph not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "GET_FAILED", "Failed to get knowledge graph")
		return
	}

	sendData(c, http.StatusOK, kg)
}

// DeleteGraph godoc
// @Summary Delete a knowledge graph
// @Description Deletes a knowledge graph and all its tables and relationships
// @Tags graphs
// @Produce json
// @Param name path string true "Graph name"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/graphs/{name} [delete]
func (gc *GraphController) DeleteGraph(c *gin.Context) {
	if err := gc.service.DeleteGraph(c.Request.Context(), c.Param("name")); err != nil {
		if errors.Is(err, repository.ErrGraphNotFound) {
			sendError(c, http.StatusNotFound, "GRAPH_NOT_FOUND", "Knowledge graph not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete knowledge graph")
		return
	}

	sendMessage(c, http.StatusOK, "Knowledge graph deleted successfully")
}

// AddTable godoc
// @Summary Add a table to a knowledge graph
// @Description Adds a table definition with its columns and aliases to a knowledge graph
// @Tags graphs
// @Accept json
// @Produce json
// @Param name path string true "Graph name"
// @Param request body service.TableRequest true "Table definition"
// @Success 200 {object} Response{data=model.KnowledgeGraph}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/graphs/{name}/tables [post]
func (gc *GraphController) AddTable(c *gin.Context) {
	var req service.TableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := utils.NewValidationError("Invalid request body", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}

	if err := gc.validator.Struct(&req); err != nil {
		appErr := utils.NewValidationError("Validation failed", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}

	kg, err := gc.service.AddTable(c.Request.Context(), c.Param("name"), &req)
	if err != nil {
		if errors.Is(err, repository.ErrGraphNotFound) {
			sendError(c, http.StatusNotFound, "GRAPH_NOT_FOUND", "Knowledge graph not found")
			return
		}
		sendError(c, http.StatusBadRequest, "ADD_TABLE_FAILED", err.Error())
		return
	}

	sendData(c, http.StatusOK, kg)
}

// DeleteTable godoc
// @Summary Remove a table from a knowledge graph
// @Description Removes a table and every relationship touching it
// @Tags graphs
// @Produce json
// @Param name path string true "Graph name"
// @Param table path string true "Table name"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/graphs/{name}/tables/{table} [delete]
func (gc *GraphController) DeleteTable(c *gin.Context) {
	err := gc.service.DeleteTable(c.Request.Context(), c.Param("name"), c.Param("table"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrGraphNotFound):
			sendError(c, http.StatusNotFound, "GRAPH_NOT_FOUND", "Knowledge graph not found")
		case errors.Is(err, repository.ErrTableNotFound):
			sendError(c, http.StatusNotFound, "TABLE_NOT_FOUND", "Table not found in graph")
		default:
			sendError(c, http.StatusInternalServerError, "DELETE_TABLE_FAILED", "Failed to delete table")
		}
		return
	}

	sendMessage(c, http.StatusOK, "Table deleted successfully")
}

// AddRelationship godoc
// @Summary Add a relationship to a knowledge graph
// @Description Adds a join relationship between two tables already present in the graph
// @Tags graphs
// @Accept json
// @Produce json
// @Param name path string true "Graph name"
// @Param request body service.RelationshipRequest true "Relationship definition"
// @Success 200 {object} Response{data=model.KnowledgeGraph}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/graphs/{name}/relationships [post]
func (gc *GraphController) AddRelationship(c *gin.Context) {
	var req service.RelationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := utils.NewValidationError("Invalid request body", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}

	if err := gc.validator.Struct(&req); err != nil {
		appErr := utils.NewValidationError("Validation failed", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}

	kg, err := gc.service.AddRelationship(c.Request.Context(), c.Param("name"), &req)
	if err != nil {
		if errors.Is(err, repository.ErrGraphNotFound) {
			sendError(c, http.StatusNotFound, "GRAPH_NOT_FOUND", "Knowledge graph not found")
			return
		}
		sendError(c, http.StatusBadRequest, "ADD_RELATIONSHIP_FAILED", err.Error())
		return
	}

	sendData(c, http.StatusOK, kg)
}

// DeleteRelationship godoc
// @Summary Remove a relationship from a knowledge graph
// @Description Removes a single relationship by its UUID
// @Tags graphs
// @Produce json
// @Param name path string true "Graph name"
// @Param id path string true "Relationship UUID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/graphs/{name}/relationships/{id} [delete]
func (gc *GraphController) DeleteRelationship(c *gin.Context) {
	err := gc.service.DeleteRelationship(c.Request.Context(), c.Param("name"), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrGraphNotFound):
			sendError(c, http.StatusNotFound, "GRAPH_NOT_FOUND", "Knowledge graph not found")
		case errors.Is(err, repository.ErrRelationshipNotFound):
			sendError(c, http.StatusNotFound, "RELATIONSHIP_NOT_FOUND", "Relationship not found in graph")
		default:
			sendError(c, http.StatusInternalServerError, "DELETE_RELATIONSHIP_FAILED", "Failed to delete relationship")
		}
		return
	}

	sendMessage(c, http.StatusOK, "Relationship deleted successfully")
}

// ResolveRequest probes alias resolution for a single table mention.
type ResolveRequest struct {
	Term string `json:"term" validate:"required,min=1"`
}

// ResolveAlias godoc
// @Summary Resolve a table mention
// @Description Resolves a free-text table mention against the graph's tables and aliases
// @Tags graphs
// @Accept json
// @Produce json
// @Param name path string true "Graph name"
// @Param request body ResolveRequest true "Mention to resolve"
// @Success 200 {object} Response{data=alias.Match}
// @Failure 404 {object} Response
// @Failure 422 {object} Response
// @Router /api/v1/graphs/{name}/resolve [post]
func (gc *GraphController) ResolveAlias(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := utils.NewValidationError("Invalid request body", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}
	if err := gc.validator.Struct(&req); err != nil {
		appErr := utils.NewValidationError("Validation failed", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}

	match, err := gc.service.ResolveAlias(c.Request.Context(), c.Param("name"), req.Term)
	if err != nil {
		var noMatch *alias.NoMatchError
		var ambiguous *alias.AmbiguousMatchError
		switch {
		case errors.Is(err, repository.ErrGraphNotFound):
			sendError(c, http.StatusNotFound, "GRAPH_NOT_FOUND", "Knowledge graph not found")
		case errors.As(err, &noMatch):
			sendError(c, http.StatusUnprocessableEntity, "ALIAS_NO_MATCH", noMatch.Error())
		case errors.As(err, &ambiguous):
			sendError(c, http.StatusUnprocessableEntity, "ALIAS_AMBIGUOUS", ambiguous.Error())
		default:
			sendError(c, http.StatusInternalServerError, "RESOLVE_FAILED", "Failed to resolve alias")
		}
		return
	}

	sendData(c, http.StatusOK, match)
}

// FindPath godoc
// @Summary Find a join path between two tables
// @Description Finds the shortest join path between two tables, resolving free-text mentions first
// @Tags graphs
// @Produce json
// @Param name path string true "Graph name"
// @Param from query string true "Source table or alias"
// @Param to query string true "Target table or alias"
// @Success 200 {object} Response{data=graph.Path}
// @Failure 404 {object} Response
// @Failure 422 {object} Response
// @Router /api/v1/graphs/{name}/path [get]
func (gc *GraphController) FindPath(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")
	if from == "" || to == "" {
		sendError(c, http.StatusBadRequest, "MISSING_TABLES", "Query parameters 'from' and 'to' are required")
		return
	}

	path, err := gc.service.FindJoinPath(c.Request.Context(), c.Param("name"), from, to)
	if err != nil {
		var noMatch *alias.NoMatchError
		var ambiguous *alias.AmbiguousMatchError
		var noPath *graph.NoPathError
		switch {
		case errors.Is(err, repository.ErrGraphNotFound):
			sendError(c, http.StatusNotFound, "GRAPH_NOT_FOUND", "Knowledge graph not found")
		case errors.As(err, &noMatch):
			sendError(c, http.StatusUnprocessableEntity, "ALIAS_NO_MATCH", noMatch.Error())
		case errors.As(err, &ambiguous):
			sendError(c, http.StatusUnprocessableEntity, "ALIAS_AMBIGUOUS", ambiguous.Error())
		case errors.As(err, &noPath):
			sendError(c, http.StatusUnprocessableEntity, "NO_JOIN_PATH", noPath.Error())
		default:
			sendError(c, http.StatusInternalServerError, "PATH_FAILED", "Failed to find join path")
		}
		return
	}

	sendData(c, http.StatusOK, path)
}

// ImportSchema godoc
// @Summary Import tables from an endpoint
// @Description Reads the endpoint's catalog and merges its tables, columns and foreign keys into the graph
// @Tags graphs
// @Accept json
// @Produce json
// @Param name path string true "Graph name"
// @Param request body service.ImportRequest true "Import request"
// @Success 200 {object} Response{data=service.ImportResult}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/graphs/{name}/import [post]
func (gc *GraphController) ImportSchema(c *gin.Context) {
	var req service.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := utils.NewValidationError("Invalid request body", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}

	if err := gc.validator.Struct(&req); err != nil {
		appErr := utils.NewValidationError("Validation failed", err.Error())
		sendError(c, utils.GetErrorStatus(appErr), appErr.Code, appErr.Message)
		return
	}

	result, err := gc.service.ImportFromEndpoint(c.Request.Context(), c.Param("name"), &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrGraphNotFound):
			sendError(c, http.StatusNotFound, "GRAPH_NOT_FOUND", "Knowledge graph not found")
		case errors.Is(err, repository.ErrEndpointNotFound):
			sendError(c, http.StatusNotFound, "ENDPOINT_NOT_FOUND", "Endpoint not found")
		default:
			sendError(c, http.StatusBadRequest, "IMPORT_FAILED", err.Error())
		}
		return
	}

	sendData(c, http.StatusOK, result)
}

// SuggestRelationships godoc
// @Summary Suggest candidate relationships
// @Description Scores column pairs across the graph's tables and returns candidate join relationships
// @Tags graphs
// @Produce json
// @Param name path string true "Graph name"
// @Success 200 {object} Response{data=[]service.RelationshipSuggestion}
// @Failure 404 {object} Response
// @Router /api/v1/graphs/{name}/suggest-relationships [post]
func (gc *GraphController) SuggestRelationships(c *gin.Context) {
	suggestions, err := gc.service.SuggestRelationships(c.Request.Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, repository.ErrGraphNotFound) {
			sendError(c, http.StatusNotFound, "GRAPH_NOT_FOUND", "Knowledge graph not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "SUGGEST_FAILED", "Failed to compute relationship suggestions")
		return
	}

	sendData(c, http.StatusOK, suggestions)
}
