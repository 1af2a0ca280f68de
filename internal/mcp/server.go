package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"recon-engine/internal/model"
	"recon-engine/internal/service"
)

// MCPServer exposes the reconciliation engine to LLM clients over the
// Model Context Protocol.
type MCPServer struct {
	graphs    service.GraphService
	endpoints service.EndpointService
	recon     service.ReconService
	server    *server.MCPServer
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(graphs service.GraphService, endpoints service.EndpointService, recon service.ReconService) *MCPServer {
	s := server.NewMCPServer(
		"Recon-Engine MCP Server",
		"1.0.0",
	)

	mcpServer := &MCPServer{
		graphs:    graphs,
		endpoints: endpoints,
		recon:     recon,
		server:    s,
	}

	mcpServer.registerTools()

	return mcpServer
}

// registerTools registers all available tools with the MCP server
func (m *MCPServer) registerTools() {
	runReconciliationTool := mcp.NewTool("run_reconciliation",
		mcp.WithDescription("Parse a natural-language reconciliation definition against a knowledge graph, generate matched/unmatched SQL and optionally execute it"),
		mcp.WithString("kg_name", mcp.Required(), mcp.Description("Name of the knowledge graph to reconcile against")),
		mcp.WithString("definition", mcp.Required(), mcp.Description("Natural-language reconciliation definition, e.g. 'Material in RBP but not in OPS Excel'")),
		mcp.WithString("dialect", mcp.Required(), mcp.Description("SQL dialect to generate (mysql, mariadb, postgresql, oracle, sqlserver)")),
		mcp.WithBoolean("execute", mcp.Description("Execute the generated queries against the configured endpoints, default false")),
		mcp.WithBoolean("use_llm", mcp.Description("Use the LLM intent parser, default false falls back to keyword parsing")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of example records to return per query, default 1000")),
		mcp.WithString("source_endpoint", mcp.Description("Endpoint name or ID to run source-side queries against")),
		mcp.WithString("target_endpoint", mcp.Description("Endpoint name or ID to run target-side queries against")),
		mcp.WithString("schemas", mcp.Description("Comma-separated schema hints for table qualification")))
	m.server.AddTool(runReconciliationTool, m.handleRunReconciliation)

	generateSQLTool := mcp.NewTool("generate_sql",
		mcp.WithDescription("Generate matched/unmatched reconciliation SQL for a definition without executing it"),
		mcp.WithString("kg_name", mcp.Required(), mcp.Description("Name of the knowledge graph to reconcile against")),
		mcp.WithString("definition", mcp.Required(), mcp.Description("Natural-language reconciliation definition")),
		mcp.WithString("dialect", mcp.Required(), mcp.Description("SQL dialect to generate (mysql, mariadb, postgresql, oracle, sqlserver)")),
		mcp.WithBoolean("use_llm", mcp.Description("Use the LLM intent parser, default false")),
		mcp.WithNumber("limit", mcp.Description("Row limit applied to the generated queries, default 1000")))
	m.server.AddTool(generateSQLTool, m.handleGenerateSQL)

	listGraphsTool := mcp.NewTool("list_graphs",
		mcp.WithDescription("List all configured knowledge graphs with their table and relationship counts"))
	m.server.AddTool(listGraphsTool, m.handleListGraphs)

	resolveAliasTool := mcp.NewTool("resolve_alias",
		mcp.WithDescription("Resolve a free-text table mention to a canonical table of a knowledge graph"),
		mcp.WithString("kg_name", mcp.Required(), mcp.Description("Name of the knowledge graph")),
		mcp.WithString("term", mcp.Required(), mcp.Description("Table mention to resolve, e.g. 'ops excel'")))
	m.server.AddTool(resolveAliasTool, m.handleResolveAlias)

	findJoinPathTool := mcp.NewTool("find_join_path",
		mcp.WithDescription("Find the join path between two tables of a knowledge graph"),
		mcp.WithString("kg_name", mcp.Required(), mcp.Description("Name of the knowledge graph")),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source table name or alias")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target table name or alias")))
	m.server.AddTool(findJoinPathTool, m.handleFindJoinPath)

	listEndpointsTool := mcp.NewTool("list_endpoints",
		mcp.WithDescription("List all configured reconciliation endpoints"))
	m.server.AddTool(listEndpointsTool, m.handleListEndpoints)

	listDialectsTool := mcp.NewTool("list_supported_dialects",
		mcp.WithDescription("List all SQL dialects reconciliation queries can be generated for"))
	m.server.AddTool(listDialectsTool, m.handleListSupportedDialects)
}

// handleRunReconciliation handles the run_reconciliation tool call
func (m *MCPServer) handleRunReconciliation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := &model.ReconRequest{
		KGName:         mcp.ParseString(request, "kg_name", ""),
		Definitions:    []string{mcp.ParseString(request, "definition", "")},
		Dialect:        mcp.ParseString(request, "dialect", string(model.DialectMySQL)),
		Execute:        mcp.ParseBoolean(request, "execute", false),
		UseLLM:         mcp.ParseBoolean(request, "use_llm", false),
		Limit:          int(mcp.ParseInt(request, "limit", 0)),
		SourceEndpoint: mcp.ParseString(request, "source_endpoint", ""),
		TargetEndpoint: mcp.ParseString(request, "target_endpoint", ""),
	}
	if schemas := mcp.ParseString(request, "schemas", ""); schemas != "" {
		for _, s := range strings.Split(schemas, ",") {
			if s = strings.TrimSpace(s); s != "" {
				req.Schemas = append(req.Schemas, s)
			}
		}
	}

	result, err := m.recon.Run(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("reconciliation run failed: %w", err)
	}

	jsonResp, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(jsonResp)),
		},
	}, nil
}

// handleGenerateSQL handles the generate_sql tool call
func (m *MCPServer) handleGenerateSQL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := &model.ReconRequest{
		KGName:      mcp.ParseString(request, "kg_name", ""),
		Definitions: []string{mcp.ParseString(request, "definition", "")},
		Dialect:     mcp.ParseString(request, "dialect", string(model.DialectMySQL)),
		UseLLM:      mcp.ParseBoolean(request, "use_llm", false),
		Limit:       int(mcp.ParseInt(request, "limit", 0)),
		Execute:     false,
	}

	result, err := m.recon.Run(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("SQL generation failed: %w", err)
	}
	if len(result.Results) == 0 {
		return nil, fmt.Errorf("no result produced for definition")
	}

	dr := result.Results[0]
	response := map[string]interface{}{
		"definition":   dr.Definition,
		"operation":    dr.Operation,
		"source_table": dr.SourceTable,
		"target_table": dr.TargetTable,
		"join_columns": dr.JoinColumns,
		"confidence":   dr.Confidence,
		"degraded":     dr.Degraded,
		"dialect":      result.Dialect,
		"sql":          dr.SQL,
	}
	if dr.Error != "" {
		response["error"] = dr.Error
	}

	jsonResp, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(jsonResp)),
		},
	}, nil
}

// handleListGraphs handles the list_graphs tool call
func (m *MCPServer) handleListGraphs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphs, err := m.graphs.ListGraphs(ctx, 100, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge graphs: %w", err)
	}

	var result []map[string]interface{}
	for _, kg := range graphs.Graphs {
		result = append(result, map[string]interface{}{
			"name":          kg.Name,
			"description":   kg.Description,
			"tables":        len(kg.Tables),
			"relationships": len(kg.Relationships),
			"version":       kg.Version,
			"updated_at":    kg.UpdatedAt,
		})
	}

	response := map[string]interface{}{
		"graphs": result,
		"count":  len(result),
	}

	jsonResp, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(jsonResp)),
		},
	}, nil
}

// handleResolveAlias handles the resolve_alias tool call
func (m *MCPServer) handleResolveAlias(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kgName := mcp.ParseString(request, "kg_name", "")
	term := mcp.ParseString(request, "term", "")

	match, err := m.graphs.ResolveAlias(ctx, kgName, term)
	if err != nil {
		response := map[string]interface{}{
			"matched": false,
			"term":    term,
			"error":   err.Error(),
		}
		jsonResp, jErr := json.Marshal(response)
		if jErr != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", jErr)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(string(jsonResp)),
			},
		}, nil
	}

	response := map[string]interface{}{
		"matched": true,
		"term":    term,
		"table":   match.Table,
		"score":   match.Score,
	}

	jsonResp, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(jsonResp)),
		},
	}, nil
}

// handleFindJoinPath handles the find_join_path tool call
func (m *MCPServer) handleFindJoinPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kgName := mcp.ParseString(request, "kg_name", "")
	from := mcp.ParseString(request, "from", "")
	to := mcp.ParseString(request, "to", "")

	path, err := m.graphs.FindJoinPath(ctx, kgName, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to find join path: %w", err)
	}

	jsonResp, err := json.Marshal(path)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(jsonResp)),
		},
	}, nil
}

// handleListEndpoints handles the list_endpoints tool call
func (m *MCPServer) handleListEndpoints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	endpoints, err := m.endpoints.ListEndpoints(ctx, &service.ListEndpointsRequest{Limit: 100})
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}

	var result []map[string]interface{}
	for _, ep := range endpoints.Endpoints {
		result = append(result, map[string]interface{}{
			"id":         ep.ID,
			"name":       ep.Name,
			"type":       ep.Type,
			"status":     ep.Status,
			"host":       ep.Config.Host,
			"port":       ep.Config.Port,
			"database":   ep.Config.Database,
			"created_at": ep.CreatedAt,
			"updated_at": ep.UpdatedAt,
		})
	}

	response := map[string]interface{}{
		"endpoints": result,
		"count":     len(result),
	}

	jsonResp, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(jsonResp)),
		},
	}, nil
}

// handleListSupportedDialects handles the list_supported_dialects tool call
func (m *MCPServer) handleListSupportedDialects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dialects := []model.Dialect{
		model.DialectMySQL,
		model.DialectMariaDB,
		model.DialectPostgreSQL,
		model.DialectOracle,
		model.DialectSQLServer,
	}

	response := map[string]interface{}{
		"supported_dialects": dialects,
		"count":              len(dialects),
	}

	jsonResp, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(jsonResp)),
		},
	}, nil
}

// StartStdio starts the MCP server using stdio transport
func (m *MCPServer) StartStdio() error {
	return server.ServeStdio(m.server)
}
