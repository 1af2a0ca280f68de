package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"recon-engine/internal/alias"
	"recon-engine/internal/config"
	"recon-engine/internal/database"
	"recon-engine/internal/database/metadata"
	"recon-engine/internal/graph"
	"recon-engine/internal/intent"
	"recon-engine/internal/llm"
	"recon-engine/internal/logging"
	"recon-engine/internal/mcp"
	"recon-engine/internal/model"
	"recon-engine/internal/repository"
	"recon-engine/internal/security"
	"recon-engine/internal/service"
	"recon-engine/internal/sqlgen"
)

var (
	graphFile      string
	graphName      string
	definitions    []string
	dialect        string
	useLLM         bool
	limit          int
	schemas        []string
	sourceEndpoint string
	targetEndpoint string
)

func main() {
	// Pick up RECON_* settings from a local .env when present
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "reconcli",
		Short: "Natural-language reconciliation query engine",
		Long:  "Parses natural-language reconciliation definitions against a knowledge graph and generates or executes matched/unmatched SQL",
	}

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate reconciliation SQL offline from a graph file",
		Run:   runPlan,
	}
	planCmd.Flags().StringVar(&graphFile, "graph-file", "", "Path to a knowledge graph JSON file")
	planCmd.Flags().StringArrayVar(&definitions, "definition", nil, "Natural-language reconciliation definition (repeatable)")
	planCmd.Flags().StringVar(&dialect, "dialect", "mysql", "SQL dialect (mysql, mariadb, postgresql, oracle, sqlserver)")
	planCmd.Flags().BoolVar(&useLLM, "llm", false, "Parse definitions with the configured LLM provider")
	planCmd.Flags().IntVar(&limit, "limit", 1000, "Row limit applied to generated queries")
	planCmd.Flags().StringArrayVar(&schemas, "schema", nil, "Free-text schema hint for the LLM (repeatable)")
	planCmd.MarkFlagRequired("graph-file")
	planCmd.MarkFlagRequired("definition")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run reconciliation definitions against the configured endpoints",
		Run:   runRun,
	}
	runCmd.Flags().StringVar(&graphName, "graph", "", "Knowledge graph name in the metadata store")
	runCmd.Flags().StringArrayVar(&definitions, "definition", nil, "Natural-language reconciliation definition (repeatable)")
	runCmd.Flags().StringVar(&dialect, "dialect", "mysql", "SQL dialect (mysql, mariadb, postgresql, oracle, sqlserver)")
	runCmd.Flags().BoolVar(&useLLM, "llm", false, "Parse definitions with the configured LLM provider")
	runCmd.Flags().IntVar(&limit, "limit", 1000, "Maximum number of example records per query")
	runCmd.Flags().StringArrayVar(&schemas, "schema", nil, "Free-text schema hint for the LLM (repeatable)")
	runCmd.Flags().StringVar(&sourceEndpoint, "source-endpoint", "", "Endpoint name or ID for source-side queries")
	runCmd.Flags().StringVar(&targetEndpoint, "target-endpoint", "", "Endpoint name or ID for target-side queries")
	runCmd.MarkFlagRequired("graph")
	runCmd.MarkFlagRequired("definition")

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve reconciliation tools over MCP stdio",
		Run:   runMCP,
	}

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(mcpCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// runPlan parses and generates SQL entirely offline. Nothing is executed
// and no database is touched.
func runPlan(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logging.Configure(logging.Options{Level: cfg.Logging.Level, Pretty: true})

	data, err := os.ReadFile(graphFile)
	if err != nil {
		log.Fatalf("failed to read graph file: %v", err)
	}
	var kg model.KnowledgeGraph
	if err := json.Unmarshal(data, &kg); err != nil {
		log.Fatalf("failed to parse graph file: %v", err)
	}

	d, ok := model.NormalizeDialect(dialect)
	if !ok {
		log.Fatalf("unsupported dialect %q", dialect)
	}

	snap := graph.NewSnapshot(&kg)
	resolver := alias.NewResolver(snap)
	parser := intent.NewParser(buildProvider(cfg), time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)

	ctx := context.Background()
	results := make([]*model.DefinitionResult, 0, len(definitions))
	for _, def := range definitions {
		results = append(results, planDefinition(ctx, snap, resolver, parser, def, d))
	}

	printJSON(map[string]interface{}{
		"kg_name": kg.Name,
		"dialect": string(d),
		"results": results,
	})
}

// planDefinition mirrors the server's planning pipeline: resolve, parse,
// find the join path, generate the SQL bundle.
func planDefinition(ctx context.Context, snap *graph.Snapshot, resolver *alias.Resolver, parser *intent.Parser, definition string, d model.Dialect) *model.DefinitionResult {
	parsed := parser.Parse(ctx, intent.Request{
		Definition:  definition,
		Snapshot:    snap,
		Resolver:    resolver,
		SchemaHints: schemas,
		UseLLM:      useLLM,
	})

	res := &model.DefinitionResult{
		Definition:  definition,
		QueryType:   parsed.QueryType,
		Operation:   parsed.Operation,
		SourceTable: parsed.SourceTable,
		TargetTable: parsed.TargetTable,
		Confidence:  parsed.Confidence,
		Degraded:    parsed.Degraded,
		Warnings:    parsed.Warnings,
	}
	if parsed.SourceTable == "" {
		res.Error = "no source table recognized in definition"
		return res
	}

	var basePath *graph.Path
	if parsed.TargetTable != "" {
		p, err := graph.FindPath(snap, parsed.SourceTable, parsed.TargetTable)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		basePath = p
		res.JoinColumns = p.JoinColumns()
	}

	// Columns owned by a third table need their own join path; drop the
	// unreachable ones instead of failing the whole definition.
	kept := parsed.AdditionalColumns[:0]
	for _, ac := range parsed.AdditionalColumns {
		owner := ac.OwningTable
		if owner == "" || owner == parsed.SourceTable || owner == parsed.TargetTable {
			kept = append(kept, ac)
			continue
		}
		p, err := graph.FindPath(snap, parsed.SourceTable, owner)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("column %s.%s dropped: %v", owner, ac.Column, err))
			continue
		}
		ac.JoinPath = p
		kept = append(kept, ac)
	}
	parsed.AdditionalColumns = kept

	bundle, err := sqlgen.Generate(snap, sqlgen.Input{
		Intent:   parsed,
		BasePath: basePath,
		Dialect:  d,
		Limit:    limit,
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.SQL = bundle
	return res
}

// runRun executes definitions through the full service stack.
func runRun(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logging.Configure(logging.Options{Level: cfg.Logging.Level, Pretty: true})

	deps, cleanup, err := buildServices(cfg)
	if err != nil {
		log.Fatalf("failed to initialize services: %v", err)
	}
	defer cleanup()

	result, err := deps.recon.Run(context.Background(), &model.ReconRequest{
		KGName:         graphName,
		Schemas:        schemas,
		Definitions:    definitions,
		Dialect:        dialect,
		Limit:          limit,
		UseLLM:         useLLM,
		Execute:        true,
		SourceEndpoint: sourceEndpoint,
		TargetEndpoint: targetEndpoint,
	})
	if err != nil {
		log.Fatalf("reconciliation run failed: %v", err)
	}

	printJSON(result)
}

// runMCP serves the MCP tools over stdio. Logs go to stderr so the
// protocol stream stays clean.
func runMCP(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logging.Configure(logging.Options{Level: cfg.Logging.Level})

	deps, cleanup, err := buildServices(cfg)
	if err != nil {
		log.Fatalf("failed to initialize services: %v", err)
	}
	defer cleanup()

	srv := mcp.NewMCPServer(deps.graphs, deps.endpoints, deps.recon)
	if err := srv.StartStdio(); err != nil {
		log.Fatalf("MCP server failed: %v", err)
	}
}

type serviceDeps struct {
	graphs    service.GraphService
	endpoints service.EndpointService
	recon     service.ReconService
}

// buildServices wires the metadata store, pool and services the same way
// the HTTP server does.
func buildServices(cfg *config.Config) (*serviceDeps, func(), error) {
	db, err := config.InitDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}

	var vault *security.CredentialVault
	if cfg.Security.VaultKey != "" {
		vault, err = security.NewCredentialVault([]byte(cfg.Security.VaultKey))
		if err != nil {
			return nil, nil, err
		}
	}

	registry := database.NewRegistry()
	pool := database.NewPool(registry)
	checker := database.NewHealthChecker(pool, registry)

	aliasCache := alias.NewCache()
	schemaCache := metadata.NewSchemaCache(cfg.Recon.SchemaCacheTTL)

	parser := intent.NewParser(buildProvider(cfg), time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)
	sqlValidator := security.NewSQLValidator(cfg.Recon.MaxQueryLength)
	executor := service.NewExecutor(pool, sqlValidator, service.NewStatsCollector(),
		time.Duration(cfg.Recon.QueryTimeoutSeconds)*time.Second)

	endpoints := service.NewEndpointService(repository.NewEndpointRepository(db), pool, checker, vault)
	graphs := service.NewGraphService(repository.NewGraphRepository(db), aliasCache, metadata.NewExtractor(pool), schemaCache, endpoints)
	recon := service.NewReconService(graphs, endpoints, parser, executor, service.ReconConfig{
		DefaultSourceEndpoint: cfg.Endpoints.DefaultSource,
		DefaultTargetEndpoint: cfg.Endpoints.DefaultTarget,
		Concurrency:           cfg.Recon.Concurrency,
	})

	cleanup := func() {
		if err := pool.CloseAll(); err != nil {
			logging.Default().Error().Err(err).Msg("failed to close endpoint pools")
		}
	}
	return &serviceDeps{graphs: graphs, endpoints: endpoints, recon: recon}, cleanup, nil
}

func buildProvider(cfg *config.Config) llm.Provider {
	if cfg.LLM.Provider == "" {
		return nil
	}
	provider, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		logging.Default().Warn().Err(err).Msg("LLM provider unavailable, using keyword fallback")
		return nil
	}
	return provider
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal output: %v", err)
	}
	fmt.Println(string(out))
}
