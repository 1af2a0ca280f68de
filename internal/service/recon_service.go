package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"recon-engine/internal/alias"
	"recon-engine/internal/graph"
	"recon-engine/internal/intent"
	"recon-engine/internal/kpi"
	"recon-engine/internal/logging"
	"recon-engine/internal/middleware"
	"recon-engine/internal/model"
	"recon-engine/internal/sqlgen"
)

const (
	defaultRecordLimit    = 1000
	maxRecordLimit        = 10000
	defaultRunConcurrency = 4
)

var (
	ErrInvalidDialect   = errors.New("unsupported SQL dialect")
	ErrNoDefinitions    = errors.New("at least one definition is required")
	ErrNoSourceEndpoint = errors.New("no source endpoint configured for execution")
)

// ReconService runs natural-language reconciliation definitions against
// a knowledge graph.
type ReconService interface {
	Run(ctx context.Context, req *model.ReconRequest) (*model.ReconResponse, error)
}

// BundleExecutor runs the generated queries of a definition. *Executor
// is the production implementation.
type BundleExecutor interface {
	ExecuteBundle(ctx context.Context, jobs []QueryJob) []model.ExecutionResult
}

// ReconConfig carries the run defaults that are not part of the request.
type ReconConfig struct {
	// DefaultSourceEndpoint and DefaultTargetEndpoint name the endpoints
	// used when the request does not override them. The target falls
	// back to the source endpoint when unset.
	DefaultSourceEndpoint string
	DefaultTargetEndpoint string
	// Concurrency caps the number of definitions processed in parallel.
	Concurrency int
}

type reconService struct {
	graphs    GraphService
	endpoints EndpointService
	parser    *intent.Parser
	executor  BundleExecutor
	cfg       ReconConfig
	logger    zerolog.Logger
}

// NewReconService creates a new ReconService.
func NewReconService(graphs GraphService, endpoints EndpointService, parser *intent.Parser, executor BundleExecutor, cfg ReconConfig) ReconService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultRunConcurrency
	}
	return &reconService{
		graphs:    graphs,
		endpoints: endpoints,
		parser:    parser,
		executor:  executor,
		cfg:       cfg,
		logger:    logging.Default().With().Str("component", "recon").Logger(),
	}
}

// queryStats accumulates per-definition execution numbers for the KPI
// input.
type queryStats struct {
	executed  int
	succeeded int
	totalMs   int64
}

// Run processes every definition of the request concurrently over one
// immutable graph snapshot. Definitions fail independently; a failed
// parse or query never aborts the run.
func (s *reconService) Run(ctx context.Context, req *model.ReconRequest) (*model.ReconResponse, error) {
	if len(req.Definitions) == 0 {
		return nil, ErrNoDefinitions
	}
	dialect, ok := model.NormalizeDialect(req.Dialect)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDialect, req.Dialect)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultRecordLimit
	}
	if limit > maxRecordLimit {
		limit = maxRecordLimit
	}

	snap, err := s.graphs.Snapshot(ctx, req.KGName)
	if err != nil {
		return nil, err
	}
	resolver := s.graphs.ResolverFor(snap)

	middleware.RunStarted(req.Execute)
	defer middleware.RunFinished()

	var srcEp, tgtEp *model.Endpoint
	if req.Execute {
		srcEp, tgtEp, err = s.resolveEndpoints(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	start := time.Now()
	results := make([]model.DefinitionResult, len(req.Definitions))
	stats := make([]queryStats, len(req.Definitions))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.Concurrency)
	for i, def := range req.Definitions {
		wg.Add(1)
		go func(i int, def string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i], stats[i] = s.runDefinition(ctx, snap, resolver, definitionRun{
				definition: def,
				dialect:    dialect,
				limit:      limit,
				schemas:    req.Schemas,
				useLLM:     req.UseLLM,
				execute:    req.Execute,
				source:     srcEp,
				target:     tgtEp,
			})
		}(i, def)
	}
	wg.Wait()

	summary := model.RunSummary{Definitions: len(results)}
	in := kpi.Input{Results: results}
	var totalMs int64
	for i := range results {
		if results[i].Error == "" {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		if results[i].Degraded {
			summary.Degraded++
		}
		middleware.RecordDefinition(results[i].Error == "", results[i].Degraded)
		in.QueriesExecuted += stats[i].executed
		in.QueriesSucceeded += stats[i].succeeded
		totalMs += stats[i].totalMs
	}
	if in.QueriesExecuted > 0 {
		in.AvgLatencyMs = float64(totalMs) / float64(in.QueriesExecuted)
	}
	summary.KPIs = kpi.Calculate(in)

	s.logger.Info().
		Str("graph", req.KGName).
		Str("dialect", string(dialect)).
		Int("definitions", summary.Definitions).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("degraded", summary.Degraded).
		Bool("executed", req.Execute).
		Dur("duration", time.Since(start)).
		Msg("reconciliation run finished")

	return &model.ReconResponse{
		KGName:  req.KGName,
		Dialect: string(dialect),
		Results: results,
		Summary: summary,
	}, nil
}

func (s *reconService) resolveEndpoints(ctx context.Context, req *model.ReconRequest) (*model.Endpoint, *model.Endpoint, error) {
	srcName := req.SourceEndpoint
	if srcName == "" {
		srcName = s.cfg.DefaultSourceEndpoint
	}
	if srcName == "" {
		return nil, nil, ErrNoSourceEndpoint
	}
	tgtName := req.TargetEndpoint
	if tgtName == "" {
		tgtName = s.cfg.DefaultTargetEndpoint
	}
	if tgtName == "" {
		tgtName = srcName
	}

	srcEp, err := s.endpoints.OpenEndpoint(ctx, srcName)
	if err != nil {
		return nil, nil, fmt.Errorf("source endpoint %q: %w", srcName, err)
	}
	if tgtName == srcName {
		return srcEp, srcEp, nil
	}
	tgtEp, err := s.endpoints.OpenEndpoint(ctx, tgtName)
	if err != nil {
		return nil, nil, fmt.Errorf("target endpoint %q: %w", tgtName, err)
	}
	return srcEp, tgtEp, nil
}

type definitionRun struct {
	definition string
	dialect    model.Dialect
	limit      int
	schemas    []string
	useLLM     bool
	execute    bool
	source     *model.Endpoint
	target     *model.Endpoint
}

func (s *reconService) runDefinition(ctx context.Context, snap *graph.Snapshot, resolver *alias.Resolver, run definitionRun) (model.DefinitionResult, queryStats) {
	var st queryStats

	parsed := s.parser.Parse(ctx, intent.Request{
		Definition:  run.definition,
		Snapshot:    snap,
		Resolver:    resolver,
		SchemaHints: run.schemas,
		UseLLM:      run.useLLM,
	})
	middleware.RecordParse(!parsed.Degraded)
	res := model.DefinitionResult{
		Definition:  run.definition,
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
		return res, st
	}

	var basePath *graph.Path
	if parsed.TargetTable != "" {
		var err error
		basePath, err = graph.FindPath(snap, parsed.SourceTable, parsed.TargetTable)
		if err != nil {
			res.Error = err.Error()
			return res, st
		}
		res.JoinColumns = basePath.JoinColumns()
	}

	// Additional columns from tables off the base path need their own
	// join path from the source. Unreachable ones are dropped with a
	// warning instead of failing the definition.
	kept := parsed.AdditionalColumns[:0]
	for i := range parsed.AdditionalColumns {
		ac := parsed.AdditionalColumns[i]
		if ac.OwningTable == "" ||
			strings.EqualFold(ac.OwningTable, parsed.SourceTable) ||
			strings.EqualFold(ac.OwningTable, parsed.TargetTable) {
			kept = append(kept, ac)
			continue
		}
		path, err := graph.FindPath(snap, parsed.SourceTable, ac.OwningTable)
		if err != nil {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("column %s.%s dropped: %v", ac.OwningTable, ac.Column, err))
			continue
		}
		ac.JoinPath = path
		kept = append(kept, ac)
	}
	parsed.AdditionalColumns = kept

	bundle, err := sqlgen.Generate(snap, sqlgen.Input{
		Intent:   parsed,
		BasePath: basePath,
		Dialect:  run.dialect,
		Limit:    run.limit,
	})
	if err != nil {
		res.Error = err.Error()
		return res, st
	}
	res.SQL = bundle

	if !run.execute {
		return res, st
	}

	primary := model.QueryKindMatched
	if parsed.Operation == model.OperationNotIn && bundle.UnmatchedSource != "" {
		primary = model.QueryKindUnmatchedSource
	}
	aggregate := parsed.QueryType == model.QueryTypeAggregate

	var jobs []QueryJob
	addJob := func(kind model.QueryKind, sqlText string, ep *model.Endpoint) {
		if sqlText == "" {
			return
		}
		jobs = append(jobs, QueryJob{
			Kind:     kind,
			SQL:      sqlText,
			Dialect:  run.dialect,
			Endpoint: ep,
			WithRows: kind == primary || aggregate,
		})
	}
	addJob(model.QueryKindMatched, bundle.Matched, run.source)
	addJob(model.QueryKindUnmatchedSource, bundle.UnmatchedSource, run.source)
	addJob(model.QueryKindUnmatchedTarget, bundle.UnmatchedTarget, run.target)

	started := time.Now()
	execResults := s.executor.ExecuteBundle(ctx, jobs)
	res.ExecutionTimeMs = time.Since(started).Milliseconds()

	res.Counts = make(map[model.QueryKind]int64, len(execResults))
	var failures []string
	for _, er := range execResults {
		st.executed++
		st.totalMs += er.ExecutionTimeMs
		if er.Error != "" {
			failures = append(failures, fmt.Sprintf("%s: %s", er.Kind, er.Error))
			continue
		}
		st.succeeded++
		count := er.RecordCount
		if aggregate {
			count = aggregateCount(er.Records, er.RecordCount)
		}
		res.Counts[er.Kind] = count
		if er.Kind == primary {
			res.RecordCount = count
			if !aggregate {
				res.Records = er.Records
			}
		}
	}
	if len(failures) > 0 {
		res.Error = strings.Join(failures, "; ")
		s.logger.Warn().
			Str("definition", run.definition).
			Str("error", res.Error).
			Msg("definition failed during execution")
	}
	return res, st
}

// aggregateCount reads the count an aggregate query computed. The
// generated query aliases it record_count; the scanned-row count is the
// fallback when the driver returns something unreadable.
func aggregateCount(records []map[string]interface{}, fallback int64) int64 {
	if len(records) == 0 {
		return fallback
	}
	v, ok := records[0]["record_count"]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case string:
		if parsed, err := strconv.ParseInt(n, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
