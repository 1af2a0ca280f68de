package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"recon-engine/internal/alias"
	"recon-engine/internal/graph"
	"recon-engine/internal/llm"
	"recon-engine/internal/model"
)

const defaultLLMTimeout = 15 * time.Second

// Parser turns one natural-language definition into a ParsedIntent. The
// LLM path is tried when requested and available; any failure there falls
// through to the deterministic vocabulary parser with the result flagged
// degraded. Parse never fails outright.
type Parser struct {
	provider llm.Provider
	timeout  time.Duration
}

// NewParser creates a parser. provider may be nil, in which case every
// parse uses the deterministic path.
func NewParser(provider llm.Provider, timeout time.Duration) *Parser {
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	return &Parser{provider: provider, timeout: timeout}
}

// Request bundles the inputs of one parse.
type Request struct {
	Definition  string
	Snapshot    *graph.Snapshot
	Resolver    *alias.Resolver
	SchemaHints []string
	UseLLM      bool
}

// Parse extracts the intent of one definition. The result is flagged
// degraded whenever the deterministic path produced it, whether the LLM
// was disabled, unavailable, or failed.
func (p *Parser) Parse(ctx context.Context, req Request) *ParsedIntent {
	if req.UseLLM && p.provider != nil {
		parsed, err := p.parseLLM(ctx, req)
		if err == nil {
			return parsed
		}
		return fallbackParse(req.Definition, req.Snapshot, req.Resolver, []string{
			fmt.Sprintf("llm parse failed: %v; deterministic fallback used", err),
		})
	}

	var warnings []string
	if req.UseLLM && p.provider == nil {
		warnings = append(warnings, "no llm provider configured; deterministic fallback used")
	}
	return fallbackParse(req.Definition, req.Snapshot, req.Resolver, warnings)
}

// llmIntent is the JSON contract the model is asked to produce.
type llmIntent struct {
	QueryType         string      `json:"query_type"`
	Operation         string      `json:"operation"`
	SourceTable       string      `json:"source_table"`
	TargetTable       string      `json:"target_table"`
	Filters           []llmFilter `json:"filters"`
	AdditionalColumns []llmAddCol `json:"additional_columns"`
	Confidence        float64     `json:"confidence"`
}

type llmFilter struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type llmAddCol struct {
	Column string `json:"column"`
	Table  string `json:"table"`
	Alias  string `json:"alias"`
}

func (p *Parser) parseLLM(ctx context.Context, req Request) (*ParsedIntent, error) {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.provider.Complete(cctx, systemPrompt, buildPrompt(req.Definition, req.Snapshot, req.SchemaHints))
	if err != nil {
		return nil, err
	}

	payload, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var li llmIntent
	if err := json.Unmarshal(payload, &li); err != nil {
		return nil, fmt.Errorf("invalid intent JSON: %w", err)
	}

	out := &ParsedIntent{}

	switch strings.ToLower(strings.TrimSpace(li.QueryType)) {
	case "filter":
		out.QueryType = model.QueryTypeFilter
	case "comparison":
		out.QueryType = model.QueryTypeComparison
	case "aggregate":
		out.QueryType = model.QueryTypeAggregate
	case "":
		// decided below from the target table
	default:
		return nil, fmt.Errorf("unknown query_type %q", li.QueryType)
	}

	switch strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(li.Operation)), " ", "_") {
	case "IN", "":
		out.Operation = model.OperationIn
	case "NOT_IN":
		out.Operation = model.OperationNotIn
	case "EXISTS":
		out.Operation = model.OperationExists
	default:
		return nil, fmt.Errorf("unknown operation %q", li.Operation)
	}

	// Every table mention from the model goes through the alias resolver
	// before it is trusted.
	if strings.TrimSpace(li.SourceTable) == "" {
		return nil, fmt.Errorf("model returned no source_table")
	}
	src, err := req.Resolver.Resolve(li.SourceTable)
	if err != nil {
		return nil, fmt.Errorf("source table: %w", err)
	}
	out.SourceTable = src.Table

	if strings.TrimSpace(li.TargetTable) != "" {
		tgt, err := req.Resolver.Resolve(li.TargetTable)
		if err != nil {
			return nil, fmt.Errorf("target table: %w", err)
		}
		out.TargetTable = tgt.Table
	}

	if out.QueryType == "" {
		if out.TargetTable != "" {
			out.QueryType = model.QueryTypeComparison
		} else {
			out.QueryType = model.QueryTypeFilter
		}
	}
	if out.QueryType == model.QueryTypeComparison && out.TargetTable == "" {
		out.QueryType = model.QueryTypeFilter
		out.Warnings = append(out.Warnings, "comparison without target table downgraded to filter")
	}

	sides := []string{out.SourceTable}
	if out.TargetTable != "" {
		sides = append(sides, out.TargetTable)
	}
	for _, f := range li.Filters {
		if strings.TrimSpace(f.Column) == "" {
			continue
		}
		out.Filters = append(out.Filters, Filter{
			Column:   canonicalColumn(req.Snapshot, sides, f.Column),
			Operator: normalizeOperator(f.Operator),
			Value:    f.Value,
		})
	}

	for _, ac := range li.AdditionalColumns {
		if strings.TrimSpace(ac.Column) == "" || strings.TrimSpace(ac.Table) == "" {
			continue
		}
		owner, err := req.Resolver.Resolve(ac.Table)
		if err != nil {
			out.Warnings = append(out.Warnings, "additional column dropped: "+err.Error())
			continue
		}
		out.AdditionalColumns = append(out.AdditionalColumns, AdditionalColumn{
			Column:      canonicalColumn(req.Snapshot, []string{owner.Table}, ac.Column),
			OwningTable: owner.Table,
			Alias:       strings.TrimSpace(ac.Alias),
		})
	}

	out.Confidence = li.Confidence
	if out.Confidence <= 0 {
		out.Confidence = 0.8
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}

	return out, nil
}

// extractJSON cuts the first JSON object out of the model output,
// tolerating markdown fences and prose around it.
func extractJSON(raw string) ([]byte, error) {
	cleaned := strings.TrimSpace(raw)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	return []byte(cleaned[start : end+1]), nil
}

var allowedOperators = map[string]string{
	"=": "=", "==": "=", "eq": "=",
	"!=": "<>", "<>": "<>", "ne": "<>",
	">": ">", ">=": ">=", "<": "<", "<=": "<=",
	"like": "LIKE", "not like": "NOT LIKE",
	"in": "IN", "not in": "NOT IN",
}

// normalizeOperator maps model-reported operators onto the SQL forms the
// generator emits; anything unrecognized falls back to equality.
func normalizeOperator(op string) string {
	normalized, ok := allowedOperators[strings.ToLower(strings.TrimSpace(op))]
	if !ok {
		return "="
	}
	return normalized
}
