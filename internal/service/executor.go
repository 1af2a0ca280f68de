package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"recon-engine/internal/database"
	"recon-engine/internal/middleware"
	"recon-engine/internal/model"
	"recon-engine/internal/security"
	"recon-engine/internal/utils"
)

const (
	defaultQueryTimeout = 30 * time.Second
	defaultMaxRecords   = 100
)

// QueryJob is one generated query bound to the endpoint it runs on.
type QueryJob struct {
	Kind     model.QueryKind
	SQL      string
	Dialect  model.Dialect
	Endpoint *model.Endpoint
	// WithRows captures result rows, not just the count.
	WithRows bool
}

// Executor runs generated queries against execution endpoints. The
// queries of one bundle run concurrently and independently: a failed
// query reports its error and a zero count without aborting siblings.
// No retries happen at this layer.
type Executor struct {
	pool       *database.Pool
	validator  *security.SQLValidator
	stats      *StatsCollector
	timeout    time.Duration
	maxRecords int
}

// NewExecutor creates an executor. stats may be nil when no aggregation
// is wanted.
func NewExecutor(pool *database.Pool, validator *security.SQLValidator, stats *StatsCollector, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &Executor{
		pool:       pool,
		validator:  validator,
		stats:      stats,
		timeout:    timeout,
		maxRecords: defaultMaxRecords,
	}
}

// ExecuteBundle runs all jobs concurrently and returns one result per
// job in the same order.
func (e *Executor) ExecuteBundle(ctx context.Context, jobs []QueryJob) []model.ExecutionResult {
	results := make([]model.ExecutionResult, len(jobs))
	var wg sync.WaitGroup
	for i := range jobs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Execute(ctx, jobs[i])
		}(i)
	}
	wg.Wait()
	return results
}

// Execute runs one query and reports its outcome. Execution time is
// wall-clock, measured from validation to the last scanned row.
func (e *Executor) Execute(ctx context.Context, job QueryJob) model.ExecutionResult {
	start := time.Now()
	result := model.ExecutionResult{Kind: job.Kind}

	fail := func(err error) model.ExecutionResult {
		result.ExecutionTimeMs = time.Since(start).Milliseconds()
		result.Error = err.Error()
		e.record(job, false, time.Since(start), 0, result.Error)
		return result
	}

	if job.Endpoint == nil {
		return fail(fmt.Errorf("no endpoint bound to %s query", job.Kind))
	}
	if e.validator != nil {
		if err := e.validator.ValidateStatement(job.SQL, job.Dialect); err != nil {
			return fail(fmt.Errorf("query rejected: %w", err))
		}
	}

	db, err := e.pool.Get(ctx, job.Endpoint)
	if err != nil {
		return fail(fmt.Errorf("connection failed: %w", err))
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	count, records, err := e.runQuery(queryCtx, db, job)
	if err != nil {
		return fail(err)
	}

	result.RecordCount = count
	result.Records = records
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	e.record(job, true, time.Since(start), count, "")
	return result
}

func (e *Executor) runQuery(ctx context.Context, db *sql.DB, job QueryJob) (int64, []map[string]interface{}, error) {
	rows, err := db.QueryContext(ctx, job.SQL)
	if err != nil {
		return 0, nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var count int64
	var records []map[string]interface{}
	for rows.Next() {
		count++
		if !job.WithRows {
			// Still drain the cursor so the count is exact.
			if err := rows.Scan(scanTargets(len(columns))...); err != nil {
				return 0, nil, fmt.Errorf("failed to scan row: %w", err)
			}
			continue
		}
		row := make([]interface{}, len(columns))
		if err := rows.Scan(scanPointers(row)...); err != nil {
			return 0, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(records) < e.maxRecords {
			records = append(records, utils.RowToMap(columns, utils.NormalizeRow(row)))
		}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("row iteration error: %w", err)
	}
	return count, records, nil
}

func scanPointers(row []interface{}) []interface{} {
	ptrs := make([]interface{}, len(row))
	for i := range row {
		ptrs[i] = &row[i]
	}
	return ptrs
}

func scanTargets(n int) []interface{} {
	targets := make([]interface{}, n)
	for i := range targets {
		var sink interface{}
		targets[i] = &sink
	}
	return targets
}

func (e *Executor) record(job QueryJob, success bool, duration time.Duration, rows int64, errMsg string) {
	if job.Endpoint == nil {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	middleware.RecordQueryMetrics(job.Endpoint.ID, string(job.Endpoint.Type), string(job.Kind), status, duration, rows)
	if e.stats == nil {
		return
	}
	e.stats.Record(job.Endpoint.ID, job.Endpoint.Type, job.Kind, success, duration, rows, errMsg)
}
