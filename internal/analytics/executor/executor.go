// internal/analytics/executor/executor.go
package executor

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strconv"
	"time"

	"marketing-analyst/internal/analytics/templates"
	"marketing-analyst/internal/common/config"
	"marketing-analyst/internal/common/database"
	apperrors "marketing-analyst/internal/common/errors"
	"marketing-analyst/internal/common/logger"
	"marketing-analyst/internal/common/metrics"
	"marketing-analyst/internal/models"
)

const (
	kindTemplate = "template"
	kindDynamic  = "dynamic"
)

// Executor runs read-only statements against the dataset.
type Executor struct {
	dataset *database.Dataset
	timeout time.Duration
	logger  logger.Logger
}

func New(dataset *database.Dataset, cfg config.DatabaseConfig, log logger.Logger) *Executor {
	timeout := config.GetDuration(cfg.QueryTimeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		dataset: dataset,
		timeout: timeout,
		logger:  logger.ForComponent(log, "executor"),
	}
}

// RunTemplate renders and runs a catalogue template. An unknown name fails
// before the dataset is touched.
func (e *Executor) RunTemplate(ctx context.Context, name string, filters models.Filters) (*models.QueryResult, error) {
	tmpl, err := templates.Get(name)
	if err != nil {
		metrics.QueryFailures.WithLabelValues(kindTemplate, string(apperrors.CodeOf(err))).Inc()
		return nil, err
	}
	query, params := tmpl.Render(filters)
	return e.run(ctx, kindTemplate, name, query, params)
}

// RunSQL runs a synthesized statement after the read-only guard.
func (e *Executor) RunSQL(ctx context.Context, query string, params map[string]interface{}) (*models.QueryResult, error) {
	return e.run(ctx, kindDynamic, models.DynamicQueryName, query, params)
}

func (e *Executor) run(ctx context.Context, kind, source, query string, params map[string]interface{}) (*models.QueryResult, error) {
	start := time.Now()
	result, err := e.execute(ctx, source, query, params)
	metrics.QueryDuration.WithLabelValues(kind, source).Observe(time.Since(start).Seconds())

	if err != nil {
		stdErr := apperrors.AsStandard(err)
		metrics.QueryFailures.WithLabelValues(kind, string(stdErr.Code)).Inc()
		e.logger.Error("query failed", map[string]interface{}{
			"kind":      kind,
			"source":    source,
			"errorCode": string(stdErr.Code),
			"error":     stdErr.Error(),
		})
		return nil, stdErr
	}

	e.logger.Debug("query completed", map[string]interface{}{
		"kind":       kind,
		"source":     source,
		"rowCount":   result.RowCount,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (e *Executor) execute(ctx context.Context, source, query string, params map[string]interface{}) (*models.QueryResult, error) {
	statement, err := CheckReadOnly(query)
	if err != nil {
		return nil, err
	}

	bound, args, err := e.dataset.Dialect.Bind(statement, params)
	if err != nil {
		return nil, apperrors.NewQueryExecutionError(source, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	tx, err := e.dataset.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, wrapErr(ctx, source, err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, bound, args...)
	if err != nil {
		return nil, wrapErr(ctx, source, err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, wrapErr(ctx, source, err)
	}
	return result, nil
}

func wrapErr(ctx context.Context, source string, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("query "+source, err)
	}
	return apperrors.NewQueryExecutionError(source, err)
}

func scanRows(rows *sql.Rows) (*models.QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &models.QueryResult{
		Columns: columns,
		Rows:    []map[string]interface{}{},
	}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalize(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// normalize converts driver values into JSON-friendly scalars. Drivers
// hand back text columns as string, so a []byte is a NUMERIC or a blob.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		s := string(val)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(models.DateLayout)
		}
		return val.Format(time.RFC3339)
	case float32:
		return float64(val)
	default:
		return val
	}
}
