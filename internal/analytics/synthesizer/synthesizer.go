// Package synthesizer drafts SQL for free-form questions with the language
// model, forces the mandatory filters into the draft and runs it.
package synthesizer

import (
	"context"
	"errors"
	"fmt"

	"marketing-analyst/internal/analytics/executor"
	apperrors "marketing-analyst/internal/common/errors"
	"marketing-analyst/internal/common/logger"
	"marketing-analyst/internal/common/metrics"
	"marketing-analyst/internal/llm"
	"marketing-analyst/internal/models"
)

// QueryRunner executes raw SQL with named parameters.
type QueryRunner interface {
	RunSQL(ctx context.Context, query string, params map[string]interface{}) (*models.QueryResult, error)
}

// sqlStarts are leading keywords of SQL statements. Anything else is prose.
var sqlStarts = map[string]bool{
	"SELECT": true, "WITH": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"DROP": true, "CREATE": true, "ALTER": true, "TRUNCATE": true, "MERGE": true,
	"PRAGMA": true, "ATTACH": true, "GRANT": true, "REVOKE": true, "REPLACE": true,
	"EXPLAIN": true, "VALUES": true,
}

// Result carries the provenance of a dynamic query. It is returned even
// when drafting or execution fails.
type Result struct {
	Question     string
	GeneratedSQL string
	Params       map[string]interface{}
	QueryResult  *models.QueryResult
	Cached       bool
}

type Synthesizer struct {
	model  llm.ChatModel
	runner QueryRunner
	schema SchemaDescriber
	cache  DraftCache
	log    logger.Logger
}

// New builds a synthesizer. A nil cache disables draft caching.
func New(model llm.ChatModel, runner QueryRunner, schema SchemaDescriber, cache DraftCache, log logger.Logger) *Synthesizer {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Synthesizer{
		model:  model,
		runner: runner,
		schema: schema,
		cache:  cache,
		log:    logger.ForComponent(log, "synthesizer"),
	}
}

// SynthesizeAndRun drafts, hardens and executes SQL for question.
func (s *Synthesizer) SynthesizeAndRun(ctx context.Context, question string, filters models.Filters) (*Result, error) {
	res := &Result{Question: question, Params: filters.Params()}

	query, cached, err := s.draft(ctx, question, filters)
	res.GeneratedSQL = query
	res.Cached = cached
	if err != nil {
		return res, err
	}

	qr, err := s.runner.RunSQL(ctx, query, res.Params)
	if err != nil {
		return res, err
	}
	res.QueryResult = qr

	s.log.Info("Dynamic query executed", map[string]interface{}{
		"rows":   qr.RowCount,
		"cached": cached,
	})
	return res, nil
}

// draft returns hardened SQL, from the cache when possible.
func (s *Synthesizer) draft(ctx context.Context, question string, filters models.Filters) (string, bool, error) {
	key := DraftKey(question, filters)
	if q, ok, err := s.cache.Get(ctx, key); err != nil {
		metrics.SQLDraftCache.WithLabelValues("error").Inc()
		s.log.Warn("SQL draft cache lookup failed", map[string]interface{}{"error": err.Error()})
	} else if ok {
		metrics.SQLDraftCache.WithLabelValues("hit").Inc()
		return q, true, nil
	} else {
		metrics.SQLDraftCache.WithLabelValues("miss").Inc()
	}

	if s.model == nil {
		return "", false, apperrors.NewConfigurationError("no language model available for SQL synthesis")
	}

	prompt := BuildPrompt(question, s.schema.Describe(), filters)
	reply, err := s.model.Complete(ctx, []llm.Message{llm.User(prompt)}, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", false, apperrors.NewTimeoutError("SQL synthesis", err)
		}
		return "", false, apperrors.NewSynthesisError(err)
	}

	raw := StripFences(reply.Text)
	tokens := executor.Tokens(executor.Mask(raw))
	if len(tokens) == 0 || !sqlStarts[tokens[0]] {
		return raw, false, apperrors.NewSynthesisError(fmt.Errorf("model reply is not a SQL statement"))
	}

	checked, err := executor.CheckReadOnly(raw)
	if err != nil {
		return raw, false, err
	}

	hardened, err := ApplySafetyNet(checked, filters)
	if err != nil {
		return checked, false, apperrors.NewSynthesisError(err)
	}
	if hardened != checked {
		s.log.Debug("Safety net adjusted draft", map[string]interface{}{"sql": hardened})
	}

	if err := s.cache.Set(ctx, key, hardened); err != nil {
		s.log.Warn("SQL draft cache store failed", map[string]interface{}{"error": err.Error()})
	}
	return hardened, false, nil
}
