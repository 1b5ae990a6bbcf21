package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"marketing-analyst/internal/common/logger"
)

const defaultRetryInterval = 500 * time.Millisecond

// RetryingModel retries failed completions with exponential backoff.
// Context cancellation and deadlines are never retried.
type RetryingModel struct {
	inner      ChatModel
	maxRetries int
	initial    time.Duration
	log        logger.Logger
}

// WithRetry wraps m with maxRetries extra attempts. Zero returns m as is.
func WithRetry(m ChatModel, maxRetries int, log logger.Logger) ChatModel {
	if maxRetries <= 0 {
		return m
	}
	return &RetryingModel{inner: m, maxRetries: maxRetries, initial: defaultRetryInterval, log: log}
}

func (r *RetryingModel) Name() string {
	return r.inner.Name()
}

func (r *RetryingModel) Complete(ctx context.Context, messages []Message, tools []ToolSpec) (*Reply, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial

	attempt := 0
	return backoff.Retry(ctx, func() (*Reply, error) {
		attempt++
		reply, err := r.inner.Complete(ctx, messages, tools)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, backoff.Permanent(err)
		}
		r.log.Warn("Language model call failed", map[string]interface{}{
			"model":   r.inner.Name(),
			"attempt": attempt,
			"error":   err.Error(),
		})
		return nil, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(r.maxRetries+1)))
}
