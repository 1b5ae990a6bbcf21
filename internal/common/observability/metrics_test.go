package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestObservability_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := New("analyst-test", WithRegisterer(reg), WithoutGlobal())
	defer obs.Shutdown()

	ctx := context.Background()
	obs.RecordChat(ctx, "success", 150*time.Millisecond)
	obs.RecordToolInvocation(ctx, "query_marketing_data", "success")

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "chat_requests")
	assert.Contains(t, joined, "chat_duration")
	assert.Contains(t, joined, "tool_invocations")
}

func TestObservability_Spans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	obs := New("analyst-test", WithRegisterer(prometheus.NewRegistry()), WithSpanProcessor(rec), WithoutGlobal())
	defer obs.Shutdown()

	_, span := obs.Tracer().Start(context.Background(), "agent.round")
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "agent.round", ended[0].Name())
}

func TestObservability_NilSafe(t *testing.T) {
	var obs *Observability
	assert.NotPanics(t, func() {
		obs.RecordChat(context.Background(), "error", time.Second)
		obs.RecordToolInvocation(context.Background(), "x", "error")
		_, span := obs.Tracer().Start(context.Background(), "noop")
		span.End()
		obs.Shutdown()
	})
}
