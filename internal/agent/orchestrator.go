package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketing-analyst/internal/analytics/charts"
	"marketing-analyst/internal/common/config"
	apperrors "marketing-analyst/internal/common/errors"
	"marketing-analyst/internal/common/logger"
	"marketing-analyst/internal/common/observability"
	"marketing-analyst/internal/models"
)

const (
	ActionSQL       = "sql"
	ActionVisualize = "visualize"
	ActionExplain   = "explain"
	ActionError     = "error"

	agentName = "tool-loop"
)

// Orchestrator turns a chat request into a ChatResponse. Chat never fails:
// every breakdown is reported inside the response.
type Orchestrator struct {
	reasoner Reasoner
	cfg      config.AgentConfig
	obs      *observability.Observability
	log      logger.Logger
	setupErr error
}

func NewOrchestrator(reasoner Reasoner, cfg config.AgentConfig, obs *observability.Observability, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		reasoner: reasoner,
		cfg:      cfg,
		obs:      obs,
		log:      logger.ForComponent(log, "orchestrator"),
	}
}

// NewUnconfiguredOrchestrator answers every chat with setupErr, typically a
// missing model credential.
func NewUnconfiguredOrchestrator(setupErr error, cfg config.AgentConfig, obs *observability.Observability, log logger.Logger) *Orchestrator {
	o := NewOrchestrator(nil, cfg, obs, log)
	o.setupErr = setupErr
	return o
}

func (o *Orchestrator) Chat(ctx context.Context, req models.ChatRequest) (resp *models.ChatResponse) {
	start := time.Now()
	requestID := uuid.NewString()

	ctx, span := o.obs.Tracer().Start(ctx, "agent.chat", trace.WithAttributes(attribute.String("request_id", requestID)))
	defer span.End()

	log := o.log.With(map[string]interface{}{
		"request_id": requestID,
		"trace_id":   span.SpanContext().TraceID().String(),
	})

	defer func() {
		if r := recover(); r != nil {
			err := apperrors.NewInternalError(fmt.Errorf("panic during chat: %v", r))
			log.Error("Chat panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			resp = o.fail(ctx, span, err, requestID, nil, start)
		}
	}()

	if o.setupErr != nil || o.reasoner == nil {
		err := o.setupErr
		if err == nil {
			err = apperrors.NewConfigurationError("no reasoner configured")
		}
		apperrors.LogError(log, "Chat rejected", err, nil)
		return o.fail(ctx, span, err, requestID, nil, start)
	}

	filters := req.Filters.WithDefaults(o.cfg.DefaultDateFrom, o.cfg.DefaultDateTo)
	ctx = WithFilters(ctx, filters)

	log.Info("Chat request received", map[string]interface{}{
		"history_turns": len(req.History),
		"filters":       filters.Describe(),
	})

	run, err := o.reasoner.Run(ctx, Prompt{
		System:  SystemPrompt(filters),
		History: HistoryMessages(req.History, o.cfg.HistoryTurns),
		Input:   UserInput(req.Message, filters),
	})
	if err != nil {
		apperrors.LogError(log, "Tool loop failed", err, nil)
		return o.fail(ctx, span, err, requestID, run, start)
	}

	resp = Assemble(run)
	resp.Extras["agent_used"] = agentName
	resp.Extras["request_id"] = requestID
	resp.Extras["duration_ms"] = time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.Int("rounds", run.Rounds),
		attribute.Int("tool_calls", len(run.Invocations)),
	)
	o.obs.RecordChat(ctx, "success", time.Since(start))
	log.Info("Chat completed", map[string]interface{}{
		"rounds":      run.Rounds,
		"tool_calls":  len(run.Invocations),
		"tables":      len(resp.Tables),
		"plots":       len(resp.Plots),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return resp
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, err error, requestID string, run *RunResult, start time.Time) *models.ChatResponse {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
	o.obs.RecordChat(ctx, "error", time.Since(start))

	resp := ErrorResponse(err)
	resp.Extras["agent_used"] = agentName
	resp.Extras["request_id"] = requestID
	resp.Extras["duration_ms"] = time.Since(start).Milliseconds()
	if run != nil {
		resp.Extras["tool_calls"] = toolCallSummaries(run.Invocations)
	}
	return resp
}

// ErrorResponse is the well-formed apology returned for any breakdown.
func ErrorResponse(err error) *models.ChatResponse {
	stdErr := apperrors.AsStandard(err)
	reason := stdErr.Message
	if stdErr.Details != "" {
		reason += " (" + stdErr.Details + ")"
	}
	return &models.ChatResponse{
		Answer: fmt.Sprintf("I encountered an issue while processing your request: %s. "+
			"Please try a simpler question or rephrase it.", reason),
		Actions: []string{ActionError},
		Tables:  []models.TablePayload{},
		Plots:   []models.PlotPayload{},
		Extras: map[string]interface{}{
			"error":      stdErr.Error(),
			"error_code": string(stdErr.Code),
		},
	}
}

// dataOutput is the union of the two data tool payloads.
type dataOutput struct {
	Template     string                   `json:"template"`
	Question     string                   `json:"question"`
	GeneratedSQL string                   `json:"generated_sql"`
	Params       map[string]interface{}   `json:"params"`
	Data         []map[string]interface{} `json:"data"`
	Columns      []string                 `json:"columns"`
	RowCount     int                      `json:"row_count"`
	Error        string                   `json:"error"`
	Code         string                   `json:"code"`
}

type toolError struct {
	Tool  string `json:"tool"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Assemble walks the recorded tool outputs in call order and builds the
// response artifacts.
func Assemble(run *RunResult) *models.ChatResponse {
	resp := &models.ChatResponse{
		Answer: StripImages(run.Text),
		Tables: []models.TablePayload{},
		Plots:  []models.PlotPayload{},
		Extras: map[string]interface{}{},
	}

	merged := map[string]interface{}{}
	var toolErrors []toolError

	for _, inv := range run.Invocations {
		switch inv.Name {
		case ToolQueryMarketingData, ToolQueryDynamicSQL:
			var out dataOutput
			if err := json.Unmarshal([]byte(inv.Output), &out); err != nil {
				toolErrors = append(toolErrors, toolError{Tool: inv.Name, Error: "unreadable tool output"})
				continue
			}
			if out.Error != "" {
				toolErrors = append(toolErrors, toolError{Tool: inv.Name, Error: out.Error, Code: out.Code})
				continue
			}
			provenance := map[string]interface{}{"template": out.Template, "params": out.Params}
			if inv.Name == ToolQueryDynamicSQL {
				provenance["template"] = models.DynamicQueryName
				provenance["generated_sql"] = out.GeneratedSQL
			}
			resp.SQL = provenance
			if len(out.Data) == 0 {
				continue
			}
			result := models.QueryResult{Columns: out.Columns, Rows: out.Data, RowCount: out.RowCount}
			resp.Tables = append(resp.Tables, models.TablePayload{
				Name:    provenance["template"].(string),
				Columns: out.Columns,
				Rows:    result.RowsAsArrays(),
			})

		case ToolCreateVisualization:
			var spec charts.Spec
			if err := json.Unmarshal([]byte(inv.Output), &spec); err != nil {
				toolErrors = append(toolErrors, toolError{Tool: inv.Name, Error: "unreadable tool output"})
				continue
			}
			if spec.Error != "" {
				toolErrors = append(toolErrors, toolError{Tool: inv.Name, Error: spec.Error, Code: string(apperrors.ErrCodeChartBuildFailed)})
				continue
			}
			if spec.Renderable() {
				resp.Plots = append(resp.Plots, spec.Payload())
			}

		case ToolAnalyzeInsights:
			var bundle map[string]interface{}
			if err := json.Unmarshal([]byte(inv.Output), &bundle); err != nil {
				toolErrors = append(toolErrors, toolError{Tool: inv.Name, Error: "unreadable tool output"})
				continue
			}
			for k, v := range bundle {
				if k == "error" {
					toolErrors = append(toolErrors, toolError{Tool: inv.Name, Error: fmt.Sprint(v)})
					continue
				}
				merged[k] = v
			}

		default:
			if inv.Failed {
				var out struct {
					Error string `json:"error"`
					Code  string `json:"code"`
				}
				_ = json.Unmarshal([]byte(inv.Output), &out)
				toolErrors = append(toolErrors, toolError{Tool: inv.Name, Error: out.Error, Code: out.Code})
			}
		}
	}

	for k, v := range merged {
		resp.Extras[k] = v
	}
	if len(merged) > 0 {
		resp.Extras["takeaways"] = takeaways(merged)
	}
	if len(toolErrors) > 0 {
		resp.Extras["tool_errors"] = toolErrors
	}
	resp.Extras["tool_calls"] = toolCallSummaries(run.Invocations)

	if len(resp.Tables) > 0 || len(resp.Plots) > 0 {
		resp.Actions = []string{ActionSQL, ActionVisualize, ActionExplain}
	} else {
		resp.Actions = []string{ActionExplain}
	}
	return resp
}

// takeaways lists the insight metrics as [name, value] pairs in name order.
func takeaways(bundle map[string]interface{}) [][]interface{} {
	keys := make([]string, 0, len(bundle))
	for k := range bundle {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]interface{}, 0, len(keys))
	for _, k := range keys {
		out = append(out, []interface{}{k, bundle[k]})
	}
	return out
}

func toolCallSummaries(invs []Invocation) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(invs))
	for _, inv := range invs {
		out = append(out, map[string]interface{}{
			"tool":        inv.Name,
			"failed":      inv.Failed,
			"duration_ms": inv.Duration.Milliseconds(),
		})
	}
	return out
}
