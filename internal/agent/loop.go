package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketing-analyst/internal/common/config"
	apperrors "marketing-analyst/internal/common/errors"
	"marketing-analyst/internal/common/logger"
	"marketing-analyst/internal/common/observability"
	"marketing-analyst/internal/common/validation"
	"marketing-analyst/internal/llm"
)

const (
	defaultMaxIterations    = 10
	defaultMaxExecutionTime = 120 * time.Second
)

// Prompt is the conversation a Reasoner starts from.
type Prompt struct {
	System  string
	History []llm.Message
	Input   string
}

// Invocation records one executed tool call.
type Invocation struct {
	ID        string
	Name      string
	Arguments string
	Output    string
	Duration  time.Duration
	Failed    bool
}

// RunResult is the outcome of a reasoning loop. Invocations are kept in
// call order and are returned alongside an error when the loop breaks down.
type RunResult struct {
	Text        string
	Invocations []Invocation
	Rounds      int
}

// Reasoner runs the model against the registered tools until it produces a
// final answer.
type Reasoner interface {
	RegisterTools(tools ...Tool)
	Run(ctx context.Context, prompt Prompt) (*RunResult, error)
}

// ToolLoop is the Reasoner over a llm.ChatModel. Tool calls are executed
// sequentially in the order the model requested them.
type ToolLoop struct {
	model         llm.ChatModel
	tools         map[string]Tool
	order         []string
	maxIterations int
	maxDuration   time.Duration
	obs           *observability.Observability
	log           logger.Logger
}

func NewToolLoop(model llm.ChatModel, cfg config.AgentConfig, obs *observability.Observability, log logger.Logger) *ToolLoop {
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	maxDuration := config.GetDuration(cfg.MaxExecutionTime)
	if maxDuration <= 0 {
		maxDuration = defaultMaxExecutionTime
	}
	return &ToolLoop{
		model:         model,
		tools:         make(map[string]Tool),
		maxIterations: maxIterations,
		maxDuration:   maxDuration,
		obs:           obs,
		log:           logger.ForComponent(log, "tool-loop"),
	}
}

// RegisterTools adds tools; a tool with an already registered name replaces it.
func (l *ToolLoop) RegisterTools(tools ...Tool) {
	for _, t := range tools {
		if _, exists := l.tools[t.Name()]; !exists {
			l.order = append(l.order, t.Name())
		}
		l.tools[t.Name()] = t
	}
}

// Specs returns the registered tool advertisements in registration order.
func (l *ToolLoop) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(l.order))
	for _, name := range l.order {
		specs = append(specs, Spec(l.tools[name]))
	}
	return specs
}

func (l *ToolLoop) Run(ctx context.Context, prompt Prompt) (*RunResult, error) {
	ctx, cancel := context.WithTimeout(ctx, l.maxDuration)
	defer cancel()

	messages := make([]llm.Message, 0, len(prompt.History)+2)
	if prompt.System != "" {
		messages = append(messages, llm.System(prompt.System))
	}
	messages = append(messages, prompt.History...)
	messages = append(messages, llm.User(prompt.Input))

	specs := l.Specs()
	result := &RunResult{}

	for round := 1; round <= l.maxIterations; round++ {
		result.Rounds = round

		reply, err := l.round(ctx, round, messages, specs, result)
		if err != nil {
			return result, err
		}
		if reply == nil {
			return result, nil
		}
		messages = reply
	}

	l.log.Warn("Tool loop hit the iteration limit", map[string]interface{}{
		"max_iterations": l.maxIterations,
		"tool_calls":     len(result.Invocations),
	})
	return result, apperrors.NewTimeoutError("agent loop",
		fmt.Errorf("no final answer after %d iterations", l.maxIterations))
}

// round performs one model call and the tool calls it requests. It returns
// the extended conversation, or nil once the model gave its final answer.
func (l *ToolLoop) round(ctx context.Context, n int, messages []llm.Message, specs []llm.ToolSpec, result *RunResult) ([]llm.Message, error) {
	ctx, span := l.obs.Tracer().Start(ctx, "agent.round", trace.WithAttributes(attribute.Int("round", n)))
	defer span.End()

	reply, err := l.model.Complete(ctx, messages, specs)
	if err != nil {
		err = l.modelError(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
		return nil, err
	}

	if len(reply.ToolCalls) == 0 {
		result.Text = reply.Text
		l.log.Debug("Model produced final answer", map[string]interface{}{"round": n})
		return nil, nil
	}

	span.SetAttributes(attribute.Int("tool_calls", len(reply.ToolCalls)))
	messages = append(messages, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   reply.Text,
		ToolCalls: reply.ToolCalls,
	})

	for _, call := range reply.ToolCalls {
		if ctx.Err() != nil {
			return nil, apperrors.NewTimeoutError("agent loop", ctx.Err())
		}
		inv := l.invoke(ctx, call)
		result.Invocations = append(result.Invocations, inv)
		messages = append(messages, llm.ToolResult(call.ID, inv.Output))
	}
	return messages, nil
}

func (l *ToolLoop) modelError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("agent loop", err)
	}
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		return err
	}
	return apperrors.NewInternalError(fmt.Errorf("model call failed: %w", err))
}

// invoke executes one tool call. It never fails: every problem is encoded
// into the output handed back to the model.
func (l *ToolLoop) invoke(ctx context.Context, call llm.ToolCall) Invocation {
	start := time.Now()
	inv := Invocation{ID: call.ID, Name: call.Name, Arguments: call.Arguments}

	ctx, span := l.obs.Tracer().Start(ctx, "tool."+call.Name, trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	inv.Output = l.execute(ctx, call)
	inv.Duration = time.Since(start)
	inv.Failed = isErrorOutput(inv.Output)

	status := "success"
	if inv.Failed {
		status = "error"
		span.SetStatus(codes.Error, "tool returned an error")
	}
	l.obs.RecordToolInvocation(ctx, call.Name, status)

	l.log.Info("Tool invoked", map[string]interface{}{
		"tool":        call.Name,
		"status":      status,
		"duration_ms": inv.Duration.Milliseconds(),
	})
	return inv
}

func (l *ToolLoop) execute(ctx context.Context, call llm.ToolCall) (out string) {
	tool, ok := l.tools[call.Name]
	if !ok {
		return encode(apperrors.ToolPayload(
			apperrors.NewInvalidToolArgumentsError(call.Name, "unknown tool"),
			map[string]interface{}{"tool": call.Name},
		))
	}

	args, err := decodeArguments(call.Arguments)
	if err != nil {
		return encode(apperrors.ToolPayload(
			apperrors.NewInvalidToolArgumentsError(call.Name, err.Error()),
			map[string]interface{}{"tool": call.Name},
		))
	}

	if d, ok := tool.(Defaulter); ok {
		d.ApplyDefaults(ctx, args)
	}
	applySchemaDefaults(tool.Schema(), args)

	vr, err := validation.Validate(tool.Schema(), args)
	if err != nil {
		return encode(apperrors.ToolPayload(apperrors.NewInternalError(err), map[string]interface{}{"tool": call.Name}))
	}
	if !vr.Valid {
		return encode(apperrors.ToolPayload(
			apperrors.NewInvalidToolArgumentsError(call.Name, vr.Error()),
			map[string]interface{}{"tool": call.Name},
		))
	}

	defer func() {
		if r := recover(); r != nil {
			l.log.Error("Tool panicked", map[string]interface{}{"tool": call.Name, "panic": fmt.Sprint(r)})
			out = encode(apperrors.ToolPayload(
				apperrors.NewInternalError(fmt.Errorf("tool %s panicked: %v", call.Name, r)),
				map[string]interface{}{"tool": call.Name},
			))
		}
	}()
	return tool.Call(ctx, args)
}

// decodeArguments parses the model's argument object. Null values are
// dropped so that they count as omitted.
func decodeArguments(raw string) (map[string]interface{}, error) {
	args := map[string]interface{}{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	for k, v := range args {
		if v == nil {
			delete(args, k)
		}
	}
	return args, nil
}

func applySchemaDefaults(schema validation.JSONSchema, args map[string]interface{}) {
	for name, prop := range schema.Properties {
		if _, ok := args[name]; !ok && prop.Default != nil {
			args[name] = prop.Default
		}
	}
}

func isErrorOutput(out string) bool {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal([]byte(out), &envelope); err != nil {
		return false
	}
	return len(envelope.Error) > 0 && string(envelope.Error) != "null"
}
