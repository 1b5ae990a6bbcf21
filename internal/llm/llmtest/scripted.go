// Package llmtest provides ChatModel fakes for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"marketing-analyst/internal/llm"
)

// Step is one scripted model turn. Respond, when set, wins over Reply/Err.
type Step struct {
	Reply   *llm.Reply
	Err     error
	Respond func(messages []llm.Message, tools []llm.ToolSpec) (*llm.Reply, error)
}

// Call records what the model was asked.
type Call struct {
	Messages []llm.Message
	Tools    []llm.ToolSpec
}

// ScriptedModel replays Steps in order and records every call. Once the
// script runs out it returns an error.
type ScriptedModel struct {
	mu    sync.Mutex
	steps []Step
	calls []Call
	name  string
}

func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps, name: "scripted"}
}

func (m *ScriptedModel) Name() string { return m.name }

func (m *ScriptedModel) Complete(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (*llm.Reply, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{
		Messages: append([]llm.Message(nil), messages...),
		Tools:    append([]llm.ToolSpec(nil), tools...),
	})
	idx := len(m.calls) - 1
	var step *Step
	if idx < len(m.steps) {
		step = &m.steps[idx]
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if step == nil {
		return nil, fmt.Errorf("scripted model exhausted after %d steps", len(m.steps))
	}
	if step.Respond != nil {
		return step.Respond(messages, tools)
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Reply, nil
}

// Calls returns a copy of the recorded calls.
func (m *ScriptedModel) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Text is a final answer step.
func Text(text string) Step {
	return Step{Reply: &llm.Reply{Text: text}}
}

// Fail is a failing step.
func Fail(err error) Step {
	return Step{Err: err}
}

// Invoke is a step requesting one tool call; args are JSON encoded.
func Invoke(id, tool string, args map[string]interface{}) Step {
	return Step{Reply: &llm.Reply{ToolCalls: []llm.ToolCall{ToolCallOf(id, tool, args)}}}
}

// ToolCallOf builds a ToolCall with JSON encoded arguments.
func ToolCallOf(id, tool string, args map[string]interface{}) llm.ToolCall {
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte("{}")
	}
	return llm.ToolCall{ID: id, Name: tool, Arguments: string(raw)}
}

// LastToolResult returns the content of the most recent tool message.
func LastToolResult(messages []llm.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleTool {
			return messages[i].Content, true
		}
	}
	return "", false
}
