package llm

var ToAnthropicTools = toAnthropicTools
