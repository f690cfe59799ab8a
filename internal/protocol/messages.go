package protocol

import (
	"encoding/json"
	"time"
)

// TextContent is one entry in a tool result payload.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolRequest is a named-tool invocation received over the bus.
type ToolRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the only shape ever returned to a tool caller. Both
// successes and failures use it; failures set IsError.
type ToolResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError"`
}

// ErrorPayload is the JSON body carried by an error result.
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Transcript represents decode output broadcast on the bus.
type Transcript struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Partial   bool      `json:"partial"`
	Backend   string    `json:"backend,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectToolInvoke        = "tool.invoke"
	SubjectToolCatalog       = "tool.catalog"
	SubjectTranscriptPartial = "stt.text.partial"
	SubjectTranscriptFinal   = "stt.text.final"
)

// TextResult wraps raw text in a success envelope.
func TextResult(text string) ToolResult {
	return ToolResult{Content: []TextContent{{Type: "text", Text: text}}}
}

// ErrorResult wraps an error kind and message in a failure envelope.
// The payload is JSON of the same content shape as successes.
func ErrorResult(kind, message string) ToolResult {
	data, err := json.MarshalIndent(ErrorPayload{Error: kind, Message: message}, "", "  ")
	if err != nil {
		data = []byte(`{"error":"internal_error","message":"failed to encode error payload"}`)
	}
	return ToolResult{
		Content: []TextContent{{Type: "text", Text: string(data)}},
		IsError: true,
	}
}
