package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/scribelabs/scribe-core/internal/fault"
	"github.com/scribelabs/scribe-core/internal/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeErrorPayload(t *testing.T, result protocol.ToolResult) protocol.ErrorPayload {
	t.Helper()
	if !result.IsError {
		t.Fatalf("expected error result, got %+v", result)
	}
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("malformed error envelope: %+v", result)
	}
	var payload protocol.ErrorPayload
	if err := json.Unmarshal([]byte(result.Content[0].Text), &payload); err != nil {
		t.Fatalf("error payload is not JSON: %v", err)
	}
	return payload
}

func echoDescriptor() Descriptor {
	return Descriptor{
		Name:        "echo",
		Description: "test tool",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"text":  {Type: "string"},
				"count": {Type: "number"},
			},
			Required: []string{"text"},
		},
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	g := NewGateway(testLogger())
	result := g.Invoke(context.Background(), protocol.ToolRequest{Name: "nope"})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindUnknownTool) {
		t.Fatalf("expected unknown_tool, got %q", payload.Error)
	}
}

func TestInvokeMissingRequiredArgument(t *testing.T) {
	g := NewGateway(testLogger())
	called := false
	g.Register(echoDescriptor(), func(ctx context.Context, args map[string]any) (any, error) {
		called = true
		return nil, nil
	})

	result := g.Invoke(context.Background(), protocol.ToolRequest{Name: "echo"})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindInvalidArguments) {
		t.Fatalf("expected invalid_arguments, got %q", payload.Error)
	}
	if called {
		t.Fatal("handler must not run on invalid arguments")
	}
}

func TestInvokeWrongArgumentType(t *testing.T) {
	g := NewGateway(testLogger())
	g.Register(echoDescriptor(), func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	})

	result := g.Invoke(context.Background(), protocol.ToolRequest{
		Name:      "echo",
		Arguments: map[string]any{"text": "hi", "count": "not a number"},
	})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindInvalidArguments) {
		t.Fatalf("expected invalid_arguments, got %q", payload.Error)
	}
}

func TestInvokeStringPayloadPassesThrough(t *testing.T) {
	g := NewGateway(testLogger())
	g.Register(echoDescriptor(), func(ctx context.Context, args map[string]any) (any, error) {
		return args["text"].(string), nil
	})

	result := g.Invoke(context.Background(), protocol.ToolRequest{
		Name:      "echo",
		Arguments: map[string]any{"text": "hello"},
	})
	if result.IsError {
		t.Fatalf("unexpected error: %+v", result)
	}
	if result.Content[0].Text != "hello" {
		t.Fatalf("expected raw string passthrough, got %q", result.Content[0].Text)
	}
}

func TestInvokeStructPayloadSerializes(t *testing.T) {
	g := NewGateway(testLogger())
	g.Register(echoDescriptor(), func(ctx context.Context, args map[string]any) (any, error) {
		return struct {
			Text string `json:"text"`
		}{Text: "hi"}, nil
	})

	result := g.Invoke(context.Background(), protocol.ToolRequest{
		Name:      "echo",
		Arguments: map[string]any{"text": "hi"},
	})
	if result.IsError {
		t.Fatalf("unexpected error: %+v", result)
	}
	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.Text != "hi" {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestInvokeMapsFaultKinds(t *testing.T) {
	g := NewGateway(testLogger())
	g.Register(echoDescriptor(), func(ctx context.Context, args map[string]any) (any, error) {
		return nil, fault.New(fault.KindDeviceBusy, "mic held")
	})

	result := g.Invoke(context.Background(), protocol.ToolRequest{
		Name:      "echo",
		Arguments: map[string]any{"text": "hi"},
	})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindDeviceBusy) {
		t.Fatalf("expected device_busy, got %q", payload.Error)
	}
	if payload.Message != "mic held" {
		t.Fatalf("unexpected message %q", payload.Message)
	}
}

func TestInvokePlainErrorIsInternal(t *testing.T) {
	g := NewGateway(testLogger())
	g.Register(echoDescriptor(), func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	result := g.Invoke(context.Background(), protocol.ToolRequest{
		Name:      "echo",
		Arguments: map[string]any{"text": "hi"},
	})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindInternal) {
		t.Fatalf("expected internal_error, got %q", payload.Error)
	}
}

func TestInvokeRecoversHandlerPanic(t *testing.T) {
	g := NewGateway(testLogger())
	g.Register(echoDescriptor(), func(ctx context.Context, args map[string]any) (any, error) {
		panic("handler bug")
	})

	result := g.Invoke(context.Background(), protocol.ToolRequest{
		Name:      "echo",
		Arguments: map[string]any{"text": "hi"},
	})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindInternal) {
		t.Fatalf("expected internal_error, got %q", payload.Error)
	}
}

func TestCatalogKeepsRegistrationOrder(t *testing.T) {
	g := NewGateway(testLogger())
	for _, name := range []string{"c", "a", "b"} {
		g.Register(Descriptor{Name: name, InputSchema: Schema{Type: "object"}},
			func(ctx context.Context, args map[string]any) (any, error) { return "", nil })
	}
	catalog := g.Catalog()
	if len(catalog) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(catalog))
	}
	if catalog[0].Name != "c" || catalog[1].Name != "a" || catalog[2].Name != "b" {
		t.Fatalf("catalog out of order: %+v", catalog)
	}
}
