// Package tools exposes the speech capabilities as a named-tool
// catalog. The gateway is the single boundary between component errors
// and wire envelopes: every invocation, success or failure, returns a
// well-formed result.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/scribelabs/scribe-core/internal/fault"
	"github.com/scribelabs/scribe-core/internal/protocol"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Property describes one argument in a tool's input schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Schema is a minimal JSON-schema object for tool arguments.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Descriptor advertises one tool to clients.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"inputSchema"`
}

// Handler executes one tool. The returned payload is serialized into
// the success envelope; strings pass through as-is.
type Handler func(ctx context.Context, args map[string]any) (any, error)

type registration struct {
	descriptor Descriptor
	handler    Handler
}

// Gateway validates and dispatches tool invocations.
type Gateway struct {
	mu    sync.RWMutex
	tools map[string]registration
	order []string
	log   *slog.Logger

	invocations metric.Int64Counter
}

func NewGateway(log *slog.Logger) *Gateway {
	g := &Gateway{
		tools: make(map[string]registration),
		log:   log.With(slog.String("component", "tool-gateway")),
	}
	meter := otel.Meter("github.com/scribelabs/scribe-core/runtime")
	counter, err := meter.Int64Counter("scribe.tools.invocations",
		metric.WithDescription("Tool invocations by name and outcome"))
	if err == nil {
		g.invocations = counter
	}
	return g
}

// Register adds a tool to the catalog. Registering the same name twice
// replaces the handler but keeps catalog order.
func (g *Gateway) Register(desc Descriptor, handler Handler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.tools[desc.Name]; !exists {
		g.order = append(g.order, desc.Name)
	}
	g.tools[desc.Name] = registration{descriptor: desc, handler: handler}
}

// Catalog lists the registered tools in registration order.
func (g *Gateway) Catalog() []Descriptor {
	g.mu.RLock()
	defer g.mu.RUnlock()
	catalog := make([]Descriptor, 0, len(g.order))
	for _, name := range g.order {
		catalog = append(catalog, g.tools[name].descriptor)
	}
	return catalog
}

// Invoke runs the named tool and always returns a result envelope. A
// handler panic or error never escapes as anything other than an error
// envelope.
func (g *Gateway) Invoke(ctx context.Context, req protocol.ToolRequest) (result protocol.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("tool panicked",
				slog.String("tool", req.Name),
				slog.Any("panic", r))
			g.count(ctx, req.Name, "panic")
			result = protocol.ErrorResult(string(fault.KindInternal),
				fmt.Sprintf("tool %s failed unexpectedly", req.Name))
		}
	}()
	return g.invoke(ctx, req)
}

func (g *Gateway) invoke(ctx context.Context, req protocol.ToolRequest) protocol.ToolResult {
	g.mu.RLock()
	reg, ok := g.tools[req.Name]
	g.mu.RUnlock()
	if !ok {
		g.count(ctx, req.Name, "unknown")
		return protocol.ErrorResult(string(fault.KindUnknownTool),
			fmt.Sprintf("unknown tool: %s", req.Name))
	}

	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if err := validateArgs(reg.descriptor.InputSchema, args); err != nil {
		g.count(ctx, req.Name, "invalid")
		return g.errorResult(req.Name, err)
	}

	payload, err := reg.handler(ctx, args)
	if err != nil {
		g.count(ctx, req.Name, "error")
		return g.errorResult(req.Name, err)
	}
	g.count(ctx, req.Name, "ok")

	if text, isString := payload.(string); isString {
		return protocol.TextResult(text)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return protocol.ErrorResult(string(fault.KindInternal), "failed to encode tool result")
	}
	return protocol.TextResult(string(data))
}

func (g *Gateway) errorResult(tool string, err error) protocol.ToolResult {
	kind := fault.KindOf(err)
	if kind == fault.KindInternal {
		g.log.Error("tool failed",
			slog.String("tool", tool),
			slog.String("error", err.Error()))
	} else {
		g.log.Warn("tool failed",
			slog.String("tool", tool),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
	}
	return protocol.ErrorResult(string(kind), err.Error())
}

func (g *Gateway) count(ctx context.Context, tool, outcome string) {
	if g.invocations == nil {
		return
	}
	g.invocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome)))
}

// validateArgs rejects requests missing required fields or carrying
// values of the wrong type. Unknown extra fields are ignored.
func validateArgs(schema Schema, args map[string]any) error {
	for _, name := range schema.Required {
		if _, present := args[name]; !present {
			return fault.New(fault.KindInvalidArguments, "missing required argument: %s", name)
		}
	}
	for name, prop := range schema.Properties {
		value, present := args[name]
		if !present || value == nil {
			continue
		}
		if !typeMatches(prop.Type, value) {
			return fault.New(fault.KindInvalidArguments,
				"argument %s must be of type %s", name, prop.Type)
		}
	}
	return nil
}

func typeMatches(schemaType string, value any) bool {
	switch schemaType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	default:
		return true
	}
}
