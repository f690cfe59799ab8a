package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/scribelabs/scribe-core/internal/bus"
	"github.com/scribelabs/scribe-core/internal/fault"
	"github.com/scribelabs/scribe-core/internal/protocol"
)

// Service serves the tool catalog over the bus: request/reply on the
// invoke subject, catalog announcements on the catalog subject.
type Service struct {
	gateway *Gateway
	bus     *bus.Client
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	sub    *nats.Subscription
	wg     sync.WaitGroup
	ready  bool
}

func NewService(parent context.Context, gateway *Gateway, busClient *bus.Client, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		gateway: gateway,
		bus:     busClient,
		log:     log.With(slog.String("component", "tool-service")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes for invocations and announces the catalog.
func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectToolInvoke, s.handleInvoke)
	if err != nil {
		return fmt.Errorf("subscribe tool invocations: %w", err)
	}
	s.sub = sub

	if err := s.announceCatalog(); err != nil {
		s.log.Warn("catalog announcement failed", slog.String("error", err.Error()))
	}
	s.ready = true
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return s.ready
}

func (s *Service) announceCatalog() error {
	data, err := json.Marshal(s.gateway.Catalog())
	if err != nil {
		return err
	}
	return s.bus.Publish(protocol.SubjectToolCatalog, data)
}

// handleInvoke runs each invocation on its own goroutine so one slow
// transcription does not stall the subscription. Exclusive resources
// guard themselves: concurrent recordings fail fast inside the
// recorder, not here.
func (s *Service) handleInvoke(msg *nats.Msg) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		var req protocol.ToolRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			s.respond(msg, protocol.ErrorResult(string(fault.KindInvalidArguments),
				"malformed tool request: "+err.Error()))
			return
		}
		if req.Name == "" {
			s.respond(msg, protocol.ErrorResult(string(fault.KindInvalidArguments),
				"tool request missing name"))
			return
		}

		s.log.Info("tool invoked", slog.String("tool", req.Name))
		result := s.gateway.Invoke(s.ctx, req)
		s.respond(msg, result)
	}()
}

func (s *Service) respond(msg *nats.Msg, result protocol.ToolResult) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		s.log.Error("failed to encode tool result", slog.String("error", err.Error()))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.log.Warn("failed to send tool reply", slog.String("error", err.Error()))
	}
}
