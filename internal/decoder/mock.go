package decoder

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type mockModel struct {
	ts time.Time
}

// NewMockModel returns a development engine that describes the audio
// it consumed instead of decoding it.
func NewMockModel() Model {
	return &mockModel{ts: time.Now().UTC()}
}

func (m *mockModel) Info() ModelInfo {
	return ModelInfo{Engine: "mock", Version: "mock", LoadedAt: m.ts}
}

func (m *mockModel) NewStream(int) (Stream, error) {
	return &mockStream{}, nil
}

func (m *mockModel) Close() error {
	return nil
}

type mockStream struct {
	mu    sync.Mutex
	bytes int
}

func (s *mockStream) Accept(_ context.Context, pcm []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bytes += len(pcm)
	return "", nil
}

func (s *mockStream) Flush(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bytes == 0 {
		return "", nil
	}
	return fmt.Sprintf("[mock transcript: %d bytes]", s.bytes), nil
}

func (s *mockStream) Close() error {
	return nil
}
