// Package stt drives incremental decoding: a Session feeds canonical
// PCM to a decoder stream in bounded chunks and accumulates the
// recognized segments into a transcript.
package stt

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/scribelabs/scribe-core/internal/decoder"
	"github.com/scribelabs/scribe-core/internal/fault"
)

// DefaultChunkSamples is the fixed decode frame size. It trades
// partial-result latency against per-call decode overhead.
const DefaultChunkSamples = 4000

// Session is one in-flight transcription. It borrows the model for its
// whole lifetime and is used by a single goroutine.
type Session struct {
	id         string
	stream     decoder.Stream
	sampleRate int
	segments   []string
	finalized  bool
	transcript string
}

// Open starts a session against a borrowed model.
func Open(model decoder.Model, sampleRate int) (*Session, error) {
	stream, err := model.NewStream(sampleRate)
	if err != nil {
		return nil, err
	}
	return &Session{
		id:         uuid.NewString(),
		stream:     stream,
		sampleRate: sampleRate,
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

// Feed pushes one chunk of canonical PCM into the decoder. When the
// decoder reaches an utterance boundary the recognized segment is
// accumulated and returned; otherwise the result is empty. Chunk
// boundaries carry no meaning: the decoder alone decides where
// utterances end.
func (s *Session) Feed(ctx context.Context, chunk []byte) (string, error) {
	if s.finalized {
		return "", fault.New(fault.KindSessionClosed, "session %s is finalized", s.id)
	}
	text, err := s.stream.Accept(ctx, chunk)
	if err != nil {
		return "", err
	}
	if text != "" {
		s.segments = append(s.segments, text)
	}
	return text, nil
}

// FeedAll splits pcm into fixed-size chunks and feeds them in order.
// onSegment, when non-nil, observes each recognized segment as it is
// produced.
func (s *Session) FeedAll(ctx context.Context, pcm []byte, chunkSamples int, onSegment func(string)) error {
	if chunkSamples <= 0 {
		chunkSamples = DefaultChunkSamples
	}
	chunkBytes := chunkSamples * 2
	for offset := 0; offset < len(pcm); offset += chunkBytes {
		end := offset + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		text, err := s.Feed(ctx, pcm[offset:end])
		if err != nil {
			return err
		}
		if text != "" && onSegment != nil {
			onSegment(text)
		}
	}
	return nil
}

// Finalize drains the decoder's end-of-stream path and returns the
// full transcript: accumulated segments joined with single spaces,
// trimmed. Zero-length input yields an empty transcript, not an error.
// Finalizing twice returns the same transcript.
func (s *Session) Finalize(ctx context.Context) (string, error) {
	if s.finalized {
		return s.transcript, nil
	}
	tail, err := s.stream.Flush(ctx)
	if err != nil {
		return "", err
	}
	if tail != "" {
		s.segments = append(s.segments, tail)
	}
	s.finalized = true
	s.transcript = strings.TrimSpace(strings.Join(s.segments, " "))
	_ = s.stream.Close()
	return s.transcript, nil
}

// Finalized reports whether the session has been closed out.
func (s *Session) Finalized() bool {
	return s.finalized
}
