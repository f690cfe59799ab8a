// Package decoder abstracts speech decoding engines behind a single
// model/stream capability surface. A Model is one loaded decoding
// model; a Stream consumes canonical PCM (mono, 16-bit signed,
// little-endian) in chunks and emits recognized segments whenever the
// engine reaches an utterance boundary.
package decoder

import (
	"context"
	"time"

	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/fault"
)

// ModelInfo describes a loaded model.
type ModelInfo struct {
	Engine   string
	Version  string
	LoadedAt time.Time
}

// Stream is one incremental decode against a model. Accept returns a
// non-empty segment when the engine finalizes an utterance, and an
// empty string while it is still pending. Flush drains buffered audio
// through the end-of-stream path and returns any trailing text.
type Stream interface {
	Accept(ctx context.Context, pcm []byte) (string, error)
	Flush(ctx context.Context) (string, error)
	Close() error
}

// Model is an opaque loaded decoding model. Streams created from it
// remain valid until the model is closed; the model registry owns
// closing.
type Model interface {
	Info() ModelInfo
	NewStream(sampleRate int) (Stream, error)
	Close() error
}

// Open loads a model for the configured engine. location is the model
// file or directory for the offline engines; the exec and mock engines
// ignore it.
func Open(cfg config.DecoderConfig, location string) (Model, error) {
	switch cfg.Engine {
	case "vosk":
		return newVoskModel(location)
	case "whispercpp":
		return newWhisperModel(location)
	case "exec":
		return newExecModel(cfg)
	case "mock":
		return NewMockModel(), nil
	case "":
		return nil, fault.New(fault.KindLoadError, "no decode engine available on this host")
	default:
		return nil, fault.New(fault.KindLoadError, "unknown decoder engine %q", cfg.Engine)
	}
}

// OfflineAvailable reports whether an offline engine was compiled in.
func OfflineAvailable() bool {
	return voskAvailable || whisperAvailable
}

// DefaultOfflineEngine returns the preferred compiled-in offline
// engine, or empty when none is available.
func DefaultOfflineEngine() string {
	if voskAvailable {
		return "vosk"
	}
	if whisperAvailable {
		return "whispercpp"
	}
	return ""
}

// ModelPrefix returns the name prefix an engine's installed models
// carry under the models root, used for startup discovery.
func ModelPrefix(engine string) string {
	switch engine {
	case "vosk":
		return "vosk-model"
	case "whispercpp":
		return "ggml-"
	default:
		return ""
	}
}
