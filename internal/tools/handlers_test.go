package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/decoder"
	"github.com/scribelabs/scribe-core/internal/fault"
	"github.com/scribelabs/scribe-core/internal/models"
	"github.com/scribelabs/scribe-core/internal/platform"
	"github.com/scribelabs/scribe-core/internal/protocol"
)

// scriptedModel flushes a fixed transcript. An empty script models a
// decoder that heard only silence.
type scriptedModel struct {
	transcript string
}

func (m *scriptedModel) Info() decoder.ModelInfo {
	return decoder.ModelInfo{Engine: "scripted", LoadedAt: time.Now()}
}

func (m *scriptedModel) NewStream(sampleRate int) (decoder.Stream, error) {
	return &scriptedStream{transcript: m.transcript}, nil
}

func (m *scriptedModel) Close() error { return nil }

type scriptedStream struct {
	transcript string
}

func (s *scriptedStream) Accept(ctx context.Context, pcm []byte) (string, error) { return "", nil }
func (s *scriptedStream) Flush(ctx context.Context) (string, error)              { return s.transcript, nil }
func (s *scriptedStream) Close() error                                           { return nil }

type memPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func (p *memPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = make(map[string][][]byte)
	}
	p.messages[subject] = append(p.messages[subject], data)
	return nil
}

func (p *memPublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages[subject])
}

type fixture struct {
	gateway   *Gateway
	registry  *models.Registry
	publisher *memPublisher
	modelsDir string
}

func newFixture(t *testing.T, transcript string, loadModel bool) *fixture {
	return newEngineFixture(t, "mock", transcript, loadModel)
}

func newEngineFixture(t *testing.T, engine, transcript string, loadModel bool) *fixture {
	t.Helper()
	log := testLogger()
	cfg := config.Default()
	cfg.Decoder.Engine = engine
	cfg.Models.Dir = t.TempDir()

	registry := models.NewRegistry(func(string) (decoder.Model, error) {
		return &scriptedModel{transcript: transcript}, nil
	}, log)
	if loadModel {
		if err := registry.Replace(""); err != nil {
			t.Fatalf("load test model: %v", err)
		}
	}

	caps := platform.Capabilities{
		PlatformID:         "test",
		RecommendedBackend: platform.BackendOffline,
	}
	publisher := &memPublisher{}
	handlers := NewHandlers(cfg, caps,
		registry,
		models.NewInstaller(cfg.Models.Dir, log),
		audio.NewNormalizer(log),
		audio.NewRecorder(cfg.Capture, log),
		nil,
		publisher,
		log)

	gateway := NewGateway(log)
	handlers.RegisterAll(gateway)
	return &fixture{gateway: gateway, registry: registry, publisher: publisher, modelsDir: cfg.Models.Dir}
}

func writeSilenceWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "silence.wav")
	if err := audio.WriteWAVFile(path, make([]byte, 16000*2), 16000, 1); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func TestListSupportedFormats(t *testing.T) {
	f := newFixture(t, "", true)
	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{Name: "list_supported_formats"})
	if result.IsError {
		t.Fatalf("unexpected error: %+v", result)
	}
	var payload struct {
		Formats     []string `json:"formats"`
		Backend     string   `json:"backend"`
		ModelLoaded bool     `json:"model_loaded"`
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	found := false
	for _, ext := range payload.Formats {
		if ext == ".wav" {
			found = true
		}
	}
	if !found {
		t.Fatalf("wav must always be supported, got %v", payload.Formats)
	}
	if !payload.ModelLoaded {
		t.Fatal("expected model_loaded true")
	}
}

func TestTranscribeSilenceYieldsEmptyTranscript(t *testing.T) {
	f := newFixture(t, "", true)
	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{
		Name:      "transcribe_file",
		Arguments: map[string]any{"file_path": writeSilenceWAV(t)},
	})
	if result.IsError {
		t.Fatalf("silence must not be an error: %+v", result)
	}
	var payload struct {
		Transcription string `json:"transcription"`
		DurationMS    int64  `json:"duration_ms"`
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Transcription != "" {
		t.Fatalf("expected empty transcription, got %q", payload.Transcription)
	}
	if payload.DurationMS != 1000 {
		t.Fatalf("expected 1000ms of audio, got %d", payload.DurationMS)
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	f := newFixture(t, "hello", true)
	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{
		Name:      "transcribe_file",
		Arguments: map[string]any{"file_path": filepath.Join(t.TempDir(), "missing.wav")},
	})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindSourceNotFound) {
		t.Fatalf("expected source_not_found, got %q", payload.Error)
	}
}

func TestTranscribeWithoutModel(t *testing.T) {
	f := newFixture(t, "hello", false)
	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{
		Name:      "transcribe_file",
		Arguments: map[string]any{"file_path": writeSilenceWAV(t)},
	})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindModelNotLoaded) {
		t.Fatalf("expected model_not_loaded, got %q", payload.Error)
	}
}

func TestTranscribePublishesFinalTranscript(t *testing.T) {
	f := newFixture(t, "hello world", true)
	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{
		Name:      "transcribe_file",
		Arguments: map[string]any{"file_path": writeSilenceWAV(t)},
	})
	if result.IsError {
		t.Fatalf("unexpected error: %+v", result)
	}
	if f.publisher.count(protocol.SubjectTranscriptFinal) != 1 {
		t.Fatal("expected one final transcript broadcast")
	}
}

func TestRecordRejectsBadDuration(t *testing.T) {
	f := newFixture(t, "", true)
	for _, duration := range []float64{0, -3, 301} {
		result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{
			Name:      "record_and_transcribe",
			Arguments: map[string]any{"duration": duration},
		})
		payload := decodeErrorPayload(t, result)
		if payload.Error != string(fault.KindInvalidArguments) {
			t.Fatalf("duration %v: expected invalid_arguments, got %q", duration, payload.Error)
		}
	}
}

func TestRecordRequiresDuration(t *testing.T) {
	f := newFixture(t, "", true)
	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{Name: "record_and_transcribe"})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindInvalidArguments) {
		t.Fatalf("expected invalid_arguments without a duration, got %q", payload.Error)
	}
}

func TestConvertFormatRequiresWavOutput(t *testing.T) {
	f := newFixture(t, "", true)
	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{
		Name: "convert_format",
		Arguments: map[string]any{
			"file_path":     writeSilenceWAV(t),
			"output_path":   filepath.Join(t.TempDir(), "out.mp3"),
			"target_format": "wav",
		},
	})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindInvalidArguments) {
		t.Fatalf("expected invalid_arguments, got %q", payload.Error)
	}
}

func TestConvertFormatRejectsUnsupportedTarget(t *testing.T) {
	f := newFixture(t, "", true)
	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{
		Name: "convert_format",
		Arguments: map[string]any{
			"file_path":     writeSilenceWAV(t),
			"output_path":   filepath.Join(t.TempDir(), "out.wav"),
			"target_format": "mp3",
		},
	})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindUnsupportedFormat) {
		t.Fatalf("expected unsupported_format, got %q", payload.Error)
	}
}

func TestConvertFormatRequiresTargetFormat(t *testing.T) {
	f := newFixture(t, "", true)
	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{
		Name: "convert_format",
		Arguments: map[string]any{
			"file_path":   writeSilenceWAV(t),
			"output_path": filepath.Join(t.TempDir(), "out.wav"),
		},
	})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindInvalidArguments) {
		t.Fatalf("expected invalid_arguments, got %q", payload.Error)
	}
}

func TestConvertFormatWritesCanonicalWAV(t *testing.T) {
	f := newFixture(t, "", true)
	outputPath := filepath.Join(t.TempDir(), "out.wav")
	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{
		Name: "convert_format",
		Arguments: map[string]any{
			"file_path":     writeSilenceWAV(t),
			"output_path":   outputPath,
			"target_format": "wav",
		},
	})
	if result.IsError {
		t.Fatalf("unexpected error: %+v", result)
	}
	var payload struct {
		OutputPath string `json:"output_path"`
		SampleRate int    `json:"sample_rate"`
		Channels   int    `json:"channels"`
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.SampleRate != 16000 || payload.Channels != 1 {
		t.Fatalf("output not canonical: %+v", payload)
	}
}

func TestRecentTranscriptsWithoutHistory(t *testing.T) {
	f := newFixture(t, "", true)
	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{Name: "recent_transcripts"})
	if result.IsError {
		t.Fatalf("unexpected error: %+v", result)
	}
	var payload struct {
		Entries []struct {
			Transcript string `json:"transcript"`
		} `json:"entries"`
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.Entries) != 0 {
		t.Fatalf("expected no entries without a store, got %d", len(payload.Entries))
	}
}

func TestRecentTranscriptsRejectsBadLimit(t *testing.T) {
	f := newFixture(t, "", true)
	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{
		Name:      "recent_transcripts",
		Arguments: map[string]any{"limit": float64(-1)},
	})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindInvalidArguments) {
		t.Fatalf("expected invalid_arguments, got %q", payload.Error)
	}
}

func TestInstallUnknownModel(t *testing.T) {
	f := newFixture(t, "", true)
	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{
		Name:      "install_model",
		Arguments: map[string]any{"model_id": "no-such-model"},
	})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindLoadError) {
		t.Fatalf("expected load_error, got %q", payload.Error)
	}
}

func TestInstallRejectsEngineMismatch(t *testing.T) {
	f := newEngineFixture(t, "vosk", "", false)
	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{
		Name:      "install_model",
		Arguments: map[string]any{"model_id": "whisper-tiny"},
	})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindLoadError) {
		t.Fatalf("expected load_error, got %q", payload.Error)
	}
	if !strings.Contains(payload.Message, "engine") {
		t.Fatalf("mismatch message must name the engine conflict, got %q", payload.Message)
	}
	if entries, err := os.ReadDir(f.modelsDir); err == nil && len(entries) != 0 {
		t.Fatalf("mismatched install must not touch the models dir, found %d entries", len(entries))
	}
}

func TestTranscribeModelSizeSwapsInstalledModel(t *testing.T) {
	f := newEngineFixture(t, "vosk", "spoken words", false)
	installed := filepath.Join(f.modelsDir, "vosk-model-small-en-us-0.15")
	if err := os.MkdirAll(installed, 0o755); err != nil {
		t.Fatalf("stage installed model: %v", err)
	}

	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{
		Name: "transcribe_file",
		Arguments: map[string]any{
			"file_path":  writeSilenceWAV(t),
			"model_size": "small",
		},
	})
	if result.IsError {
		t.Fatalf("unexpected error: %+v", result)
	}
	if !f.registry.Loaded() {
		t.Fatal("size hint must have loaded the installed model")
	}
	if got := f.registry.Location(); got != installed {
		t.Fatalf("expected %s to be active, got %s", installed, got)
	}
}

func TestTranscribeModelSizeNotInstalled(t *testing.T) {
	f := newEngineFixture(t, "vosk", "", false)
	result := f.gateway.Invoke(context.Background(), protocol.ToolRequest{
		Name: "transcribe_file",
		Arguments: map[string]any{
			"file_path":  writeSilenceWAV(t),
			"model_size": "small",
		},
	})
	payload := decodeErrorPayload(t, result)
	if payload.Error != string(fault.KindLoadError) {
		t.Fatalf("expected load_error for a missing size, got %q", payload.Error)
	}
}
