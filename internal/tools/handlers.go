package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/decoder"
	"github.com/scribelabs/scribe-core/internal/fault"
	"github.com/scribelabs/scribe-core/internal/history"
	"github.com/scribelabs/scribe-core/internal/models"
	"github.com/scribelabs/scribe-core/internal/platform"
	"github.com/scribelabs/scribe-core/internal/protocol"
	"github.com/scribelabs/scribe-core/internal/stt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Publisher broadcasts transcript events. Nil publishers are allowed;
// broadcasting is best-effort.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Handlers binds the speech components to the tool catalog.
type Handlers struct {
	cfg        config.Config
	caps       platform.Capabilities
	registry   *models.Registry
	installer  *models.Installer
	normalizer *audio.Normalizer
	recorder   *audio.Recorder
	history    *history.Store
	publisher  Publisher
	log        *slog.Logger

	decodeDuration metric.Float64Histogram
}

func NewHandlers(
	cfg config.Config,
	caps platform.Capabilities,
	registry *models.Registry,
	installer *models.Installer,
	normalizer *audio.Normalizer,
	recorder *audio.Recorder,
	store *history.Store,
	publisher Publisher,
	log *slog.Logger,
) *Handlers {
	h := &Handlers{
		cfg:        cfg,
		caps:       caps,
		registry:   registry,
		installer:  installer,
		normalizer: normalizer,
		recorder:   recorder,
		history:    store,
		publisher:  publisher,
		log:        log.With(slog.String("component", "tool-handlers")),
	}
	meter := otel.Meter("github.com/scribelabs/scribe-core/runtime")
	histogram, err := meter.Float64Histogram("scribe.decode.duration",
		metric.WithDescription("Wall-clock decode time per transcription in seconds"),
		metric.WithUnit("s"))
	if err == nil {
		h.decodeDuration = histogram
	}
	return h
}

// RegisterAll installs every tool into the gateway.
func (h *Handlers) RegisterAll(g *Gateway) {
	g.Register(Descriptor{
		Name:        "list_supported_formats",
		Description: "List the audio formats this host can transcribe and which backend will decode them.",
		InputSchema: Schema{Type: "object"},
	}, h.listSupportedFormats)

	g.Register(Descriptor{
		Name:        "transcribe_file",
		Description: "Transcribe an audio file to text.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"file_path":  {Type: "string", Description: "Path to the audio file"},
				"language":   {Type: "string", Description: "Language hint, e.g. en"},
				"model_size": {Type: "string", Description: "Preferred installed model size, e.g. small"},
			},
			Required: []string{"file_path"},
		},
	}, h.transcribeFile)

	g.Register(Descriptor{
		Name:        "record_and_transcribe",
		Description: "Record from the microphone for a bounded duration and transcribe the result.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"duration":    {Type: "number", Description: "Recording length in seconds"},
				"language":    {Type: "string", Description: "Language hint, e.g. en"},
				"output_file": {Type: "string", Description: "Optional path to also save the recording as WAV"},
			},
			Required: []string{"duration"},
		},
	}, h.recordAndTranscribe)

	g.Register(Descriptor{
		Name:        "convert_format",
		Description: "Convert an audio file to canonical WAV (mono, 16-bit PCM).",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"file_path":     {Type: "string", Description: "Path to the input audio file"},
				"output_path":   {Type: "string", Description: "Path for the converted file"},
				"target_format": {Type: "string", Description: "Output container format; wav is the only supported value"},
				"sample_rate":   {Type: "integer", Description: "Target sample rate in Hz"},
			},
			Required: []string{"file_path", "output_path", "target_format"},
		},
	}, h.convertFormat)

	g.Register(Descriptor{
		Name:        "recent_transcripts",
		Description: "List recent transcriptions from the history store, newest first.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"limit": {Type: "integer", Description: "Maximum number of entries to return"},
			},
		},
	}, h.recentTranscripts)

	g.Register(Descriptor{
		Name:        "install_model",
		Description: "Download a decoding model from the catalog and activate it.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"model_id": {Type: "string", Description: "Catalog model identifier"},
			},
			Required: []string{"model_id"},
		},
	}, h.installModel)
}

func (h *Handlers) listSupportedFormats(ctx context.Context, args map[string]any) (any, error) {
	formats := []string{".wav"}
	if h.normalizer.ConverterAvailable() {
		for _, ext := range audio.SupportedExtensions {
			if ext != ".wav" {
				formats = append(formats, ext)
			}
		}
	}

	payload := struct {
		Formats            []string              `json:"formats"`
		ConverterAvailable bool                  `json:"converter_available"`
		Backend            platform.Backend      `json:"backend"`
		ModelLoaded        bool                  `json:"model_loaded"`
		Capabilities       platform.Capabilities `json:"capabilities"`
		AvailableModels    []string              `json:"available_models"`
	}{
		Formats:            formats,
		ConverterAvailable: h.normalizer.ConverterAvailable(),
		Backend:            h.caps.RecommendedBackend,
		ModelLoaded:        h.registry.Loaded(),
		Capabilities:       h.caps,
		AvailableModels:    models.IDs(),
	}
	return payload, nil
}

func (h *Handlers) transcribeFile(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["file_path"].(string)
	language, _ := args["language"].(string)
	if language == "" {
		language = h.cfg.Decoder.Language
	}
	if size, _ := args["model_size"].(string); size != "" {
		if err := h.ensureModelSize(size); err != nil {
			return nil, err
		}
	}

	handle, err := h.registry.Acquire()
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	normalized, err := h.normalizer.Normalize(ctx, path, h.cfg.Decoder.SampleRate)
	if err != nil {
		return nil, err
	}

	session, err := stt.Open(handle.Model(), normalized.SampleRate)
	if err != nil {
		return nil, err
	}

	decodeCtx, cancel := context.WithTimeout(ctx, time.Duration(h.cfg.Decoder.DecodeTimeout)*time.Millisecond)
	defer cancel()

	started := time.Now()

	err = session.FeedAll(decodeCtx, normalized.Samples, h.cfg.Decoder.ChunkSamples, func(segment string) {
		h.publishTranscript(session.ID(), segment, true)
	})
	if err != nil {
		_, _ = session.Finalize(decodeCtx)
		return nil, err
	}
	transcript, err := session.Finalize(decodeCtx)
	if err != nil {
		return nil, err
	}
	h.observeDecode(ctx, "transcribe_file", time.Since(started))
	h.publishTranscript(session.ID(), transcript, false)
	h.record(ctx, session.ID(), "transcribe_file", path, transcript, normalized.DurationMS())

	payload := struct {
		Transcription string `json:"transcription"`
		SourcePath    string `json:"source_path"`
		Backend       string `json:"backend"`
		Language      string `json:"language"`
		DurationMS    int64  `json:"duration_ms"`
	}{
		Transcription: transcript,
		SourcePath:    path,
		Backend:       h.backendName(handle),
		Language:      language,
		DurationMS:    normalized.DurationMS(),
	}
	return payload, nil
}

func (h *Handlers) recordAndTranscribe(ctx context.Context, args map[string]any) (any, error) {
	seconds := asFloat(args["duration"])
	maxSeconds := h.recorder.MaxDuration().Seconds()
	if seconds <= 0 || seconds > maxSeconds {
		return nil, fault.New(fault.KindInvalidArguments,
			"duration must be between 0 and %.0f seconds", maxSeconds)
	}
	language, _ := args["language"].(string)
	if language == "" {
		language = h.cfg.Decoder.Language
	}
	outputFile, _ := args["output_file"].(string)

	handle, err := h.registry.Acquire()
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	session, err := stt.Open(handle.Model(), h.cfg.Capture.SampleRate)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(seconds * float64(time.Second))
	started := time.Now()
	recording, err := h.recorder.Record(ctx, duration, func(frame []byte) error {
		segment, feedErr := session.Feed(ctx, frame)
		if feedErr != nil {
			return feedErr
		}
		if segment != "" {
			h.publishTranscript(session.ID(), segment, true)
		}
		return nil
	})
	if err != nil {
		_, _ = session.Finalize(ctx)
		return nil, err
	}

	transcript, err := session.Finalize(ctx)
	if err != nil {
		return nil, err
	}
	h.observeDecode(ctx, "record_and_transcribe", time.Since(started))
	h.publishTranscript(session.ID(), transcript, false)

	durationMS := int64(0)
	if h.cfg.Capture.SampleRate > 0 {
		durationMS = int64(len(recording)/2) * 1000 / int64(h.cfg.Capture.SampleRate)
	}
	h.record(ctx, session.ID(), "record_and_transcribe", "microphone", transcript, durationMS)

	if outputFile != "" {
		if err := audio.WriteWAVFile(outputFile, recording, h.cfg.Capture.SampleRate, h.cfg.Capture.Channels); err != nil {
			return nil, fault.Wrap(fault.KindInternal, err, "save recording to %s", outputFile)
		}
	}

	payload := struct {
		Transcription string  `json:"transcription"`
		Duration      float64 `json:"duration"`
		Backend       string  `json:"backend"`
		Language      string  `json:"language"`
		OutputFile    string  `json:"output_file,omitempty"`
	}{
		Transcription: transcript,
		Duration:      seconds,
		Backend:       h.backendName(handle),
		Language:      language,
		OutputFile:    outputFile,
	}
	return payload, nil
}

func (h *Handlers) convertFormat(ctx context.Context, args map[string]any) (any, error) {
	inputPath, _ := args["file_path"].(string)
	outputPath, _ := args["output_path"].(string)
	format, _ := args["target_format"].(string)
	if !strings.EqualFold(format, "wav") {
		return nil, fault.New(fault.KindUnsupportedFormat,
			"unsupported target format %q: only wav output is supported", format)
	}
	if !strings.EqualFold(filepath.Ext(outputPath), ".wav") {
		return nil, fault.New(fault.KindInvalidArguments, "output_path must end in .wav")
	}

	rate := h.cfg.Decoder.SampleRate
	if raw, present := args["sample_rate"]; present {
		rate = int(asFloat(raw))
		if rate <= 0 {
			return nil, fault.New(fault.KindInvalidArguments, "sample_rate must be positive")
		}
	}

	normalized, err := h.normalizer.Normalize(ctx, inputPath, rate)
	if err != nil {
		return nil, err
	}
	if err := audio.WriteWAVFile(outputPath, normalized.Samples, normalized.SampleRate, normalized.Channels); err != nil {
		return nil, fault.Wrap(fault.KindInternal, err, "write converted file %s", outputPath)
	}

	payload := struct {
		OutputPath string `json:"output_path"`
		SampleRate int    `json:"sample_rate"`
		Channels   int    `json:"channels"`
		DurationMS int64  `json:"duration_ms"`
	}{
		OutputPath: outputPath,
		SampleRate: normalized.SampleRate,
		Channels:   normalized.Channels,
		DurationMS: normalized.DurationMS(),
	}
	return payload, nil
}

func (h *Handlers) recentTranscripts(ctx context.Context, args map[string]any) (any, error) {
	limit := 20
	if raw, present := args["limit"]; present {
		limit = int(asFloat(raw))
		if limit <= 0 {
			return nil, fault.New(fault.KindInvalidArguments, "limit must be positive")
		}
	}

	type transcriptRow struct {
		Tool       string    `json:"tool"`
		Source     string    `json:"source"`
		Backend    string    `json:"backend"`
		Transcript string    `json:"transcript"`
		DurationMS int64     `json:"duration_ms"`
		CreatedAt  time.Time `json:"created_at"`
	}
	payload := struct {
		Entries []transcriptRow `json:"entries"`
	}{Entries: []transcriptRow{}}

	if h.history == nil {
		return payload, nil
	}
	entries, err := h.history.Recent(ctx, limit)
	if err != nil {
		return nil, fault.Wrap(fault.KindInternal, err, "query transcript history")
	}
	for _, e := range entries {
		payload.Entries = append(payload.Entries, transcriptRow{
			Tool:       e.Tool,
			Source:     e.Source,
			Backend:    e.Backend,
			Transcript: e.Transcript,
			DurationMS: e.DurationMS,
			CreatedAt:  e.CreatedAt,
		})
	}
	return payload, nil
}

func (h *Handlers) installModel(ctx context.Context, args map[string]any) (any, error) {
	modelID, _ := args["model_id"].(string)
	entry, ok := models.Lookup(modelID)
	if !ok {
		return nil, fault.New(fault.KindLoadError,
			"unknown model %q, available: %s", modelID, strings.Join(models.IDs(), ", "))
	}
	// Checked before any download so a mismatch costs nothing.
	if entry.Engine != h.cfg.Decoder.Engine {
		return nil, fault.New(fault.KindLoadError,
			"model %s targets engine %s but this daemon decodes with %q", entry.ID, entry.Engine, h.cfg.Decoder.Engine)
	}

	location, err := h.installer.Install(ctx, entry)
	if err != nil {
		return nil, err
	}
	if err := h.registry.Replace(location); err != nil {
		return nil, err
	}

	payload := struct {
		ModelID  string `json:"model_id"`
		Engine   string `json:"engine"`
		Location string `json:"location"`
	}{
		ModelID:  entry.ID,
		Engine:   entry.Engine,
		Location: location,
	}
	return payload, nil
}

// ensureModelSize swaps in an already-installed model matching the
// requested size label. It never downloads; a missing size tells the
// caller to run install_model first.
func (h *Handlers) ensureModelSize(size string) error {
	prefix := decoder.ModelPrefix(h.cfg.Decoder.Engine)
	if prefix == "" {
		return fault.New(fault.KindInvalidArguments,
			"engine %q does not select models by size", h.cfg.Decoder.Engine)
	}
	if h.registry.Loaded() && strings.Contains(filepath.Base(h.registry.Location()), size) {
		return nil
	}
	location, found := models.DiscoverMatch(h.cfg.Models.Dir, prefix, size)
	if !found {
		return fault.New(fault.KindLoadError,
			"no installed model matches size %q; install one with install_model", size)
	}
	return h.registry.Replace(location)
}

func (h *Handlers) backendName(handle *models.Handle) string {
	return handle.Info().Engine
}

func (h *Handlers) observeDecode(ctx context.Context, tool string, elapsed time.Duration) {
	if h.decodeDuration == nil {
		return
	}
	h.decodeDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("tool", tool)))
}

func (h *Handlers) publishTranscript(sessionID, text string, partial bool) {
	if h.publisher == nil || text == "" {
		return
	}
	subject := protocol.SubjectTranscriptFinal
	if partial {
		subject = protocol.SubjectTranscriptPartial
	}
	event := protocol.Transcript{
		SessionID: sessionID,
		Text:      text,
		Partial:   partial,
		Backend:   string(h.caps.RecommendedBackend),
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := h.publisher.Publish(subject, data); err != nil {
		h.log.Warn("transcript publish failed",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}

func (h *Handlers) record(ctx context.Context, sessionID, tool, source, transcript string, durationMS int64) {
	if h.history == nil {
		return
	}
	err := h.history.Append(ctx, history.Entry{
		SessionID:  sessionID,
		Tool:       tool,
		Source:     source,
		Backend:    string(h.caps.RecommendedBackend),
		Transcript: transcript,
		DurationMS: durationMS,
	})
	if err != nil {
		h.log.Warn("history append failed", slog.String("error", err.Error()))
	}
}

func asFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
