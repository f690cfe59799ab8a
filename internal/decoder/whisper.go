//go:build whispercpp

package decoder

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/scribelabs/scribe-core/internal/fault"
)

const whisperAvailable = true

// whisperModel decodes in batch: whisper.cpp has no incremental API,
// so the stream buffers accepted chunks and emits everything at Flush.
type whisperModel struct {
	model whisper.Model
	info  ModelInfo
}

func newWhisperModel(location string) (Model, error) {
	if _, err := os.Stat(location); err != nil {
		return nil, fault.Wrap(fault.KindLoadError, err, "whisper model not found at %s", location)
	}
	m, err := whisper.New(location)
	if err != nil {
		return nil, fault.Wrap(fault.KindLoadError, err, "load whisper model %s", location)
	}
	return &whisperModel{
		model: m,
		info:  ModelInfo{Engine: "whispercpp", Version: location, LoadedAt: time.Now().UTC()},
	}, nil
}

func (m *whisperModel) Info() ModelInfo {
	return m.info
}

func (m *whisperModel) NewStream(sampleRate int) (Stream, error) {
	return &whisperStream{model: m.model}, nil
}

func (m *whisperModel) Close() error {
	return m.model.Close()
}

type whisperStream struct {
	mu    sync.Mutex
	model whisper.Model
	pcm   []byte
}

func (s *whisperStream) Accept(_ context.Context, pcm []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pcm = append(s.pcm, pcm...)
	return "", nil
}

func (s *whisperStream) Flush(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pcm) == 0 {
		return "", nil
	}

	wctx, err := s.model.NewContext()
	if err != nil {
		return "", fault.Wrap(fault.KindInternal, err, "create whisper context")
	}
	if err := wctx.Process(pcmToFloat32(s.pcm), nil, nil, nil); err != nil {
		return "", fault.Wrap(fault.KindInternal, err, "whisper decode")
	}

	var segments []string
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fault.Wrap(fault.KindInternal, err, "read whisper segment")
		}
		segments = append(segments, seg.Text)
	}
	return strings.TrimSpace(strings.Join(segments, " ")), nil
}

func (s *whisperStream) Close() error {
	s.pcm = nil
	return nil
}

func pcmToFloat32(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return samples
}
