//go:build vosk

package decoder

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	vosk "github.com/alphacep/vosk-api/go"
	"github.com/scribelabs/scribe-core/internal/fault"
)

const voskAvailable = true

type voskModel struct {
	model *vosk.VoskModel
	info  ModelInfo
}

func newVoskModel(location string) (Model, error) {
	if _, err := os.Stat(location); err != nil {
		return nil, fault.Wrap(fault.KindLoadError, err, "vosk model not found at %s", location)
	}
	m, err := vosk.NewModel(location)
	if err != nil {
		return nil, fault.Wrap(fault.KindLoadError, err, "load vosk model %s", location)
	}
	return &voskModel{
		model: m,
		info:  ModelInfo{Engine: "vosk", Version: location, LoadedAt: time.Now().UTC()},
	}, nil
}

func (m *voskModel) Info() ModelInfo {
	return m.info
}

func (m *voskModel) NewStream(sampleRate int) (Stream, error) {
	rec, err := vosk.NewRecognizer(m.model, float64(sampleRate))
	if err != nil {
		return nil, fault.Wrap(fault.KindLoadError, err, "create vosk recognizer")
	}
	return &voskStream{rec: rec}, nil
}

func (m *voskModel) Close() error {
	m.model.Free()
	return nil
}

type voskStream struct {
	mu  sync.Mutex
	rec *vosk.VoskRecognizer
}

type voskResult struct {
	Text string `json:"text"`
}

func (s *voskStream) Accept(_ context.Context, pcm []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec.AcceptWaveform(pcm) != 0 {
		return parseVoskText(s.rec.Result())
	}
	return "", nil
}

func (s *voskStream) Flush(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return parseVoskText(s.rec.FinalResult())
}

func (s *voskStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec != nil {
		s.rec.Free()
		s.rec = nil
	}
	return nil
}

func parseVoskText(raw string) (string, error) {
	var result voskResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return "", fault.Wrap(fault.KindInternal, err, "decode vosk result")
	}
	return result.Text, nil
}
