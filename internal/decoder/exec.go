package decoder

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	shellwords "github.com/mattn/go-shellwords"
	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/fault"
)

// execModel shells out to an online recognizer command. The command
// receives a WAV file path via --audio and prints a JSON object with a
// "text" field on stdout.
type execModel struct {
	cmd []string
	cfg config.DecoderConfig
	ts  time.Time
}

type execResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func newExecModel(cfg config.DecoderConfig) (Model, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.OnlineCommand)
	if err != nil {
		return nil, fault.Wrap(fault.KindLoadError, err, "parse recognizer command")
	}
	if len(args) == 0 {
		return nil, fault.New(fault.KindLoadError, "recognizer command is empty")
	}
	return &execModel{cmd: args, cfg: cfg, ts: time.Now().UTC()}, nil
}

func (m *execModel) Info() ModelInfo {
	return ModelInfo{Engine: "exec", Version: filepath.Base(m.cmd[0]), LoadedAt: m.ts}
}

func (m *execModel) NewStream(sampleRate int) (Stream, error) {
	return &execStream{model: m, sampleRate: sampleRate}, nil
}

func (m *execModel) Close() error {
	return nil
}

// execStream buffers the whole utterance: the external recognizer is
// invoked once, at Flush, against a temporary WAV file.
type execStream struct {
	mu         sync.Mutex
	model      *execModel
	sampleRate int
	pcm        []byte
}

func (s *execStream) Accept(_ context.Context, pcm []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pcm = append(s.pcm, pcm...)
	return "", nil
}

func (s *execStream) Flush(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pcm) == 0 {
		return "", nil
	}

	file, err := os.CreateTemp("", "scribe_rec_*.wav")
	if err != nil {
		return "", fault.Wrap(fault.KindInternal, err, "temp file")
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := audio.EncodeWAV(file, s.pcm, s.sampleRate, 1); err != nil {
		return "", fault.Wrap(fault.KindInternal, err, "write recognizer input")
	}

	args := append([]string{}, s.model.cmd[1:]...)
	args = append(args, "--audio", file.Name())
	if s.model.cfg.Language != "" {
		args = append(args, "--language", s.model.cfg.Language)
	}

	command := exec.CommandContext(ctx, s.model.cmd[0], args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fault.Wrap(fault.KindInternal, err, "recognizer command failed: %s", stderr.String())
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", fault.Wrap(fault.KindInternal, err, "decode recognizer response")
	}
	return resp.Text, nil
}

func (s *execStream) Close() error {
	s.pcm = nil
	return nil
}
