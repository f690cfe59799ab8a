package audio

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/scribelabs/scribe-core/internal/fault"
)

// SupportedExtensions lists the input containers the normalizer
// accepts when a converter is present. Canonical WAV needs no
// converter.
var SupportedExtensions = []string{".wav", ".mp3", ".flac", ".m4a", ".ogg", ".webm", ".amr"}

// Normalizer converts arbitrary input audio into canonical PCM. WAV
// files already in canonical form are read directly; everything else
// is shelled through ffmpeg into a scoped temporary file.
type Normalizer struct {
	ffmpeg string
	log    *slog.Logger
}

func NewNormalizer(log *slog.Logger) *Normalizer {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		path = ""
	}
	return &Normalizer{
		ffmpeg: path,
		log:    log.With(slog.String("component", "audio-normalizer")),
	}
}

// ConverterAvailable reports whether non-canonical input can be
// converted on this host.
func (n *Normalizer) ConverterAvailable() bool {
	return n.ffmpeg != ""
}

// Normalize converts the file at path into canonical PCM at
// targetRate. The input is never modified; intermediate artifacts are
// removed on every exit path.
func (n *Normalizer) Normalize(ctx context.Context, path string, targetRate int) (CanonicalAudio, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return CanonicalAudio{}, fault.New(fault.KindSourceNotFound, "audio file not found: %s", path)
		}
		return CanonicalAudio{}, fault.Wrap(fault.KindInternal, err, "stat audio file %s", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		pcm, rate, channels, depth, err := readWAV(path)
		if err == nil && rate == targetRate && channels == CanonicalChannels && depth == CanonicalBitDepth {
			return CanonicalAudio{SampleRate: rate, Channels: channels, BitDepth: depth, Samples: pcm}, nil
		}
		if err != nil {
			n.log.Debug("wav fast path failed, falling back to converter",
				slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	if n.ffmpeg == "" {
		return CanonicalAudio{}, fault.New(fault.KindUnsupportedFormat,
			"cannot normalize %s: no audio converter available", path)
	}

	tmp, err := os.CreateTemp("", "scribe_norm_*.wav")
	if err != nil {
		return CanonicalAudio{}, fault.Wrap(fault.KindInternal, err, "temp file")
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, n.ffmpeg,
		"-y", "-i", path,
		"-ac", strconv.Itoa(CanonicalChannels),
		"-ar", strconv.Itoa(targetRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		tmpPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return CanonicalAudio{}, fault.Wrap(fault.KindUnsupportedFormat, err,
			"convert %s: %s", path, lastLine(stderr.String()))
	}

	pcm, rate, channels, depth, err := readWAV(tmpPath)
	if err != nil {
		return CanonicalAudio{}, fault.Wrap(fault.KindUnsupportedFormat, err, "read converted audio for %s", path)
	}
	return CanonicalAudio{SampleRate: rate, Channels: channels, BitDepth: depth, Samples: pcm}, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
