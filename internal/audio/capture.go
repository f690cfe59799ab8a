package audio

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/fault"
)

// FrameSource produces capture frames of canonical PCM in strict FIFO
// order. Implementations own the underlying device.
type FrameSource interface {
	Start() error
	Frames() <-chan []byte
	Close() error
}

// SourceFactory opens a capture source bound to the microphone.
type SourceFactory func(sampleRate, channels int) (FrameSource, error)

// Recorder captures bounded stretches of audio from the microphone.
// The device is an exclusive resource: a second concurrent recording
// fails fast instead of blocking or multiplexing.
type Recorder struct {
	cfg       config.CaptureConfig
	newSource SourceFactory
	log       *slog.Logger
	busy      atomic.Bool
}

func NewRecorder(cfg config.CaptureConfig, log *slog.Logger) *Recorder {
	return &Recorder{
		cfg:       cfg,
		newSource: newCaptureSource,
		log:       log.With(slog.String("component", "audio-recorder")),
	}
}

// Record captures up to duration of canonical PCM. Each frame is
// forwarded to sink (when non-nil) in capture order before the next
// frame is read, then the full recording is returned. If the device
// yields no data within the configured first-frame timeout the call
// fails instead of hanging.
func (r *Recorder) Record(ctx context.Context, duration time.Duration, sink func(pcm []byte) error) ([]byte, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, fault.New(fault.KindDeviceBusy, "capture device is held by another recording")
	}
	defer r.busy.Store(false)

	src, err := r.newSource(r.cfg.SampleRate, r.cfg.Channels)
	if err != nil {
		return nil, fault.Wrap(fault.KindDeviceBusy, err, "acquire capture device")
	}
	defer src.Close()

	if err := src.Start(); err != nil {
		return nil, fault.Wrap(fault.KindDeviceBusy, err, "start capture device")
	}

	deadline := time.NewTimer(duration)
	defer deadline.Stop()
	firstFrame := time.NewTimer(time.Duration(r.cfg.FirstFrameTimeout) * time.Millisecond)
	defer firstFrame.Stop()

	var recording []byte
	received := false
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-firstFrame.C:
			if !received {
				return nil, fault.New(fault.KindRecordingTimeout,
					"capture device produced no data within %dms", r.cfg.FirstFrameTimeout)
			}
		case <-deadline.C:
			return recording, nil
		case frame, ok := <-src.Frames():
			if !ok {
				return recording, nil
			}
			received = true
			recording = append(recording, frame...)
			if sink != nil {
				if err := sink(frame); err != nil {
					return nil, err
				}
			}
		}
	}
}

// MaxDuration is the longest recording the configuration allows.
func (r *Recorder) MaxDuration() time.Duration {
	return time.Duration(r.cfg.MaxDurationS) * time.Second
}
