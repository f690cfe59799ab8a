package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// malgoSource captures S16 PCM from the default input device via
// miniaudio. Frames are handed off on a buffered channel; the device
// callback never blocks.
type malgoSource struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	frames chan []byte
}

func newCaptureSource(sampleRate, channels int) (FrameSource, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}

	s := &malgoSource{
		ctx:    mctx,
		frames: make(chan []byte, 256),
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = uint32(channels)
	deviceCfg.SampleRate = uint32(sampleRate)

	device, err := malgo.InitDevice(mctx.Context, deviceCfg, malgo.DeviceCallbacks{Data: s.onData})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("initializing capture device: %w", err)
	}
	s.device = device
	return s, nil
}

func (s *malgoSource) Start() error {
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("starting capture device: %w", err)
	}
	return nil
}

func (s *malgoSource) Frames() <-chan []byte {
	return s.frames
}

func (s *malgoSource) Close() error {
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		err := s.ctx.Uninit()
		s.ctx.Free()
		s.ctx = nil
		if err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
	}
	return nil
}

func (s *malgoSource) onData(_, pSample []byte, _ uint32) {
	frame := make([]byte, len(pSample))
	copy(frame, pSample)
	select {
	case s.frames <- frame:
	default:
		// consumer is stalled; dropping is preferable to blocking the
		// device callback
	}
}
