//go:build !whispercpp

package decoder

import "github.com/scribelabs/scribe-core/internal/fault"

const whisperAvailable = false

func newWhisperModel(location string) (Model, error) {
	return nil, fault.New(fault.KindLoadError, "binary built without whisper.cpp support (model: %s)", location)
}
