//go:build !vosk

package decoder

import "github.com/scribelabs/scribe-core/internal/fault"

const voskAvailable = false

func newVoskModel(location string) (Model, error) {
	return nil, fault.New(fault.KindLoadError, "binary built without vosk support (model: %s)", location)
}
