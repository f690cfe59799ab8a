// Package platform probes the running host for usable decoding
// backends and selects one deterministically.
package platform

import (
	"os/exec"
	"runtime"

	shellwords "github.com/mattn/go-shellwords"
	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/decoder"
)

// Backend identifies a decode backend family.
type Backend string

const (
	BackendOffline Backend = "offline"
	BackendOnline  Backend = "online"
	BackendNone    Backend = "none"
)

// Capabilities is an immutable snapshot of what the host can do.
// Recomputed only at process start or on explicit re-probe.
type Capabilities struct {
	PlatformID                string  `json:"platform_id"`
	OfflineDecoderAvailable   bool    `json:"offline_decoder_available"`
	OnlineRecognizerAvailable bool    `json:"online_recognizer_available"`
	OfflineCapable            bool    `json:"offline_capable"`
	RecommendedBackend        Backend `json:"recommended_backend"`
}

// Probe inspects the host. It never fails: a capability that cannot be
// acquired is recorded as unavailable.
func Probe(cfg config.DecoderConfig) Capabilities {
	caps := Capabilities{
		PlatformID:              runtime.GOOS + "-" + runtime.GOARCH,
		OfflineDecoderAvailable: decoder.OfflineAvailable(),
	}
	caps.OfflineCapable = caps.OfflineDecoderAvailable
	caps.OnlineRecognizerAvailable = commandUsable(cfg.OnlineCommand)
	caps.RecommendedBackend = Select(caps)
	return caps
}

// Select picks a backend from a capability snapshot. Pure and total:
// offline decoding is preferred unconditionally, then online, then
// none.
func Select(caps Capabilities) Backend {
	switch {
	case caps.OfflineDecoderAvailable:
		return BackendOffline
	case caps.OnlineRecognizerAvailable:
		return BackendOnline
	default:
		return BackendNone
	}
}

// ResolveEngine maps the configured engine name to a concrete one,
// honoring the probe outcome when set to auto. When no backend exists
// the result is empty: decode tools then report model_not_loaded
// instead of silently degrading. The mock engine is reachable only by
// configuring it explicitly.
func ResolveEngine(engine string, caps Capabilities) string {
	if engine != "auto" {
		return engine
	}
	switch caps.RecommendedBackend {
	case BackendOffline:
		return decoder.DefaultOfflineEngine()
	case BackendOnline:
		return "exec"
	default:
		return ""
	}
}

func commandUsable(command string) bool {
	if command == "" {
		return false
	}
	args, err := shellwords.NewParser().Parse(command)
	if err != nil || len(args) == 0 {
		return false
	}
	_, err = exec.LookPath(args[0])
	return err == nil
}
