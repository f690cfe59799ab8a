package platform

import (
	"testing"

	"github.com/scribelabs/scribe-core/internal/config"
)

func TestSelectPrefersOffline(t *testing.T) {
	cases := []struct {
		offline bool
		online  bool
		want    Backend
	}{
		{true, true, BackendOffline},
		{true, false, BackendOffline},
		{false, true, BackendOnline},
		{false, false, BackendNone},
	}
	for _, tc := range cases {
		caps := Capabilities{
			OfflineDecoderAvailable:   tc.offline,
			OnlineRecognizerAvailable: tc.online,
		}
		if got := Select(caps); got != tc.want {
			t.Fatalf("offline=%v online=%v: expected %s, got %s", tc.offline, tc.online, tc.want, got)
		}
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	caps := Capabilities{OfflineDecoderAvailable: true, OnlineRecognizerAvailable: true}
	first := Select(caps)
	for i := 0; i < 10; i++ {
		if Select(caps) != first {
			t.Fatal("selection changed between identical snapshots")
		}
	}
}

func TestProbeNeverFails(t *testing.T) {
	caps := Probe(config.DecoderConfig{OnlineCommand: "definitely-not-a-real-binary --json"})
	if caps.PlatformID == "" {
		t.Fatal("expected a platform identifier")
	}
	if caps.OnlineRecognizerAvailable {
		t.Fatal("nonexistent command must probe as unavailable")
	}
	if caps.RecommendedBackend != Select(caps) {
		t.Fatal("recommended backend must match selector output")
	}
}

func TestResolveEngineHonorsExplicitChoice(t *testing.T) {
	caps := Capabilities{RecommendedBackend: BackendNone}
	if got := ResolveEngine("mock", caps); got != "mock" {
		t.Fatalf("explicit engine must pass through, got %q", got)
	}
}

func TestResolveEngineAuto(t *testing.T) {
	if got := ResolveEngine("auto", Capabilities{RecommendedBackend: BackendOnline}); got != "exec" {
		t.Fatalf("expected exec for online backend, got %q", got)
	}
	if got := ResolveEngine("auto", Capabilities{RecommendedBackend: BackendNone}); got != "" {
		t.Fatalf("no backend must resolve to no engine, got %q", got)
	}
	if got := ResolveEngine("mock", Capabilities{RecommendedBackend: BackendNone}); got != "mock" {
		t.Fatalf("explicit mock config must stay reachable, got %q", got)
	}
}
