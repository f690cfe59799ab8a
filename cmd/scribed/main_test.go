package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/decoder"
	"github.com/scribelabs/scribe-core/internal/models"
	"github.com/scribelabs/scribe-core/internal/platform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// A host with neither an offline decoder nor an online recognizer must
// come up with an empty registry so transcription tools answer
// model_not_loaded instead of inventing text.
func TestNoBackendLeavesRegistryEmpty(t *testing.T) {
	cfg := config.Default()
	cfg.Models.Dir = t.TempDir()
	caps := platform.Capabilities{RecommendedBackend: platform.BackendNone}
	cfg.Decoder.Engine = platform.ResolveEngine("auto", caps)
	if cfg.Decoder.Engine != "" {
		t.Fatalf("auto on a bare host must resolve to no engine, got %q", cfg.Decoder.Engine)
	}

	registry := models.NewRegistry(func(location string) (decoder.Model, error) {
		t.Fatalf("no model may load without a backend, got load of %q", location)
		return nil, nil
	}, testLogger())
	loadInitialModel(context.Background(), cfg, registry, models.NewInstaller(cfg.Models.Dir, testLogger()), testLogger())

	if registry.Loaded() {
		t.Fatal("registry must stay empty when no backend exists")
	}
}

func TestExplicitMockEngineStillLoads(t *testing.T) {
	cfg := config.Default()
	cfg.Models.Dir = t.TempDir()
	cfg.Decoder.Engine = platform.ResolveEngine("mock", platform.Capabilities{RecommendedBackend: platform.BackendNone})

	registry := models.NewRegistry(func(string) (decoder.Model, error) {
		return decoder.NewMockModel(), nil
	}, testLogger())
	loadInitialModel(context.Background(), cfg, registry, models.NewInstaller(cfg.Models.Dir, testLogger()), testLogger())

	if !registry.Loaded() {
		t.Fatal("an explicitly configured mock engine must load")
	}
}
