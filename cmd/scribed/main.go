package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scribelabs/scribe-core/internal/audio"
	"github.com/scribelabs/scribe-core/internal/bus"
	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/decoder"
	"github.com/scribelabs/scribe-core/internal/history"
	"github.com/scribelabs/scribe-core/internal/models"
	"github.com/scribelabs/scribe-core/internal/natsserver"
	"github.com/scribelabs/scribe-core/internal/platform"
	"github.com/scribelabs/scribe-core/internal/runtime"
	"github.com/scribelabs/scribe-core/internal/tools"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file (defaults apply when empty)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("runtime exited with error", slog.String("error", err.Error()))
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	caps := platform.Probe(cfg.Decoder)
	logger.Info("platform probed",
		slog.String("platform", caps.PlatformID),
		slog.Bool("offline", caps.OfflineDecoderAvailable),
		slog.Bool("online", caps.OnlineRecognizerAvailable),
		slog.String("backend", string(caps.RecommendedBackend)))

	cfg.Decoder.Engine = platform.ResolveEngine(cfg.Decoder.Engine, caps)
	logger.Info("decoder engine selected", slog.String("engine", cfg.Decoder.Engine))

	embedded, err := natsserver.Start(cfg.Bus, logger)
	if err != nil {
		return fmt.Errorf("start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(ctx, cfg.Bus, logger)
	if err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}
	defer busClient.Close()

	store, err := history.Open(ctx, cfg.History, logger)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	registry := models.NewRegistry(func(location string) (decoder.Model, error) {
		return decoder.Open(cfg.Decoder, location)
	}, logger)
	defer registry.Close()

	installer := models.NewInstaller(cfg.Models.Dir, logger)
	loadInitialModel(ctx, cfg, registry, installer, logger)

	normalizer := audio.NewNormalizer(logger)
	recorder := audio.NewRecorder(cfg.Capture, logger)

	gateway := tools.NewGateway(logger)
	handlers := tools.NewHandlers(cfg, caps, registry, installer, normalizer, recorder, store, busClient, logger)
	handlers.RegisterAll(gateway)

	service := tools.NewService(ctx, gateway, busClient, logger)
	if err := service.Start(); err != nil {
		return fmt.Errorf("start tool service: %w", err)
	}
	defer service.Close()

	rt := runtime.New(cfg, logger)
	rt.AddReadinessCheck(busClient.Healthy)
	rt.AddReadinessCheck(service.Healthy)

	return rt.Start(ctx)
}

// loadInitialModel makes a model available before the first request
// when possible: a model already on disk is preferred, then the
// configured default is installed. Failure leaves the registry empty,
// which transcription tools report as model_not_loaded.
func loadInitialModel(ctx context.Context, cfg config.Config, registry *models.Registry, installer *models.Installer, logger *slog.Logger) {
	if !cfg.Models.AutoLoad {
		return
	}
	switch cfg.Decoder.Engine {
	case "":
		logger.Warn("no decode backend available; transcription tools will report model_not_loaded")
		return
	case "exec", "mock":
		if err := registry.Replace(""); err != nil {
			logger.Warn("initial model load failed", slog.String("error", err.Error()))
		}
		return
	}

	prefix := decoder.ModelPrefix(cfg.Decoder.Engine)
	if location, found := models.Discover(cfg.Models.Dir, prefix); found {
		if err := registry.Replace(location); err != nil {
			logger.Warn("discovered model failed to load",
				slog.String("location", location),
				slog.String("error", err.Error()))
		}
		return
	}

	if cfg.Models.DefaultModel == "" {
		logger.Info("no model installed and no default configured; install one with the install_model tool")
		return
	}
	entry, ok := models.Lookup(cfg.Models.DefaultModel)
	if !ok {
		logger.Warn("configured default model is not in the catalog",
			slog.String("model", cfg.Models.DefaultModel))
		return
	}
	location, err := installer.Install(ctx, entry)
	if err != nil {
		logger.Warn("default model install failed",
			slog.String("model", entry.ID),
			slog.String("error", err.Error()))
		return
	}
	if err := registry.Replace(location); err != nil {
		logger.Warn("default model failed to load",
			slog.String("location", location),
			slog.String("error", err.Error()))
	}
}
