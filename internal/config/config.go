package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type DecoderConfig struct {
	// Engine selects the decode backend: auto, vosk, whispercpp, exec, mock.
	Engine string `yaml:"engine"`
	// SampleRate is the canonical rate the decoder expects.
	SampleRate int `yaml:"sample_rate"`
	// ChunkSamples is the fixed frame size fed to the decoder per call.
	ChunkSamples int    `yaml:"chunk_samples"`
	Language     string `yaml:"language"`
	// OnlineCommand is the recognizer command used by the exec engine.
	OnlineCommand string `yaml:"online_command"`
	DecodeTimeout int    `yaml:"decode_timeout_ms"`
}

type CaptureConfig struct {
	SampleRate        int `yaml:"sample_rate"`
	Channels          int `yaml:"channels"`
	FirstFrameTimeout int `yaml:"first_frame_timeout_ms"`
	MaxDurationS      int `yaml:"max_duration_s"`
}

type ModelsConfig struct {
	Dir          string `yaml:"dir"`
	DefaultModel string `yaml:"default_model"`
	AutoLoad     bool   `yaml:"auto_load"`
}

type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxEntries    int    `yaml:"max_entries"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Decoder     DecoderConfig   `yaml:"decoder"`
	Capture     CaptureConfig   `yaml:"capture"`
	Models      ModelsConfig    `yaml:"models"`
	History     HistoryConfig   `yaml:"history"`
}

func Default() Config {
	return Config{
		RuntimeName: "scribe-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Decoder: DecoderConfig{
			Engine:        "auto",
			SampleRate:    16000,
			ChunkSamples:  4000,
			Language:      "en",
			DecodeTimeout: 45000,
		},
		Capture: CaptureConfig{
			SampleRate:        16000,
			Channels:          1,
			FirstFrameTimeout: 3000,
			MaxDurationS:      300,
		},
		Models: ModelsConfig{
			Dir:      "./data/models",
			AutoLoad: true,
		},
		History: HistoryConfig{
			Path:          "./data/scribe-history.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxEntries:    10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "SCRIBE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "SCRIBE_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "SCRIBE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "SCRIBE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "SCRIBE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SCRIBE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SCRIBE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "SCRIBE_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "SCRIBE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "SCRIBE_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "SCRIBE_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "SCRIBE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "SCRIBE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "SCRIBE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "SCRIBE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "SCRIBE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "SCRIBE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Decoder.Engine, "SCRIBE_DECODER_ENGINE")
	overrideInt(&cfg.Decoder.SampleRate, "SCRIBE_DECODER_SAMPLE_RATE")
	overrideInt(&cfg.Decoder.ChunkSamples, "SCRIBE_DECODER_CHUNK_SAMPLES")
	overrideString(&cfg.Decoder.Language, "SCRIBE_DECODER_LANGUAGE")
	overrideString(&cfg.Decoder.OnlineCommand, "SCRIBE_DECODER_ONLINE_COMMAND")
	overrideInt(&cfg.Decoder.DecodeTimeout, "SCRIBE_DECODER_DECODE_TIMEOUT_MS")
	overrideInt(&cfg.Capture.SampleRate, "SCRIBE_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.Channels, "SCRIBE_CAPTURE_CHANNELS")
	overrideInt(&cfg.Capture.FirstFrameTimeout, "SCRIBE_CAPTURE_FIRST_FRAME_TIMEOUT_MS")
	overrideInt(&cfg.Capture.MaxDurationS, "SCRIBE_CAPTURE_MAX_DURATION_S")
	overrideString(&cfg.Models.Dir, "SCRIBE_MODELS_DIR")
	overrideString(&cfg.Models.DefaultModel, "SCRIBE_MODELS_DEFAULT_MODEL")
	overrideBool(&cfg.Models.AutoLoad, "SCRIBE_MODELS_AUTO_LOAD")
	overrideString(&cfg.History.Path, "SCRIBE_HISTORY_PATH")
	overrideString(&cfg.History.RetentionMode, "SCRIBE_HISTORY_RETENTION_MODE")
	overrideInt(&cfg.History.RetentionDays, "SCRIBE_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxEntries, "SCRIBE_HISTORY_MAX_ENTRIES")
	overrideBool(&cfg.History.VacuumOnStart, "SCRIBE_HISTORY_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Decoder.Engine {
	case "auto", "vosk", "whispercpp", "exec", "mock":
		// ok
	default:
		return errors.New("decoder.engine must be one of auto|vosk|whispercpp|exec|mock")
	}
	if cfg.Decoder.SampleRate <= 0 {
		return errors.New("decoder.sample_rate must be positive")
	}
	if cfg.Decoder.ChunkSamples <= 0 {
		return errors.New("decoder.chunk_samples must be positive")
	}
	if cfg.Decoder.Engine == "exec" && cfg.Decoder.OnlineCommand == "" {
		return errors.New("decoder.online_command must be set when engine=exec")
	}
	if cfg.Decoder.DecodeTimeout <= 0 {
		return errors.New("decoder.decode_timeout_ms must be positive")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if cfg.Capture.Channels <= 0 {
		return errors.New("capture.channels must be positive")
	}
	if cfg.Capture.FirstFrameTimeout <= 0 {
		return errors.New("capture.first_frame_timeout_ms must be positive")
	}
	if cfg.Capture.MaxDurationS <= 0 {
		return errors.New("capture.max_duration_s must be positive")
	}
	if cfg.Models.Dir == "" {
		return errors.New("models.dir must not be empty")
	}
	if cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	switch cfg.History.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("history.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
