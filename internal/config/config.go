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

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Model       ModelConfig     `yaml:"model"`
	Codec       CodecConfig     `yaml:"codec"`
	Chunking    ChunkingConfig  `yaml:"chunking"`
	Synthesis   SynthesisConfig `yaml:"synthesis"`
	Assembly    AssemblyConfig  `yaml:"assembly"`
	Extract     ExtractConfig   `yaml:"extract"`
	Library     LibraryConfig   `yaml:"library"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// MarkerConfig carries the model-specific control token values and the
// numeric audio-token band. They belong to the deployed model checkpoint,
// so they are configuration rather than compiled-in constants.
type MarkerConfig struct {
	HeaderStart int `yaml:"header_start"`
	HeaderEnd   int `yaml:"header_end"`
	AudioStart  int `yaml:"audio_start"`
	TextEOT     int `yaml:"text_eot"`
	CodeStart   int `yaml:"code_start"`
	CodeEnd     int `yaml:"code_end"`
	CodeOffset  int `yaml:"code_offset"`
	BandMin     int `yaml:"band_min"`
	BandMax     int `yaml:"band_max"`
}

type SamplingConfig struct {
	Temperature       float64 `yaml:"temperature"`
	TopP              float64 `yaml:"top_p"`
	MaxTokens         int     `yaml:"max_tokens"`
	RepetitionPenalty float64 `yaml:"repetition_penalty"`
}

type ModelConfig struct {
	Mode     string         `yaml:"mode"` // mock, exec, server
	Command  string         `yaml:"command"`
	Endpoint string         `yaml:"endpoint"`
	Voice    string         `yaml:"voice"`
	Sampling SamplingConfig `yaml:"sampling"`
	Markers  MarkerConfig   `yaml:"markers"`
}

type CodecConfig struct {
	Mode    string `yaml:"mode"` // mock, exec
	Command string `yaml:"command"`
}

type ChunkingConfig struct {
	MaxWords int `yaml:"max_words"`
	MaxChars int `yaml:"max_chars"`
}

type SynthesisConfig struct {
	Workers     int     `yaml:"workers"`
	MaxAttempts int     `yaml:"max_attempts"`
	SilenceRMS  float64 `yaml:"silence_rms"`
	TrimSamples int     `yaml:"trim_samples"`
	FadeSamples int     `yaml:"fade_samples"`
	SampleRate  int     `yaml:"sample_rate"`
	PadPartial  bool    `yaml:"pad_partial_frames"`
}

type AssemblyConfig struct {
	Format        string  `yaml:"format"` // wav, m4b
	MuxCommand    string  `yaml:"mux_command"`
	OutputDir     string  `yaml:"output_dir"`
	ChunkGapSec   float64 `yaml:"chunk_gap_sec"`
	ChapterGapSec float64 `yaml:"chapter_gap_sec"`
	SaveChapters  bool    `yaml:"save_chapters"`
	MergeChapters bool    `yaml:"merge_chapters"`
}

type ExtractConfig struct {
	Mode    string `yaml:"mode"` // mock, exec
	Command string `yaml:"command"`
}

type LibraryConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxJobs       int    `yaml:"max_jobs"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

func Default() Config {
	return Config{
		RuntimeName: "narravox-runtime",
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
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Model: ModelConfig{
			Mode:  "mock",
			Voice: "A female speaker with a warm, calm, and clear voice, delivering the narration in a standard American English accent.",
			Sampling: SamplingConfig{
				Temperature:       0.45,
				TopP:              0.92,
				MaxTokens:         2500,
				RepetitionPenalty: 1.1,
			},
		},
		Codec: CodecConfig{
			Mode: "mock",
		},
		Chunking: ChunkingConfig{
			MaxWords: 70,
			MaxChars: 400,
		},
		Synthesis: SynthesisConfig{
			Workers:     2,
			MaxAttempts: 3,
			SilenceRMS:  1e-3,
			TrimSamples: 512,
			FadeSamples: 320,
			SampleRate:  24000,
			PadPartial:  true,
		},
		Assembly: AssemblyConfig{
			Format:        "m4b",
			MuxCommand:    "ffmpeg",
			OutputDir:     "./output",
			ChunkGapSec:   0.25,
			ChapterGapSec: 2.0,
			SaveChapters:  false,
			MergeChapters: true,
		},
		Extract: ExtractConfig{
			Mode: "mock",
		},
		Library: LibraryConfig{
			Path:          "./data/narravox-library.db",
			RetentionDays: 0,
			MaxJobs:       10000,
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
	overrideString(&cfg.RuntimeName, "NARRAVOX_RUNTIME_NAME")
	overrideString(&cfg.Environment, "NARRAVOX_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "NARRAVOX_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "NARRAVOX_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "NARRAVOX_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "NARRAVOX_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "NARRAVOX_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "NARRAVOX_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "NARRAVOX_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "NARRAVOX_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "NARRAVOX_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "NARRAVOX_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "NARRAVOX_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "NARRAVOX_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "NARRAVOX_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "NARRAVOX_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Model.Mode, "NARRAVOX_MODEL_MODE")
	overrideString(&cfg.Model.Command, "NARRAVOX_MODEL_COMMAND")
	overrideString(&cfg.Model.Endpoint, "NARRAVOX_MODEL_ENDPOINT")
	overrideString(&cfg.Model.Voice, "NARRAVOX_MODEL_VOICE")
	overrideFloat(&cfg.Model.Sampling.Temperature, "NARRAVOX_MODEL_TEMPERATURE")
	overrideFloat(&cfg.Model.Sampling.TopP, "NARRAVOX_MODEL_TOP_P")
	overrideInt(&cfg.Model.Sampling.MaxTokens, "NARRAVOX_MODEL_MAX_TOKENS")
	overrideFloat(&cfg.Model.Sampling.RepetitionPenalty, "NARRAVOX_MODEL_REPETITION_PENALTY")
	overrideString(&cfg.Codec.Mode, "NARRAVOX_CODEC_MODE")
	overrideString(&cfg.Codec.Command, "NARRAVOX_CODEC_COMMAND")
	overrideInt(&cfg.Chunking.MaxWords, "NARRAVOX_CHUNKING_MAX_WORDS")
	overrideInt(&cfg.Chunking.MaxChars, "NARRAVOX_CHUNKING_MAX_CHARS")
	overrideInt(&cfg.Synthesis.Workers, "NARRAVOX_SYNTHESIS_WORKERS")
	overrideInt(&cfg.Synthesis.MaxAttempts, "NARRAVOX_SYNTHESIS_MAX_ATTEMPTS")
	overrideFloat(&cfg.Synthesis.SilenceRMS, "NARRAVOX_SYNTHESIS_SILENCE_RMS")
	overrideInt(&cfg.Synthesis.TrimSamples, "NARRAVOX_SYNTHESIS_TRIM_SAMPLES")
	overrideInt(&cfg.Synthesis.FadeSamples, "NARRAVOX_SYNTHESIS_FADE_SAMPLES")
	overrideInt(&cfg.Synthesis.SampleRate, "NARRAVOX_SYNTHESIS_SAMPLE_RATE")
	overrideBool(&cfg.Synthesis.PadPartial, "NARRAVOX_SYNTHESIS_PAD_PARTIAL_FRAMES")
	overrideString(&cfg.Assembly.Format, "NARRAVOX_ASSEMBLY_FORMAT")
	overrideString(&cfg.Assembly.MuxCommand, "NARRAVOX_ASSEMBLY_MUX_COMMAND")
	overrideString(&cfg.Assembly.OutputDir, "NARRAVOX_ASSEMBLY_OUTPUT_DIR")
	overrideFloat(&cfg.Assembly.ChunkGapSec, "NARRAVOX_ASSEMBLY_CHUNK_GAP_SEC")
	overrideFloat(&cfg.Assembly.ChapterGapSec, "NARRAVOX_ASSEMBLY_CHAPTER_GAP_SEC")
	overrideBool(&cfg.Assembly.SaveChapters, "NARRAVOX_ASSEMBLY_SAVE_CHAPTERS")
	overrideBool(&cfg.Assembly.MergeChapters, "NARRAVOX_ASSEMBLY_MERGE_CHAPTERS")
	overrideString(&cfg.Extract.Mode, "NARRAVOX_EXTRACT_MODE")
	overrideString(&cfg.Extract.Command, "NARRAVOX_EXTRACT_COMMAND")
	overrideString(&cfg.Library.Path, "NARRAVOX_LIBRARY_PATH")
	overrideInt(&cfg.Library.RetentionDays, "NARRAVOX_LIBRARY_RETENTION_DAYS")
	overrideInt(&cfg.Library.MaxJobs, "NARRAVOX_LIBRARY_MAX_JOBS")
	overrideBool(&cfg.Library.VacuumOnStart, "NARRAVOX_LIBRARY_VACUUM_ON_START")
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

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
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
	switch cfg.Model.Mode {
	case "mock", "exec", "server":
	default:
		return errors.New("model.mode must be one of mock|exec|server")
	}
	if cfg.Model.Mode == "exec" && cfg.Model.Command == "" {
		return errors.New("model.command must be set when mode=exec")
	}
	if cfg.Model.Mode == "server" && cfg.Model.Endpoint == "" {
		return errors.New("model.endpoint must be set when mode=server")
	}
	if cfg.Model.Mode != "mock" && cfg.Model.Markers.BandMax <= cfg.Model.Markers.BandMin {
		return errors.New("model.markers.band_max must be greater than band_min")
	}
	switch cfg.Codec.Mode {
	case "mock", "exec":
	default:
		return errors.New("codec.mode must be one of mock|exec")
	}
	if cfg.Codec.Mode == "exec" && cfg.Codec.Command == "" {
		return errors.New("codec.command must be set when mode=exec")
	}
	if cfg.Chunking.MaxWords <= 0 {
		return errors.New("chunking.max_words must be positive")
	}
	if cfg.Chunking.MaxChars <= 0 {
		return errors.New("chunking.max_chars must be positive")
	}
	if cfg.Synthesis.Workers <= 0 {
		return errors.New("synthesis.workers must be >= 1")
	}
	if cfg.Synthesis.MaxAttempts <= 0 {
		return errors.New("synthesis.max_attempts must be >= 1")
	}
	if cfg.Synthesis.SampleRate <= 0 {
		return errors.New("synthesis.sample_rate must be positive")
	}
	if cfg.Synthesis.SilenceRMS < 0 {
		return errors.New("synthesis.silence_rms must be >= 0")
	}
	switch cfg.Assembly.Format {
	case "wav", "m4b":
	default:
		return errors.New("assembly.format must be one of wav|m4b")
	}
	if cfg.Assembly.Format == "m4b" && cfg.Assembly.MuxCommand == "" {
		return errors.New("assembly.mux_command must be set when format=m4b")
	}
	if cfg.Assembly.ChunkGapSec < 0 || cfg.Assembly.ChapterGapSec < 0 {
		return errors.New("assembly gaps must be >= 0")
	}
	if !cfg.Assembly.SaveChapters && !cfg.Assembly.MergeChapters {
		return errors.New("assembly must save chapter files, merge them, or both")
	}
	switch cfg.Extract.Mode {
	case "mock", "exec":
	default:
		return errors.New("extract.mode must be one of mock|exec")
	}
	if cfg.Extract.Mode == "exec" && cfg.Extract.Command == "" {
		return errors.New("extract.command must be set when mode=exec")
	}
	if cfg.Library.RetentionDays < 0 {
		return errors.New("library.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
