package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	STT       STTConfig
	TTS       TTSConfig
	Audio     AudioConfig
	Temp      TempConfig
	Align     AlignConfig
	Worker    WorkerConfig
	Log       LogConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string // empty disables bearer auth
}

type STTConfig struct {
	Backend       string // "openai" or "local"
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	LocalBaseURL  string // whisper.cpp server, default "http://localhost:8178"
	Language      string
	BeamSize      int
}

type TTSConfig struct {
	Backend        string // "styletts", "openai" or "local"
	StyleTTSURL    string
	OpenAIKey      string
	OpenAIBaseURL  string
	OpenAIModel    string
	OpenAIVoice    string
	LocalBinPath   string // default: "piper"
	LocalModel     string // required when backend=local
	LocalRate      int    // sample rate of the piper voice
	SampleRate     int
	Alpha          float64
	DiffusionSteps int
	EmbeddingScale float64
}

type AudioConfig struct {
	FFmpegPath string
	SampleRate int // transcription input rate
}

type TempConfig struct {
	Dir string
}

type AlignConfig struct {
	Workers        int
	MaxCells       int // per request, summed over examples
	JobTTL         time.Duration
	CallbackSecret string   // signs job completion callbacks
	CallbackHosts  []string // private hosts callbacks may target
}

type WorkerConfig struct {
	Concurrency int
	MetricsAddr string // empty disables the worker's /metrics listener
}

type LogConfig struct {
	Level string
}

// SlogLevel maps LOG_LEVEL onto slog; unknown values mean info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load reads settings from the environment after applying the .env file
// named by ENV_FILE (default ".env"). A missing .env file is not an error.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	var p parser

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         p.int("SERVER_PORT", 8000),
			ReadTimeout:  p.duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: p.duration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:  p.duration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       p.int("DB_MAX_CONNS", 10),
			MinConns:       p.int("DB_MIN_CONNS", 1),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       p.int("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		STT: STTConfig{
			Backend:       getEnv("STT_BACKEND", "local"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("STT_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("STT_OPENAI_MODEL", "whisper-1"),
			LocalBaseURL:  getEnv("STT_LOCAL_BASE_URL", "http://localhost:8178"),
			Language:      getEnv("STT_LANGUAGE", "en"),
			BeamSize:      p.int("STT_BEAM_SIZE", 5),
		},
		TTS: TTSConfig{
			Backend:        getEnv("TTS_BACKEND", "styletts"),
			StyleTTSURL:    getEnv("TTS_STYLETTS_URL", "http://localhost:7860"),
			OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:  getEnv("TTS_OPENAI_BASE_URL", ""),
			OpenAIModel:    getEnv("TTS_OPENAI_MODEL", "tts-1"),
			OpenAIVoice:    getEnv("TTS_OPENAI_VOICE", "alloy"),
			LocalBinPath:   getEnv("TTS_LOCAL_PIPER_BIN", "piper"),
			LocalModel:     getEnv("TTS_LOCAL_PIPER_MODEL", ""),
			LocalRate:      p.int("TTS_LOCAL_PIPER_SAMPLE_RATE", 22050),
			SampleRate:     p.int("TTS_SAMPLE_RATE", 24000),
			Alpha:          p.float("TTS_ALPHA", 0.7),
			DiffusionSteps: p.int("TTS_DIFFUSION_STEPS", 20),
			EmbeddingScale: p.float("TTS_EMBEDDING_SCALE", 1),
		},
		Audio: AudioConfig{
			FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),
			SampleRate: p.int("STT_SAMPLE_RATE", 16000),
		},
		Temp: TempConfig{
			Dir: getEnv("TEMP_DIR", "temp_files"),
		},
		Align: AlignConfig{
			Workers:        p.int("ALIGN_WORKERS", 0),
			MaxCells:       p.int("ALIGN_MAX_CELLS", 16_000_000),
			JobTTL:         p.duration("ALIGN_JOB_TTL", time.Hour),
			CallbackSecret: getEnv("ALIGN_CALLBACK_SECRET", ""),
			CallbackHosts:  splitList(getEnv("ALIGN_CALLBACK_ALLOW_HOSTS", "")),
		},
		Worker: WorkerConfig{
			Concurrency: p.int("WORKER_CONCURRENCY", 10),
			MetricsAddr: getEnv("WORKER_METRICS_ADDR", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		RateLimit: RateLimitConfig{
			RPS:   p.float("RATE_LIMIT_RPS", 50),
			Burst: p.int("RATE_LIMIT_BURST", 100),
		},
	}

	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("SERVER_PORT out of range: %d", c.Server.Port))
	}

	switch c.STT.Backend {
	case "openai":
		if c.STT.OpenAIKey == "" {
			problems = append(problems, "OPENAI_API_KEY required for STT_BACKEND=openai")
		}
	case "local":
	default:
		problems = append(problems, fmt.Sprintf("unknown STT_BACKEND %q", c.STT.Backend))
	}

	switch c.TTS.Backend {
	case "styletts":
		if c.TTS.StyleTTSURL == "" {
			problems = append(problems, "TTS_STYLETTS_URL required for TTS_BACKEND=styletts")
		}
	case "openai":
		if c.TTS.OpenAIKey == "" {
			problems = append(problems, "OPENAI_API_KEY required for TTS_BACKEND=openai")
		}
	case "local":
		if c.TTS.LocalModel == "" {
			problems = append(problems, "TTS_LOCAL_PIPER_MODEL required for TTS_BACKEND=local")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown TTS_BACKEND %q", c.TTS.Backend))
	}

	if c.TTS.SampleRate <= 0 {
		problems = append(problems, "TTS_SAMPLE_RATE must be positive")
	}
	if c.TTS.DiffusionSteps <= 0 {
		problems = append(problems, "TTS_DIFFUSION_STEPS must be positive")
	}
	if c.Audio.SampleRate <= 0 {
		problems = append(problems, "STT_SAMPLE_RATE must be positive")
	}
	if c.Align.Workers < 0 {
		problems = append(problems, "ALIGN_WORKERS must be non-negative")
	}
	if c.Align.MaxCells <= 0 {
		problems = append(problems, "ALIGN_MAX_CELLS must be positive")
	}

	if c.Worker.Concurrency <= 0 {
		problems = append(problems, "WORKER_CONCURRENCY must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parser collects conversion errors so Load can report all of them.
type parser struct {
	errs []error
}

func (p *parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return n
}

func (p *parser) float(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return f
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
