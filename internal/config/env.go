package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	SslCertPath  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	RedisURL     string

	AIAPIKey        string
	EmbedModel      string
	EmbedDim        int
	GenModel        string
	TranscribeModel string

	WhisperAPIKey string
	WhisperURL    string
	WhisperModel  string

	Port      string
	JWTSecret string
	LogMode   string
	UploadDir string
	WorkDir   string
	FFmpeg    string
	FFprobe   string

	CORSOrigins     []string
	MaxUploadBytes  int64
	TokenTTL        time.Duration
	DeckReadability bool

	NumWorkers int
	Pipeline   PipelineConfig
}

// PipelineConfig holds the tunables of the ingestion pipeline. They can be
// overridden from env or from the YAML file named by PIPELINE_CONFIG.
type PipelineConfig struct {
	TranscriptionMode  string        `yaml:"transcription_mode"` // auto | gemini | whisper
	ChunkSeconds       int           `yaml:"chunk_seconds"`
	DefaultLanguage    string        `yaml:"default_language"`
	QuizQuestions      int           `yaml:"quiz_questions"`
	SummaryMaxWords    int           `yaml:"summary_max_words"`
	AudioFormat        string        `yaml:"audio_format"`  // mp3 | wav | flac
	AudioBitrate       string        `yaml:"audio_bitrate"` // mp3 only
	AudioAttempts      int           `yaml:"audio_attempts"`
	AudioRetryDelay    time.Duration `yaml:"audio_retry_delay"`
	SlideAttempts      int           `yaml:"slide_attempts"`
	SlideRetryDelay    time.Duration `yaml:"slide_retry_delay"`
	RetryAttempts      int           `yaml:"retry_attempts"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
	BreakerThreshold   int           `yaml:"breaker_threshold"`
	BreakerWindow      time.Duration `yaml:"breaker_window"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`
	CacheSweepInterval time.Duration `yaml:"cache_sweep_interval"`
	ProgressTTL        time.Duration `yaml:"progress_ttl"`
}

// LoadConfig loads the environment variables and return config
func LoadConfig() (*Config, error) {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SslCertPath:  getEnv("SSL_CERT_PATH", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "lectern-uploads"),
		RedisURL:     getEnv("REDIS_URL", ""),

		AIAPIKey:        getEnv("GEMINI_API_KEY", ""),
		EmbedModel:      getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:        getEnvInt("EMBED_DIM", 768),
		GenModel:        getEnv("GEN_MODEL", "gemini-1.5-flash"),
		TranscribeModel: getEnv("TRANSCRIBE_MODEL", "gemini-1.5-flash"),

		WhisperAPIKey: getEnv("OPENAI_API_KEY", ""),
		WhisperURL:    getEnv("WHISPER_URL", "https://api.openai.com/v1/audio/transcriptions"),
		WhisperModel:  getEnv("WHISPER_MODEL", "whisper-1"),

		Port:      getEnv("PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", ""),
		LogMode:   getEnv("LOG_MODE", "development"),
		UploadDir: getEnv("UPLOAD_DIR", "./uploads"),
		WorkDir:   getEnv("WORK_DIR", os.TempDir()),
		FFmpeg:    getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobe:   getEnv("FFPROBE_PATH", "ffprobe"),

		CORSOrigins:     getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		MaxUploadBytes:  int64(getEnvInt("MAX_UPLOAD_MB", 2048)) << 20,
		TokenTTL:        getEnvDuration("TOKEN_TTL", 24*time.Hour),
		DeckReadability: getEnvBool("DECK_READABILITY", false),

		NumWorkers: getEnvInt("INGEST_WORKERS", 2),
		Pipeline:   pipelineFromEnv(),
	}

	if path := getEnv("PIPELINE_CONFIG", ""); path != "" {
		if err := loadPipelineFile(path, &cfg.Pipeline); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPipeline returns the pipeline defaults.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		TranscriptionMode:  "auto",
		ChunkSeconds:       300,
		DefaultLanguage:    "en",
		QuizQuestions:      10,
		SummaryMaxWords:    500,
		AudioFormat:        "mp3",
		AudioBitrate:       "64k",
		AudioAttempts:      3,
		AudioRetryDelay:    time.Second,
		SlideAttempts:      2,
		SlideRetryDelay:    500 * time.Millisecond,
		RetryAttempts:      3,
		RetryDelay:         time.Second,
		BreakerThreshold:   5,
		BreakerWindow:      time.Minute,
		BreakerTimeout:     30 * time.Second,
		CacheTTL:           24 * time.Hour,
		CacheSweepInterval: time.Hour,
		ProgressTTL:        6 * time.Hour,
	}
}

func pipelineFromEnv() PipelineConfig {
	d := DefaultPipeline()
	return PipelineConfig{
		TranscriptionMode:  strings.ToLower(getEnv("TRANSCRIPTION_MODE", d.TranscriptionMode)),
		ChunkSeconds:       getEnvInt("CHUNK_SECONDS", d.ChunkSeconds),
		DefaultLanguage:    getEnv("DEFAULT_LANGUAGE", d.DefaultLanguage),
		QuizQuestions:      getEnvInt("QUIZ_QUESTIONS", d.QuizQuestions),
		SummaryMaxWords:    getEnvInt("SUMMARY_MAX_WORDS", d.SummaryMaxWords),
		AudioFormat:        strings.ToLower(getEnv("AUDIO_FORMAT", d.AudioFormat)),
		AudioBitrate:       getEnv("AUDIO_BITRATE", d.AudioBitrate),
		AudioAttempts:      getEnvInt("AUDIO_ATTEMPTS", d.AudioAttempts),
		AudioRetryDelay:    getEnvDuration("AUDIO_RETRY_DELAY", d.AudioRetryDelay),
		SlideAttempts:      getEnvInt("SLIDE_ATTEMPTS", d.SlideAttempts),
		SlideRetryDelay:    getEnvDuration("SLIDE_RETRY_DELAY", d.SlideRetryDelay),
		RetryAttempts:      getEnvInt("RETRY_ATTEMPTS", d.RetryAttempts),
		RetryDelay:         getEnvDuration("RETRY_DELAY", d.RetryDelay),
		BreakerThreshold:   getEnvInt("BREAKER_THRESHOLD", d.BreakerThreshold),
		BreakerWindow:      getEnvDuration("BREAKER_WINDOW", d.BreakerWindow),
		BreakerTimeout:     getEnvDuration("BREAKER_TIMEOUT", d.BreakerTimeout),
		CacheTTL:           getEnvDuration("CACHE_TTL", d.CacheTTL),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", d.CacheSweepInterval),
		ProgressTTL:        getEnvDuration("PROGRESS_TTL", d.ProgressTTL),
	}
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET not set")
	}
	if c.AIAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY not set")
	}
	if c.NumWorkers <= 0 {
		return fmt.Errorf("INGEST_WORKERS must be > 0, got %d", c.NumWorkers)
	}
	return c.Pipeline.Validate()
}

// Validate checks the pipeline tunables.
func (p *PipelineConfig) Validate() error {
	switch p.TranscriptionMode {
	case "auto", "gemini", "whisper":
	default:
		return fmt.Errorf("transcription_mode must be auto, gemini or whisper, got %q", p.TranscriptionMode)
	}
	if p.ChunkSeconds <= 0 {
		return fmt.Errorf("chunk_seconds must be > 0")
	}
	switch p.AudioFormat {
	case "mp3", "wav", "flac":
	default:
		return fmt.Errorf("audio_format must be mp3, wav or flac, got %q", p.AudioFormat)
	}
	if p.QuizQuestions <= 0 {
		return fmt.Errorf("quiz_questions must be > 0")
	}
	if p.AudioAttempts <= 0 || p.SlideAttempts <= 0 || p.RetryAttempts <= 0 {
		return fmt.Errorf("retry attempt counts must be > 0")
	}
	if p.BreakerThreshold <= 0 {
		return fmt.Errorf("breaker_threshold must be > 0")
	}
	if p.CacheTTL <= 0 || p.CacheSweepInterval <= 0 {
		return fmt.Errorf("cache_ttl and cache_sweep_interval must be > 0")
	}
	return nil
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a bool, using default %t", key, v, def)
		return def
	}
	return b
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
