package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the BookVoice server.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Translation TranslationConfig
	TTS         TTSConfig
	Pipeline    PipelineConfig
	Audio       AudioConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type StorageConfig struct {
	// ArtifactDir holds write-once blobs: translated text, audio segments,
	// merged chapter files.
	ArtifactDir string
	// LibraryDir holds extracted book text, maintained by the upload layer.
	LibraryDir string
}

type TranslationConfig struct {
	Provider    string
	TargetLang  string
	CallTimeout time.Duration
	SiliconFlow SiliconFlowConfig
}

type SiliconFlowConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type TTSConfig struct {
	Provider    string
	Voice       string
	Speed       float64
	CallTimeout time.Duration
	Azure       AzureConfig
	F5TTS       F5TTSConfig
}

type AzureConfig struct {
	Key    string
	Region string
}

type F5TTSConfig struct {
	BaseURL      string
	PollInterval time.Duration
}

type PipelineConfig struct {
	MaxChunkChars int
	Workers       int
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffCap    time.Duration
}

type AudioConfig struct {
	FFmpegPath  string
	FFprobePath string
	SegmentGap  time.Duration
	ChapterGap  time.Duration
}

var validTranslationProviders = map[string]bool{
	"siliconflow": true,
}

var validTTSProviders = map[string]bool{
	"azure": true,
	"f5tts": true,
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("BOOKVOICE_PORT", 8080),
			Env:  envString("BOOKVOICE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Storage: StorageConfig{
			ArtifactDir: envString("STORAGE_ARTIFACT_DIR", "./storage/artifacts"),
			LibraryDir:  envString("STORAGE_LIBRARY_DIR", "./storage/library"),
		},
		Translation: TranslationConfig{
			Provider:    envString("TRANSLATION_PROVIDER", "siliconflow"),
			TargetLang:  envString("TRANSLATION_TARGET_LANG", "zh"),
			CallTimeout: envDurationSecs("TRANSLATION_CALL_TIMEOUT_SECS", 120*time.Second),
			SiliconFlow: SiliconFlowConfig{
				APIKey:  os.Getenv("SILICONFLOW_API_KEY"),
				BaseURL: envString("SILICONFLOW_BASE_URL", "https://api.siliconflow.cn/v1"),
				Model:   envString("SILICONFLOW_MODEL", "Qwen/Qwen2.5-7B-Instruct"),
			},
		},
		TTS: TTSConfig{
			Provider:    os.Getenv("TTS_PROVIDER"),
			Voice:       envString("TTS_VOICE", "zh-CN-XiaoxiaoNeural"),
			Speed:       envFloat("TTS_SPEED", 1.0),
			CallTimeout: envDurationSecs("TTS_CALL_TIMEOUT_SECS", 300*time.Second),
			Azure: AzureConfig{
				Key:    os.Getenv("AZURE_TTS_KEY"),
				Region: os.Getenv("AZURE_TTS_REGION"),
			},
			F5TTS: F5TTSConfig{
				BaseURL:      envString("F5TTS_BASE_URL", "http://f5tts-service:8001"),
				PollInterval: envDuration("F5TTS_POLL_INTERVAL", 2*time.Second),
			},
		},
		Pipeline: PipelineConfig{
			MaxChunkChars: envInt("PIPELINE_MAX_CHUNK_CHARS", 1000),
			Workers:       envInt("PIPELINE_WORKERS", 4),
			MaxRetries:    envInt("PIPELINE_MAX_RETRIES", 3),
			BackoffBase:   envDuration("PIPELINE_BACKOFF_BASE", time.Second),
			BackoffCap:    envDuration("PIPELINE_BACKOFF_CAP", 30*time.Second),
		},
		Audio: AudioConfig{
			FFmpegPath:  envString("FFMPEG_PATH", "ffmpeg"),
			FFprobePath: envString("FFPROBE_PATH", "ffprobe"),
			SegmentGap:  envDuration("AUDIO_SEGMENT_GAP", 500*time.Millisecond),
			ChapterGap:  envDuration("AUDIO_CHAPTER_GAP", 2*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validTranslationProviders[c.Translation.Provider] {
		return fmt.Errorf("TRANSLATION_PROVIDER must be one of siliconflow; got %q", c.Translation.Provider)
	}
	if c.Translation.Provider == "siliconflow" && c.Translation.SiliconFlow.APIKey == "" {
		return fmt.Errorf("SILICONFLOW_API_KEY is required when TRANSLATION_PROVIDER is siliconflow")
	}

	if c.TTS.Provider == "" {
		return fmt.Errorf("TTS_PROVIDER is required")
	}
	if !validTTSProviders[c.TTS.Provider] {
		return fmt.Errorf("TTS_PROVIDER must be one of azure, f5tts; got %q", c.TTS.Provider)
	}
	if c.TTS.Provider == "azure" && (c.TTS.Azure.Key == "" || c.TTS.Azure.Region == "") {
		return fmt.Errorf("AZURE_TTS_KEY and AZURE_TTS_REGION are required when TTS_PROVIDER is azure")
	}
	if c.TTS.Provider == "f5tts" {
		u := c.TTS.F5TTS.BaseURL
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("F5TTS_BASE_URL must start with http:// or https://, got %q", u)
		}
	}

	if c.Pipeline.MaxChunkChars <= 0 {
		return fmt.Errorf("PIPELINE_MAX_CHUNK_CHARS must be positive, got %d", c.Pipeline.MaxChunkChars)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("PIPELINE_WORKERS must be positive, got %d", c.Pipeline.Workers)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
