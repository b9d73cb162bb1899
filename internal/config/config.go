package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	PDF       PDFConfig       `yaml:"pdf" mapstructure:"pdf"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// OCRConfig configures the Tesseract worker pool.
type OCRConfig struct {
	PoolSize          int     `yaml:"pool_size" mapstructure:"pool_size"`
	Language          string  `yaml:"language" mapstructure:"language"`
	MinWordConfidence float64 `yaml:"min_word_confidence" mapstructure:"min_word_confidence"`
}

// PDFConfig configures page rendering and the embedded-text fast path.
type PDFConfig struct {
	RasterScale      float64 `yaml:"raster_scale" mapstructure:"raster_scale"`
	EmbeddedMinChars int     `yaml:"embedded_min_chars" mapstructure:"embedded_min_chars"`
	TempDir          string  `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	RequestsPerMinute int     `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// ExtractConfig configures structured field extraction chunking.
type ExtractConfig struct {
	ChunkCeiling int `yaml:"chunk_ceiling" mapstructure:"chunk_ceiling"`
	ChunkOverlap int `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
}

// ReconcileConfig configures source reconciliation.
type ReconcileConfig struct {
	MaxBlocks     int     `yaml:"max_blocks" mapstructure:"max_blocks"`
	PhraseWindow  int     `yaml:"phrase_window" mapstructure:"phrase_window"`
	ContextRadius float64 `yaml:"context_radius" mapstructure:"context_radius"`
	ClusterRadius float64 `yaml:"cluster_radius" mapstructure:"cluster_radius"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHARTSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ocr.pool_size", 4)
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.min_word_confidence", 27.5)
	v.SetDefault("pdf.raster_scale", 2.0)
	v.SetDefault("pdf.embedded_min_chars", 100)
	v.SetDefault("pdf.temp_dir", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("anthropic.requests_per_minute", 30)
	v.SetDefault("extract.chunk_ceiling", 10000)
	v.SetDefault("extract.chunk_overlap", 1000)
	v.SetDefault("reconcile.max_blocks", 4)
	v.SetDefault("reconcile.phrase_window", 20)
	v.SetDefault("reconcile.context_radius", 150)
	v.SetDefault("reconcile.cluster_radius", 120)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
