package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration, loaded from features.yaml.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Archive ArchiveConfig `mapstructure:"archive"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	Intent  IntentConfig  `mapstructure:"intent"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Logging LoggingConfig `mapstructure:"logging"`
	Auth    AuthConfig    `mapstructure:"auth"`
}

type ServerConfig struct {
	Port        int `mapstructure:"port"`
	HealthPort  int `mapstructure:"health_port"`
	MetricsPort int `mapstructure:"metrics_port"`
}

type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"` // "sqlite3" or "postgres"
	DSN     string `mapstructure:"dsn"`
	Workers int    `mapstructure:"workers"`
}

type LLMConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ToolsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	InvokeTimeout  time.Duration `mapstructure:"invoke_timeout"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	WeatherAPIKey  string        `mapstructure:"weather_api_key"`
	AmapAPIKey     string        `mapstructure:"amap_api_key"`
	TrainAPIKey    string        `mapstructure:"train_api_key"`
	FileRoot       string        `mapstructure:"file_root"`
	DefaultLogPath string        `mapstructure:"default_log_path"`
}

type IntentConfig struct {
	LexiconFile string `mapstructure:"lexicon_file"`
}

type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// Load reads configuration from CONFIG_PATH (default ./config/features.yaml),
// applying env overrides and defaults.
func Load() (*Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "./config/features.yaml"
	}

	v := viper.New()
	v.SetConfigFile(cfgPath)
	setDefaults(v)

	v.SetEnvPrefix("DESKMIND")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine; defaults plus env carry the service.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Env overrides kept for compatibility with standard deployments.
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		c.Redis.Password = pw
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.metrics_port", 2112)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.session_ttl", 24*time.Hour)
	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.driver", "sqlite3")
	v.SetDefault("archive.dsn", "./data/conversations.db")
	v.SetDefault("archive.workers", 2)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("tools.enabled", true)
	v.SetDefault("tools.invoke_timeout", 10*time.Second)
	v.SetDefault("tools.rate_per_second", 5.0)
	v.SetDefault("tools.file_root", "/app")
	v.SetDefault("tools.default_log_path", "/app/logs/app.log")
	v.SetDefault("tracing.service_name", "deskmind-orchestrator")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
