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
	ProPublica ProPublicaConfig `yaml:"propublica" mapstructure:"propublica"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ProPublicaConfig configures the Nonprofit Explorer API client.
type ProPublicaConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// CacheConfig selects and configures the snapshot backend.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ExportConfig holds defaults for tabular export.
type ExportConfig struct {
	Format          string `yaml:"format" mapstructure:"format"`
	Mode            string `yaml:"mode" mapstructure:"mode"`
	IncludeLocation bool   `yaml:"include_location" mapstructure:"include_location"`
	TitleCase       bool   `yaml:"title_case" mapstructure:"title_case"`
	FieldMapFile    string `yaml:"field_map_file" mapstructure:"field_map_file"`
	BackupFile      string `yaml:"backup_file" mapstructure:"backup_file"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures run alerts.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinResults           int     `yaml:"min_results" mapstructure:"min_results"`
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
	v.SetEnvPrefix("IRS990")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("propublica.base_url", "https://projects.propublica.org/nonprofits/api/v2/organizations")
	v.SetDefault("propublica.timeout_secs", 30)
	v.SetDefault("propublica.user_agent", "irs990-cli/1.0")
	v.SetDefault("propublica.rate_per_sec", 2.0)
	v.SetDefault("cache.driver", "file")
	v.SetDefault("cache.dir", "_data")
	v.SetDefault("cache.database_url", "")
	v.SetDefault("export.format", "csv")
	v.SetDefault("export.mode", "common")
	v.SetDefault("export.include_location", true)
	v.SetDefault("export.title_case", false)
	v.SetDefault("export.field_map_file", "")
	v.SetDefault("export.backup_file", "")
	v.SetDefault("server.port", 8990)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_results", 5)
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

// Validate checks the settings a command depends on.
func (c *Config) Validate(command string) error {
	var problems []string

	switch c.Cache.Driver {
	case "file":
		if c.Cache.Dir == "" {
			problems = append(problems, "cache.dir is required for the file driver")
		}
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			problems = append(problems, "cache.database_url is required for the postgres driver")
		}
	case "sqlite", "memory":
	default:
		problems = append(problems, "cache.driver must be one of file, sqlite, postgres, memory")
	}

	switch command {
	case "export":
		if c.Export.Format != "csv" && c.Export.Format != "xlsx" {
			problems = append(problems, "export.format must be csv or xlsx")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
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
