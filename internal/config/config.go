package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Extract   ExtractConfig
	Exchange  ExchangeConfig
	Archive   ArchiveConfig
	Warehouse WarehouseConfig
	Users     []UserConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port     string
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// ExtractConfig holds generative-model and transcription settings.
type ExtractConfig struct {
	Model          string
	TranscriberURL string `mapstructure:"transcriber_url"`
}

// ExchangeConfig holds exchange-rate provider settings. The API key travels
// in the URL per the provider's contract.
type ExchangeConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// ArchiveConfig holds the optional GCS receipt archive settings. An empty
// bucket disables archiving.
type ArchiveConfig struct {
	Bucket string
}

// WarehouseConfig holds the optional BigQuery export settings.
type WarehouseConfig struct {
	Project string
	Dataset string
	Table   string
}

// UserConfig is one user seeded into the directory at startup.
type UserConfig struct {
	ID              string
	Token           string
	DefaultCurrency string `mapstructure:"default_currency"`
	Language        string
	Tags            []string
	Locations       []string
}

// Load reads configuration from file and env. Env var overrides use prefix
// BILLFOLD_ (e.g. BILLFOLD_DATABASE_PATH); users can only come from the file.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.path", "billfold.db")
	v.SetDefault("extract.model", "gemini-2.5-flash")
	v.SetDefault("extract.transcriber_url", "")
	v.SetDefault("exchange.base_url", "https://v6.exchangerate-api.com/v6")
	v.SetDefault("exchange.api_key", "")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("warehouse.project", "")
	v.SetDefault("warehouse.dataset", "billfold")
	v.SetDefault("warehouse.table", "transactions")

	v.SetConfigType("toml")

	if cfgPath := os.Getenv("BILLFOLD_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("billfold")
	}

	v.SetEnvPrefix("BILLFOLD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
