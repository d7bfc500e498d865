package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the care ledger chaincode
type Config struct {
	// Logging configuration
	LogLevel string `mapstructure:"log_level"`

	// Ledger business rules
	Ledger LedgerConfig `mapstructure:"ledger"`

	// Chaincode runtime configuration
	Chaincode ChaincodeConfig `mapstructure:"chaincode"`

	// Monitoring configuration
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// LedgerConfig holds the fixed parameters of the workflow rules. Durations
// are measured in ticks.
type LedgerConfig struct {
	EncryptionKeyLength int    `mapstructure:"encryption_key_length"`
	MinHashLength       int    `mapstructure:"min_hash_length"`
	FrequencyWindow     uint64 `mapstructure:"frequency_window"`
	MaxVisitsPerWindow  uint64 `mapstructure:"max_visits_per_window"`
	OrderValidity       uint64 `mapstructure:"order_validity"`
	MinDosage           uint64 `mapstructure:"min_dosage"`
	MaxDosage           uint64 `mapstructure:"max_dosage"`
	MaxMemoLength       int    `mapstructure:"max_memo_length"`
	TickSeconds         int64  `mapstructure:"tick_seconds"`
}

// ChaincodeConfig holds chaincode runtime configuration
type ChaincodeConfig struct {
	ID            string `mapstructure:"id"`
	ServerAddress string `mapstructure:"server_address"`
	TokenChannel  string `mapstructure:"token_channel"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	MetricsAddress string  `mapstructure:"metrics_address"`
	MetricsPath    string  `mapstructure:"metrics_path"`
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
	ServiceName    string  `mapstructure:"service_name"`
}

// Load loads configuration from .env files, environment variables and config files
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/care-ledger")

	setDefaults(v)

	// Enable environment variable support
	v.SetEnvPrefix("CARELEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideWithEnv(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the default configuration without consulting the environment
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	return &config
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Ledger defaults
	v.SetDefault("ledger.encryption_key_length", 66)
	v.SetDefault("ledger.min_hash_length", 64)
	v.SetDefault("ledger.frequency_window", 144)
	v.SetDefault("ledger.max_visits_per_window", 10)
	v.SetDefault("ledger.order_validity", 1008)
	v.SetDefault("ledger.min_dosage", 1)
	v.SetDefault("ledger.max_dosage", 1000)
	v.SetDefault("ledger.max_memo_length", 34)
	v.SetDefault("ledger.tick_seconds", 600)

	// Chaincode defaults
	v.SetDefault("chaincode.id", "care-ledger")
	v.SetDefault("chaincode.server_address", "")
	v.SetDefault("chaincode.token_channel", "")

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_address", ":9443")
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.tracing_enabled", false)
	v.SetDefault("monitoring.sampling_rate", 1.0)
	v.SetDefault("monitoring.service_name", "care-ledger")

	// Logging defaults
	v.SetDefault("log_level", "info")
}

// overrideWithEnv applies the variables set by the Fabric chaincode-as-a-service runtime
func overrideWithEnv(config *Config) {
	if ccid := os.Getenv("CHAINCODE_ID"); ccid != "" {
		config.Chaincode.ID = ccid
	}

	if addr := os.Getenv("CHAINCODE_SERVER_ADDRESS"); addr != "" {
		config.Chaincode.ServerAddress = addr
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	return config.Ledger.Validate()
}

// Validate checks that the ledger rules are internally consistent
func (c LedgerConfig) Validate() error {
	if c.EncryptionKeyLength <= 0 {
		return fmt.Errorf("encryption key length must be positive: %d", c.EncryptionKeyLength)
	}

	if c.MinHashLength <= 0 {
		return fmt.Errorf("minimum hash length must be positive: %d", c.MinHashLength)
	}

	if c.FrequencyWindow == 0 || c.MaxVisitsPerWindow == 0 {
		return fmt.Errorf("frequency window and visit cap must be positive")
	}

	if c.OrderValidity == 0 {
		return fmt.Errorf("order validity must be positive")
	}

	if c.MinDosage > c.MaxDosage {
		return fmt.Errorf("invalid dosage bounds: [%d, %d]", c.MinDosage, c.MaxDosage)
	}

	if c.TickSeconds <= 0 {
		return fmt.Errorf("tick seconds must be positive: %d", c.TickSeconds)
	}

	return nil
}
