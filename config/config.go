package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all configuration for the data access layer
type Config struct {
	Mongo   MongoConfig
	Tushare TushareConfig
	Logging LoggingConfig
}

// MongoConfig holds document store connection configuration
type MongoConfig struct {
	URI      string
	Database string
	UseMock  bool
}

// TushareConfig holds the external calendar provider configuration.
// An empty token disables the provider.
type TushareConfig struct {
	Token string
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level string
}

// Load resolves configuration from environment variables with defaults.
// MONGO_URI is preferred over MONGODB_URI for the connection string.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AutomaticEnv()
	_ = v.BindEnv("mongo.uri", "MONGO_URI", "MONGODB_URI")
	_ = v.BindEnv("mongo.database", "MONGO_DB")
	_ = v.BindEnv("mongo.usemock", "USE_MOCK_MONGO")
	_ = v.BindEnv("tushare.token", "TUSHARE_TOKEN")
	_ = v.BindEnv("logging.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "finance")
	v.SetDefault("mongo.usemock", false)
	v.SetDefault("tushare.token", "")
	v.SetDefault("logging.level", "info")
}
