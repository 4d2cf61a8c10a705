package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// GetConfig loads the configuration once and returns the memoized instance. See Load for the order of sources.
func GetConfig() (*Config, error) {
	var loadErr error
	initOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			loadErr = err
			return
		}
		globalConfig = *cfg
	})
	if loadErr != nil {
		return nil, loadErr
	}

	return &globalConfig, nil
}

// Load sets default values to a fresh Config, then tries to override them with a .json config file
// (the path is stored in the CONFIG_PATH environment variable), then with a .env file if present,
// and finally with environment variables. The result is validated before it is returned.
func Load() (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	// Overriding values from json if it is possible
	if err := loadFromJSON(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from JSON: %w", err)
	}

	// .env is a development convenience, a missing file is fine
	_ = godotenv.Load()

	// Overriding values from env
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Server = ServerConfig{
		Port:            "8080",
		Host:            "0.0.0.0",
		ReadTimeout:     Duration(30 * time.Second),
		WriteTimeout:    Duration(30 * time.Second),
		ShutdownTimeout: Duration(10 * time.Second),
		MaxUploadBytes:  10 << 20,
	}

	cfg.Database = DatabaseConfig{
		Host:           "localhost",
		Port:           "5432",
		User:           "postgres",
		Password:       "password",
		DBName:         "auth",
		SSLMode:        "disable",
		MigrationsPath: "migrations",
	}

	cfg.Redis = RedisConfig{
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
		TTL:      Duration(50 * time.Minute),
	}

	cfg.JWT = JWTConfig{
		AccessTokenTTL:  Duration(15 * time.Minute),
		RefreshTokenTTL: Duration(7 * 24 * time.Hour),
	}

	cfg.Storage = StorageConfig{
		Region:     "us-east-1",
		Bucket:     "avatars",
		PresignTTL: Duration(time.Hour),
	}

	cfg.CORS = CORSConfig{
		FrontendURL: "http://localhost:3000",
	}

	cfg.Log = LogConfig{
		Level: "info",
	}

	cfg.Hasher = HasherConfig{
		Cost: 10,
	}
}

func loadFromJSON(cfg *Config) error {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cfg)
}

// loadFromEnv unmarshals config values from the environment
func loadFromEnv(cfg *Config) error {
	return env.Parse(cfg)
}

// getConfigPath reads path to .json config from CONFIG_PATH env variable
func getConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return filepath.Join("config", "config.json")
}

func validate(cfg *Config) error {
	validate := validator.New()

	// Custom validation for Duration type: must be greater than 0
	validate.RegisterValidation("duration_gt0", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(Duration)
		return ok && d > 0
	})

	return validate.Struct(cfg)
}
