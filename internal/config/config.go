package config

import (
	"sync"
)

var (
	globalConfig Config
	initOnce     sync.Once
)

type Config struct {
	Server   ServerConfig   `json:"server" envPrefix:"SERVER_" validate:"required"`
	Database DatabaseConfig `json:"database" envPrefix:"DB_" validate:"required"`
	Redis    RedisConfig    `json:"redis" envPrefix:"REDIS_" validate:"required"`
	JWT      JWTConfig      `json:"jwt" envPrefix:"JWT_" validate:"required"`
	Storage  StorageConfig  `json:"storage" envPrefix:"STORAGE_" validate:"required"`
	CORS     CORSConfig     `json:"cors" envPrefix:"CORS_" validate:"required"`
	Log      LogConfig      `json:"log" envPrefix:"LOG_" validate:"required"`
	Hasher   HasherConfig   `json:"hasher" envPrefix:"HASHER_" validate:"required"`
}

type ServerConfig struct {
	Port            string   `json:"port" env:"PORT" validate:"required,numeric"`
	Host            string   `json:"host" env:"HOST" validate:"required,hostname|ip"`
	ReadTimeout     Duration `json:"read_timeout" env:"READ_TIMEOUT" validate:"required,duration_gt0"`
	WriteTimeout    Duration `json:"write_timeout" env:"WRITE_TIMEOUT" validate:"required,duration_gt0"`
	ShutdownTimeout Duration `json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" validate:"required,duration_gt0"`
	// MaxUploadBytes bounds multipart avatar uploads.
	MaxUploadBytes int64 `json:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" validate:"gt=0"`
}

type DatabaseConfig struct {
	Host           string `json:"host" env:"HOST" validate:"required,hostname|ip"`
	Port           string `json:"port" env:"PORT" validate:"required,numeric"`
	User           string `json:"user" env:"USER" validate:"required"`
	Password       string `json:"password" env:"PASSWORD" validate:"required"`
	DBName         string `json:"db_name" env:"NAME" validate:"required"`
	SSLMode        string `json:"ssl_mode" env:"SSL_MODE" validate:"required,oneof=disable require verify-ca verify-full"`
	MigrationsPath string `json:"migrations_path" env:"MIGRATIONS_PATH" validate:"required"`
}

type RedisConfig struct {
	Addr     string   `json:"addr" env:"ADDR" validate:"required,hostname_port"`
	Password string   `json:"password" env:"PASSWORD" validate:"omitempty"`
	DB       int      `json:"db" env:"DB" validate:"gte=0"`
	TTL      Duration `json:"ttl" env:"TTL" validate:"required,duration_gt0"`
}

// JWTConfig holds the two independent signing domains.
type JWTConfig struct {
	AccessSecret    string   `json:"access_secret" env:"ACCESS_SECRET" validate:"required"`
	RefreshSecret   string   `json:"refresh_secret" env:"REFRESH_SECRET" validate:"required,nefield=AccessSecret"`
	AccessTokenTTL  Duration `json:"access_token_ttl" env:"ACCESS_TOKEN_TTL" validate:"required,duration_gt0"`
	RefreshTokenTTL Duration `json:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" validate:"required,duration_gt0"`
}

type StorageConfig struct {
	// Endpoint is only set for S3-compatible servers such as MinIO.
	Endpoint        string   `json:"endpoint" env:"ENDPOINT" validate:"omitempty,url"`
	Region          string   `json:"region" env:"REGION" validate:"required"`
	Bucket          string   `json:"bucket" env:"BUCKET" validate:"required"`
	AccessKeyID     string   `json:"access_key_id" env:"ACCESS_KEY_ID" validate:"required"`
	SecretAccessKey string   `json:"secret_access_key" env:"SECRET_ACCESS_KEY" validate:"required"`
	ForcePathStyle  bool     `json:"force_path_style" env:"FORCE_PATH_STYLE"`
	PresignTTL      Duration `json:"presign_ttl" env:"PRESIGN_TTL" validate:"required,duration_gt0"`
}

type CORSConfig struct {
	FrontendURL string `json:"frontend_url" env:"FRONTEND_URL" validate:"required,url"`
}

type LogConfig struct {
	Level string `json:"level" env:"LEVEL" validate:"required,oneof=debug info warn error"`
}

type HasherConfig struct {
	// Cost is the bcrypt work factor.
	Cost int `json:"cost" env:"COST" validate:"gte=4,lte=31"`
}
