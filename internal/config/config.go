package config

import (
	"fmt"
	"strings"

	"meter-backend/internal/utils"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	Port        string
	BaseURL     string
	BodyLimitMB int
	LogLevel    string
	JWTSecret   string

	Database DatabaseConfig
	Images   ImageConfig
	Media    MediaConfig
	RabbitMQ RabbitMQConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// ImageConfig controls how submitted photographs are normalized and stored
type ImageConfig struct {
	UploadDir         string
	Height            int
	Width             int
	Crop              bool
	MaxPixels         int
	AllowedExtensions []string
}

// MediaConfig points at the S3-compatible remote media host.
// An empty Endpoint disables remote mirroring.
type MediaConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	UploadRequired bool
}

// RabbitMQConfig holds event publishing settings. An empty URL disables publishing.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// Load reads configuration from the environment. Call utils.LoadEnv first to pick up a .env file.
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: utils.GetEnv("SERVICE_NAME", "meter-backend"),
		Port:        utils.GetEnv("PORT", "5000"),
		BaseURL:     strings.TrimRight(utils.GetEnv("BASE_URL", ""), "/"),
		BodyLimitMB: utils.GetEnvInt("BODY_LIMIT_MB", 20),
		LogLevel:    utils.GetEnv("LOG_LEVEL", "info"),
		JWTSecret:   utils.GetEnv("JWT_SECRET", ""),
		Database: DatabaseConfig{
			URL: databaseURL(),
		},
		Images: ImageConfig{
			UploadDir:         utils.GetEnv("UPLOAD_DIR", "static/upload/images"),
			Height:            utils.GetEnvInt("IMAGE_HEIGHT", 500),
			Width:             utils.GetEnvInt("IMAGE_WIDTH", 500),
			Crop:              utils.GetEnvBool("IMAGE_CROP", false),
			MaxPixels:         utils.GetEnvInt("IMAGE_MAX_PIXELS", 40_000_000),
			AllowedExtensions: utils.GetEnvList("ALLOWED_EXTENSIONS", []string{"png", "jpeg", "jpg", "gif"}),
		},
		Media: MediaConfig{
			Endpoint:       utils.GetEnv("MEDIA_ENDPOINT", ""),
			AccessKey:      utils.GetEnv("MEDIA_ACCESS_KEY", ""),
			SecretKey:      utils.GetEnv("MEDIA_SECRET_KEY", ""),
			Bucket:         utils.GetEnv("MEDIA_BUCKET", "meter-images"),
			UseSSL:         utils.GetEnvBool("MEDIA_USE_SSL", false),
			UploadRequired: utils.GetEnvBool("MEDIA_UPLOAD_REQUIRED", false),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      utils.GetEnv("RABBITMQ_URL", ""),
			Exchange: utils.GetEnv("RABBITMQ_EXCHANGE", "meter.events"),
		},
	}

	if cfg.Images.Height <= 0 || cfg.Images.Width <= 0 {
		return nil, fmt.Errorf("IMAGE_HEIGHT and IMAGE_WIDTH must be positive, got %dx%d", cfg.Images.Height, cfg.Images.Width)
	}
	if cfg.Images.MaxPixels < cfg.Images.Height*cfg.Images.Width {
		return nil, fmt.Errorf("IMAGE_MAX_PIXELS must be at least IMAGE_HEIGHT x IMAGE_WIDTH, got %d", cfg.Images.MaxPixels)
	}
	if cfg.BodyLimitMB <= 0 {
		return nil, fmt.Errorf("BODY_LIMIT_MB must be positive, got %d", cfg.BodyLimitMB)
	}
	if cfg.Media.UploadRequired && cfg.Media.Endpoint == "" {
		return nil, fmt.Errorf("MEDIA_UPLOAD_REQUIRED is set but MEDIA_ENDPOINT is empty")
	}

	return cfg, nil
}

// IsAllowedExtension reports whether ext (case-insensitive, no dot) may be stored.
func (c ImageConfig) IsAllowedExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range c.AllowedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}

func databaseURL() string {
	if url := utils.GetEnv("DATABASE_URL", ""); url != "" {
		return url
	}
	// Fallback to individual vars
	return "postgres://" + utils.GetEnv("POSTGRES_USER", "postgres") + ":" +
		utils.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
		utils.GetEnv("POSTGRES_HOST", "localhost") + ":" +
		utils.GetEnv("POSTGRES_PORT", "5432") + "/" +
		utils.GetEnv("POSTGRES_DB", "meter_data") + "?sslmode=disable"
}
