package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseURL        string
	RedisURL           string
	NATSServerURL      string
	JWTSecret          string
	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioUseSSL        bool
	RubricBucket       string
	SubmissionBucket   string
	OpenAIAPIKey       string
	ExtractionModel    string
	GradingModel       string
	VisionModel        string
	StorageTimeout     time.Duration
	AITimeout          time.Duration
	ResultCacheTTL     time.Duration
	RubricRateLimit    int
	GradingRateLimit   int
	MaxRubricBytes     int64
	MaxSubmissionBytes int64
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADELAB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GradeLab API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("rubric.bucket", "rubrics")
	v.SetDefault("submission.bucket", "submissions")
	v.SetDefault("ai.extraction_model", "gpt-4o-mini")
	v.SetDefault("ai.grading_model", "gpt-4o")
	v.SetDefault("ai.vision_model", "gpt-4o")
	v.SetDefault("storage.timeout", "30s")
	v.SetDefault("ai.timeout", "120s")
	v.SetDefault("result.cache_ttl", "30s")
	v.SetDefault("rate.rubric_per_minute", 10)
	v.SetDefault("rate.grading_per_minute", 20)
	v.SetDefault("rubric.max_bytes", 5*1024*1024)
	v.SetDefault("submission.max_bytes", 10*1024*1024)

	storageTimeout, err := time.ParseDuration(v.GetString("storage.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid storage timeout: %w", err)
	}

	aiTimeout, err := time.ParseDuration(v.GetString("ai.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ai timeout: %w", err)
	}

	cacheTTL, err := time.ParseDuration(v.GetString("result.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid result cache ttl: %w", err)
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSServerURL:      v.GetString("nats.url"),
		JWTSecret:          v.GetString("jwt.secret"),
		MinioEndpoint:      v.GetString("minio.endpoint"),
		MinioAccessKey:     v.GetString("minio.access_key"),
		MinioSecretKey:     v.GetString("minio.secret_key"),
		MinioUseSSL:        v.GetBool("minio.use_ssl"),
		RubricBucket:       v.GetString("rubric.bucket"),
		SubmissionBucket:   v.GetString("submission.bucket"),
		OpenAIAPIKey:       v.GetString("openai_api_key"),
		ExtractionModel:    v.GetString("ai.extraction_model"),
		GradingModel:       v.GetString("ai.grading_model"),
		VisionModel:        v.GetString("ai.vision_model"),
		StorageTimeout:     storageTimeout,
		AITimeout:          aiTimeout,
		ResultCacheTTL:     cacheTTL,
		RubricRateLimit:    v.GetInt("rate.rubric_per_minute"),
		GradingRateLimit:   v.GetInt("rate.grading_per_minute"),
		MaxRubricBytes:     v.GetInt64("rubric.max_bytes"),
		MaxSubmissionBytes: v.GetInt64("submission.max_bytes"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.RubricRateLimit <= 0 {
		cfg.RubricRateLimit = 10
	}

	if cfg.GradingRateLimit <= 0 {
		cfg.GradingRateLimit = 20
	}

	return cfg, nil
}
