package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	ModelPath        string
	MetadataPath     string
	ONNXRuntimeLib   string
	Threshold        float32
	InferenceTimeout time.Duration
	MaxUploadBytes   int64

	RedisAddr string
	CacheTTL  time.Duration

	DatabaseDSN string

	JWTSecret   string
	JWTAudience string

	MQTTBroker         string
	MQTTRequestTopic   string
	MQTTResponsePrefix string

	TelegramBotToken string

	LogLevel string
}

// Load reads the configuration from the environment. Malformed numeric and
// duration values fall back to their defaults.
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		ModelPath:        getEnv("MODEL_PATH", "models/model_embedded.onnx"),
		MetadataPath:     getEnv("METADATA_PATH", "models/model_metadata.json"),
		ONNXRuntimeLib:   getEnv("ONNXRUNTIME_LIB", ""),
		Threshold:        float32(getFloat("CONFIDENCE_THRESHOLD", 0.5)),
		InferenceTimeout: getDuration("INFERENCE_TIMEOUT", 10*time.Second),
		MaxUploadBytes:   getInt("MAX_UPLOAD_BYTES", 10<<20),

		RedisAddr: getEnv("REDIS_ADDR", ""),
		CacheTTL:  getDuration("CACHE_TTL", 10*time.Minute),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTAudience: getEnv("JWT_AUDIENCE", ""),

		MQTTBroker:         getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTRequestTopic:   getEnv("MQTT_REQUEST_TOPIC", "fer/classify/request"),
		MQTTResponsePrefix: getEnv("MQTT_RESPONSE_PREFIX", "fer/classify/response/"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getFloat(k string, def float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(k, ""), 64); err == nil {
		return v
	}
	return def
}

func getInt(k string, def int64) int64 {
	if v, err := strconv.ParseInt(getEnv(k, ""), 10, 64); err == nil && v > 0 {
		return v
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(k, "")); err == nil && v > 0 {
		return v
	}
	return def
}
