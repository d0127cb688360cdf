package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port             string
	ModelPath        string
	MetadataPath     string
	LibraryPath      string
	InferenceURL     string
	InferenceTimeout time.Duration
	LogLevel         string
	LogFormat        string
	MaxUploadBytes   int64
}

func Load() *Config {
	return &Config{
		Port:             getEnv("PORT", "8080"),
		ModelPath:        getEnv("MODEL_PATH", "models/digits.onnx"),
		MetadataPath:     getEnv("METADATA_PATH", "models/digits.json"),
		LibraryPath:      getEnv("ONNXRUNTIME_LIB", ""),
		InferenceURL:     getEnv("INFERENCE_URL", ""),
		InferenceTimeout: getDuration("INFERENCE_TIMEOUT", 10*time.Second),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		MaxUploadBytes:   getInt64("MAX_UPLOAD_BYTES", 10<<20),
	}
}

// Remote reports whether inference is delegated to a model service.
func (c *Config) Remote() bool {
	return c.InferenceURL != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func getInt64(key string, defaultVal int64) int64 {
	n, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}
