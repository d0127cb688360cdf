package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "MODEL_PATH", "METADATA_PATH", "ONNXRUNTIME_LIB",
		"INFERENCE_URL", "INFERENCE_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT", "MAX_UPLOAD_BYTES"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.ModelPath != "models/digits.onnx" {
		t.Errorf("ModelPath = %q", cfg.ModelPath)
	}
	if cfg.InferenceTimeout != 10*time.Second {
		t.Errorf("InferenceTimeout = %v, want 10s", cfg.InferenceTimeout)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 10<<20)
	}
	if cfg.Remote() {
		t.Error("Remote() = true without INFERENCE_URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("INFERENCE_URL", "http://model:5000")
	t.Setenv("INFERENCE_TIMEOUT", "250ms")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("LOG_FORMAT", "console")

	cfg := Load()
	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Port)
	}
	if !cfg.Remote() || cfg.InferenceURL != "http://model:5000" {
		t.Errorf("InferenceURL = %q", cfg.InferenceURL)
	}
	if cfg.InferenceTimeout != 250*time.Millisecond {
		t.Errorf("InferenceTimeout = %v, want 250ms", cfg.InferenceTimeout)
	}
	if cfg.MaxUploadBytes != 1024 {
		t.Errorf("MaxUploadBytes = %d, want 1024", cfg.MaxUploadBytes)
	}
	if cfg.LogFormat != "console" {
		t.Errorf("LogFormat = %q, want console", cfg.LogFormat)
	}
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("INFERENCE_TIMEOUT", "soon")
	t.Setenv("MAX_UPLOAD_BYTES", "-5")

	cfg := Load()
	if cfg.InferenceTimeout != 10*time.Second {
		t.Errorf("InferenceTimeout = %v, want default", cfg.InferenceTimeout)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes = %d, want default", cfg.MaxUploadBytes)
	}
}
