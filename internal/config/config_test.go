package config

import (
	"os"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != "20001" {
		t.Errorf("default server port = %s, want 20001", cfg.Server.Port)
	}
	if cfg.Tasks.MaxFileConcurrency <= 0 {
		t.Error("default max_file_concurrency must be positive")
	}
	if cfg.Tasks.TaskTimeout != 0 {
		t.Error("task timeout must default to disabled")
	}
	if cfg.OCR.MaxInflight <= 0 || cfg.LLM.MaxInflight <= 0 {
		t.Error("inflight gates must default to positive values")
	}
	if cfg.Callback.MaxRetries <= 0 {
		t.Error("callback retries must default to positive")
	}
	if cfg.LLM.Timeout != 120*time.Second {
		t.Errorf("default llm timeout = %v, want 120s", cfg.LLM.Timeout)
	}
	if cfg.OCR.PageBreak == "" {
		t.Error("page break marker must have a default")
	}
}

func TestResolveEnvVars(t *testing.T) {
	os.Setenv("DOCFIELD_TEST_KEY", "secret123")
	defer os.Unsetenv("DOCFIELD_TEST_KEY")

	t.Run("resolves env var reference", func(t *testing.T) {
		if got := ResolveEnvVars("${DOCFIELD_TEST_KEY}"); got != "secret123" {
			t.Errorf("ResolveEnvVars() = %q, want secret123", got)
		}
	})

	t.Run("passes through plain values", func(t *testing.T) {
		if got := ResolveEnvVars("plain-key"); got != "plain-key" {
			t.Errorf("ResolveEnvVars() = %q, want plain-key", got)
		}
	})

	t.Run("missing var resolves empty", func(t *testing.T) {
		if got := ResolveEnvVars("${DOCFIELD_NO_SUCH_VAR}"); got != "" {
			t.Errorf("ResolveEnvVars() = %q, want empty", got)
		}
	})
}
