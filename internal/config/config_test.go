package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultIsValid 验证默认配置自身能通过校验。
func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

// TestLoadMergesWithDefaults 验证文件只覆盖写到的字段，其余回落默认值。
func TestLoadMergesWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	content := `
server:
  port: 9090
history:
  max_depth: 50
  compression_threshold: 40
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.History.MaxDepth != 50 {
		t.Fatalf("max_depth = %d, want 50", cfg.History.MaxDepth)
	}
	// 没写的字段保持默认。
	if cfg.Transition.BaseSpeed != 800*time.Millisecond {
		t.Fatalf("base_speed = %v, want default 800ms", cfg.Transition.BaseSpeed)
	}
	if cfg.Analysis.Window != 20 {
		t.Fatalf("window = %d, want default 20", cfg.Analysis.Window)
	}
}

// TestLoadParsesDurationLiterals 验证 "500ms"/"2m" 形式的时长字面量。
func TestLoadParsesDurationLiterals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	content := `
transition:
  base_speed: 500ms
  tick_interval: 20ms
history:
  ttl: 10m
  sweep_interval: 2m
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transition.BaseSpeed != 500*time.Millisecond {
		t.Fatalf("base_speed = %v, want 500ms", cfg.Transition.BaseSpeed)
	}
	if cfg.Transition.TickInterval != 20*time.Millisecond {
		t.Fatalf("tick_interval = %v, want 20ms", cfg.Transition.TickInterval)
	}
	if cfg.History.TTL != 10*time.Minute {
		t.Fatalf("ttl = %v, want 10m", cfg.History.TTL)
	}
	// 同段落里没写的 MinDuration 保持默认。
	if cfg.Transition.MinDuration != 100*time.Millisecond {
		t.Fatalf("min_duration = %v, want default 100ms", cfg.Transition.MinDuration)
	}

	// 烂时长字面量是硬错误。
	if err := os.WriteFile(path, []byte("transition:\n  base_speed: fast\n"), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for bad duration literal")
	}
}

// TestLoadHostEnvOverride 验证部署字段的环境变量覆盖。
func TestLoadHostEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte("server:\n  host: 127.0.0.1\n"), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	t.Setenv("EMOTION_ENGINE_HOST", "10.0.0.5")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "10.0.0.5" {
		t.Fatalf("host = %q, want env override", cfg.Server.Host)
	}
}

// TestValidateRejectsBadValues 验证各字段的校验边界。
func TestValidateRejectsBadValues(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero tick", func(c *Config) { c.Transition.TickInterval = 0 }},
		{"inverted duration bounds", func(c *Config) { c.Transition.MaxDuration = c.Transition.MinDuration / 2 }},
		{"zero max depth", func(c *Config) { c.History.MaxDepth = 0 }},
		{"compression above depth", func(c *Config) { c.History.CompressionThreshold = c.History.MaxDepth + 1 }},
		{"zero ttl", func(c *Config) { c.History.TTL = 0 }},
		{"zero window", func(c *Config) { c.Analysis.Window = 0 }},
		{"persistence weight one", func(c *Config) { c.Factory.PersistenceWeight = 1 }},
	}

	for _, m := range mutations {
		cfg := Default()
		m.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", m.name)
		}
	}
}

// TestLoadMissingFile 验证文件缺失是硬错误（调用方自行决定是否回落默认）。
func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/engine.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
