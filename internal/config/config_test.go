package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("a missing config file should fall back to defaults: %v", err)
	}

	if cfg.Server.BindAddress != "127.0.0.1" {
		t.Fatalf("bridge must default to loopback, got %q", cfg.Server.BindAddress)
	}
	if cfg.Server.BridgePort != 8377 || cfg.Server.MetricsPort != 9090 {
		t.Fatalf("unexpected default ports: %+v", cfg.Server)
	}
	if cfg.Storage.Type != "bolt" || cfg.Storage.Path == "" {
		t.Fatalf("unexpected default storage: %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected default logging: %+v", cfg.Logging)
	}
	if cfg.Tracking.Interval() != time.Second {
		t.Fatalf("tick interval should default to 1s, got %v", cfg.Tracking.Interval())
	}
	if cfg.Tracking.RetentionDays != 90 {
		t.Fatalf("retention should default to 90 days, got %d", cfg.Tracking.RetentionDays)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  bind_address: 0.0.0.0
  bridge_port: 9000
storage:
  type: redis
  redis:
    addr: 10.0.0.5:6379
    db: 2
tracking:
  tick_interval: 500ms
  tracked_domains:
    - reddit.com
    - news.ycombinator.com
  retention_days: 30
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.BindAddress != "0.0.0.0" || cfg.Server.BridgePort != 9000 {
		t.Fatalf("server section not applied: %+v", cfg.Server)
	}
	if cfg.Server.MetricsPort != 9090 {
		t.Fatalf("unset fields should keep defaults, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Storage.Type != "redis" || cfg.Storage.Redis.Addr != "10.0.0.5:6379" || cfg.Storage.Redis.DB != 2 {
		t.Fatalf("storage section not applied: %+v", cfg.Storage)
	}
	if cfg.Tracking.Interval() != 500*time.Millisecond {
		t.Fatalf("tick interval not applied: %v", cfg.Tracking.Interval())
	}
	if len(cfg.Tracking.TrackedDomains) != 2 || cfg.Tracking.TrackedDomains[0] != "reddit.com" {
		t.Fatalf("tracked domains not applied: %v", cfg.Tracking.TrackedDomains)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Fatalf("logging section not applied: %+v", cfg.Logging)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad bridge port", "server:\n  bridge_port: 0\n"},
		{"bad metrics port", "server:\n  metrics_port: 70000\n"},
		{"unknown storage type", "storage:\n  type: etcd\n"},
		{"empty bolt path", "storage:\n  type: bolt\n  path: \"\"\n"},
		{"empty redis addr", "storage:\n  type: redis\n  redis:\n    addr: \"\"\n"},
		{"bad tick interval", "tracking:\n  tick_interval: soon\n"},
		{"negative retention", "tracking:\n  retention_days: -1\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestIntervalFallback(t *testing.T) {
	tracking := TrackingConfig{TickInterval: "garbage"}
	if tracking.Interval() != time.Second {
		t.Fatalf("unparseable interval should fall back to 1s")
	}
	tracking.TickInterval = "2s"
	if tracking.Interval() != 2*time.Second {
		t.Fatalf("interval not parsed")
	}
}
