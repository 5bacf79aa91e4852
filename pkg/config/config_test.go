package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
environment: test
backend:
  type: clickhouse
sqlite:
  path: data/journal.db
`

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "test" || cfg.Backend.Type != "clickhouse" {
		t.Fatalf("parsed config: env=%q backend=%q", cfg.Environment, cfg.Backend.Type)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing environment",
			yaml: "backend:\n  type: clickhouse\nsqlite:\n  path: x.db\n",
			want: "environment",
		},
		{
			name: "unknown backend",
			yaml: "environment: test\nbackend:\n  type: postgres\nsqlite:\n  path: x.db\n",
			want: "backend.type",
		},
		{
			name: "kafka backend without brokers",
			yaml: "environment: test\nbackend:\n  type: kafka\nsqlite:\n  path: x.db\n",
			want: "kafka.brokers",
		},
		{
			name: "bad offset reset",
			yaml: minimalYAML + "kafka:\n  consumer:\n    offset_reset: newest\n",
			want: "offset_reset",
		},
		{
			name: "feed without api key",
			yaml: minimalYAML + "feed:\n  enabled: true\n  symbols: [AAPL]\n",
			want: "feed.api_key",
		},
		{
			name: "queue without redis",
			yaml: minimalYAML + "queue:\n  enabled: true\n",
			want: "redis",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("BACKEND", "clickhouse")
	t.Setenv("FEED_API_KEY", "from-env")
	t.Setenv("SYMBOLS", "AAPL,MSFT")
	t.Setenv("CLICKHOUSE_HOST", "ch.internal")

	cfg, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Feed.APIKey != "from-env" {
		t.Fatalf("api key: got %q", cfg.Feed.APIKey)
	}
	if len(cfg.Feed.Symbols) != 2 || cfg.Feed.Symbols[1] != "MSFT" {
		t.Fatalf("symbols: got %v", cfg.Feed.Symbols)
	}
	if cfg.ClickHouse.Host != "ch.internal" {
		t.Fatalf("clickhouse host: got %q", cfg.ClickHouse.Host)
	}
}

func TestEnvOverridesApplyBeforeValidation(t *testing.T) {
	// the file alone fails validation; BACKEND must rescue it
	body := "environment: test\nsqlite:\n  path: x.db\n"
	path := writeConfig(t, body)

	if _, err := Load(path); err == nil {
		t.Fatal("file without backend.type should not validate")
	}

	t.Setenv("BACKEND", "clickhouse")
	if _, err := LoadWithEnv(path); err != nil {
		t.Fatalf("env override should satisfy validation: %v", err)
	}
}
