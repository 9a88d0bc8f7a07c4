package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type testConfig struct {
	ServiceConfig `mapstructure:",squash"`
	Session       struct {
		IdleTimeout time.Duration `mapstructure:"idle_timeout"`
		SampleRate  int           `mapstructure:"sample_rate"`
	} `mapstructure:"session"`
	Summarization struct {
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"summarization"`
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected logging defaults, got level %q", cfg.Logging.Level)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	valid := func(env string) ServiceConfig {
		cfg := ServiceConfig{Name: "svc", Environment: env}
		cfg.Logging.ApplyDefaults()
		return cfg
	}
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr string
	}{
		{"development", valid("development"), ""},
		{"production", valid("production"), ""},
		{"missing name", ServiceConfig{Environment: "production"}, "config.name is required"},
		{"invalid environment", valid("qa"), "config.environment must be one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", `
name: voxrelay
environment: staging
session:
  idle_timeout: 45s
  sample_rate: 8000
`)

	var cfg testConfig
	files, err := Load("voxrelay", &cfg, WithConfigFile(path), WithEnvFile(filepath.Join(dir, "missing.env")))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if files.ConfigFile != path {
		t.Errorf("expected resolved config %q, got %q", path, files.ConfigFile)
	}
	if files.EnvFile != "" {
		t.Errorf("expected missing env file to resolve empty, got %q", files.EnvFile)
	}
	if cfg.Name != "voxrelay" || cfg.Environment != "staging" {
		t.Errorf("unexpected base config %+v", cfg.ServiceConfig)
	}
	if cfg.Session.IdleTimeout != 45*time.Second {
		t.Errorf("expected 45s idle timeout, got %v", cfg.Session.IdleTimeout)
	}
	if cfg.Session.SampleRate != 8000 {
		t.Errorf("expected sample rate 8000, got %d", cfg.Session.SampleRate)
	}
}

func TestLoadEnvOverridesFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "session:\n  idle_timeout: 45s\n")
	t.Setenv("SESSION_IDLE_TIMEOUT", "2m")
	t.Setenv("SESSION_SAMPLE_RATE", "22050")

	var cfg testConfig
	_, err := Load("voxrelay", &cfg,
		WithConfigFile(path),
		WithEnvFile(filepath.Join(dir, "missing.env")),
		WithDefaults(map[string]any{"session.sample_rate": 16000, "name": "voxrelay"}),
	)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Session.IdleTimeout != 2*time.Minute {
		t.Errorf("expected env override 2m, got %v", cfg.Session.IdleTimeout)
	}
	if cfg.Session.SampleRate != 22050 {
		t.Errorf("expected env override of defaulted key, got %d", cfg.Session.SampleRate)
	}
	if cfg.Name != "voxrelay" {
		t.Errorf("expected default name, got %q", cfg.Name)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "SUMMARIZATION_API_KEY=sk-from-dotenv\n")
	t.Setenv("SUMMARIZATION_API_KEY", "")
	os.Unsetenv("SUMMARIZATION_API_KEY")

	var cfg testConfig
	files, err := Load("voxrelay", &cfg,
		WithConfigFile(filepath.Join(dir, "none.yml")),
		WithEnvFile(envPath),
		WithDefaults(map[string]any{"summarization.api_key": ""}),
	)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if files.EnvFile != envPath {
		t.Errorf("expected env file %q, got %q", envPath, files.EnvFile)
	}
	if cfg.Summarization.APIKey != "sk-from-dotenv" {
		t.Errorf("expected api key from dotenv, got %q", cfg.Summarization.APIKey)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "session: [unclosed\n")

	var cfg testConfig
	if _, err := Load("voxrelay", &cfg, WithConfigFile(path)); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg testConfig
	files, err := Load("voxrelay", &cfg,
		WithConfigFile("/nonexistent/config.yml"),
		WithEnvFile("/nonexistent/.env"),
	)
	if err != nil {
		t.Fatalf("expected missing file to be tolerated, got %v", err)
	}
	if files.ConfigFile != "" {
		t.Errorf("expected empty resolved config, got %q", files.ConfigFile)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool  { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }

func TestResolverSearchOrder(t *testing.T) {
	tests := []struct {
		name       string
		files      map[string]bool
		wantConfig string
		wantEnv    string
	}{
		{
			"cmd directory wins",
			map[string]bool{"cmd/voxrelay/config.yml": true, "config.yml": true, ".env": true},
			"cmd/voxrelay/config.yml", ".env",
		},
		{
			"working directory fallback",
			map[string]bool{"config.yml": true, ".env.voxrelay": true, ".env": true},
			"config.yml", ".env.voxrelay",
		},
		{
			"system directory",
			map[string]bool{"/etc/voxrelay/config.yml": true},
			"/etc/voxrelay/config.yml", "",
		},
		{"nothing found", map[string]bool{}, "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &Resolver{FileSystem: &mockFS{files: tc.files}}
			got := r.ResolveFiles("voxrelay", Options{})
			if got.ConfigFile != tc.wantConfig {
				t.Errorf("config: expected %q, got %q", tc.wantConfig, got.ConfigFile)
			}
			if got.EnvFile != tc.wantEnv {
				t.Errorf("env: expected %q, got %q", tc.wantEnv, got.EnvFile)
			}
		})
	}
}

func TestResolverExplicitPaths(t *testing.T) {
	r := &Resolver{FileSystem: &mockFS{files: map[string]bool{"config.yml": true}}}
	got := r.ResolveFiles("voxrelay", Options{ConfigFile: "/srv/app.yml", EnvFile: "/srv/.env"})
	if got.ConfigFile != "/srv/app.yml" || got.EnvFile != "/srv/.env" {
		t.Errorf("expected explicit paths to be kept, got %+v", got)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"session.idle_timeout":         "SESSION_IDLE_TIMEOUT",
		"transcode.max_concurrent":     "TRANSCODE_MAX_CONCURRENT",
		"storage.s3.bucket":            "STORAGE_S3_BUCKET",
		"observability.service-name":   "OBSERVABILITY_SERVICE_NAME",
	}
	for key, want := range tests {
		if got := EnvKey(key); got != want {
			t.Errorf("EnvKey(%q) = %q, want %q", key, got, want)
		}
	}
}
