package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/buildpro/pkg/observability"
)

func validConfig() Config {
	return Config{
		Environment: EnvironmentDevelopment,
		Server:      ServerConfig{Host: "0.0.0.0", Port: "8000"},
		Database:    DatabaseConfig{URL: "postgres://localhost/buildpro"},
		Auth: AuthConfig{
			SecretKey:       "dev-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		Storage: StorageConfig{
			Backend:        StorageBackendFilesystem,
			FilesystemRoot: "/tmp/uploads",
			MaxUploadSize:  1024,
		},
		RateLimit: RateLimitConfig{Enabled: true, RequestsPerMinute: 100, AuthRequestsPerMinute: 10},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BUILDPRO_AUTH_SECRET_KEY", "dev-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ProjectName != "BuildPro" {
		t.Errorf("ProjectName = %q, want BuildPro", cfg.ProjectName)
	}
	if cfg.Auth.AccessTokenTTL != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 15m", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Auth.RefreshTokenTTL != 7*24*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want 168h", cfg.Auth.RefreshTokenTTL)
	}
	if cfg.Storage.MaxUploadSize != 52428800 {
		t.Errorf("MaxUploadSize = %d, want 52428800", cfg.Storage.MaxUploadSize)
	}
	if len(cfg.Storage.AllowedExtensions) != 13 {
		t.Errorf("AllowedExtensions = %v, want 13 entries", cfg.Storage.AllowedExtensions)
	}
	if cfg.RateLimit.RequestsPerMinute != 100 || cfg.RateLimit.AuthRequestsPerMinute != 10 {
		t.Errorf("RateLimit = %+v, want 100/10", cfg.RateLimit)
	}
	if cfg.Redis.Enabled() {
		t.Error("Redis should be disabled by default")
	}
	if cfg.IsProduction() {
		t.Error("default environment should not be production")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BUILDPRO_AUTH_SECRET_KEY", "dev-secret")
	t.Setenv("BUILDPRO_SERVER_PORT", "9999")
	t.Setenv("BUILDPRO_AUTH_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("BUILDPRO_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("BUILDPRO_OBSERVABILITY_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "9999" {
		t.Errorf("Server.Port = %q, want 9999", cfg.Server.Port)
	}
	if cfg.Auth.AccessTokenTTL != 5*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 5m", cfg.Auth.AccessTokenTTL)
	}
	if !cfg.Redis.Enabled() {
		t.Error("Redis should be enabled when URL is set")
	}
	if cfg.Observability.Level() != observability.DebugLevel {
		t.Errorf("Level() = %v, want debug", cfg.Observability.Level())
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "buildpro.yaml")
	content := `
auth:
  secret_key: file-secret
storage:
  backend: s3
  s3_bucket: buildpro-docs
  allowed_extensions: [PDF, "png"]
cors:
  allowed_origins:
    - https://app.example.com
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.SecretKey != "file-secret" {
		t.Errorf("SecretKey = %q, want file-secret", cfg.Auth.SecretKey)
	}
	if cfg.Storage.Backend != StorageBackendS3 || cfg.Storage.S3Bucket != "buildpro-docs" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if got := strings.Join(cfg.Storage.AllowedExtensions, ","); got != ".pdf,.png" {
		t.Errorf("AllowedExtensions = %q, want .pdf,.png", got)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Error("Load() should fail without a secret key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "short production secret", mutate: func(c *Config) {
			c.Environment = EnvironmentProduction
			c.Auth.SecretKey = "short"
		}, wantErr: true},
		{name: "long production secret", mutate: func(c *Config) {
			c.Environment = EnvironmentProduction
			c.Auth.SecretKey = strings.Repeat("k", 32)
		}, wantErr: false},
		{name: "unknown environment", mutate: func(c *Config) { c.Environment = "moon" }, wantErr: true},
		{name: "zero access ttl", mutate: func(c *Config) { c.Auth.AccessTokenTTL = 0 }, wantErr: true},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Storage.Backend = StorageBackendS3 }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "ftp" }, wantErr: true},
		{name: "missing database", mutate: func(c *Config) { c.Database.URL = "" }, wantErr: true},
		{name: "zero rate limit", mutate: func(c *Config) { c.RateLimit.RequestsPerMinute = 0 }, wantErr: true},
		{name: "rate limit disabled", mutate: func(c *Config) {
			c.RateLimit.Enabled = false
			c.RateLimit.RequestsPerMinute = 0
		}, wantErr: false},
		{name: "otel without endpoint", mutate: func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelServiceName = "svc"
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: "8000"}
	if got := s.Addr(); got != "127.0.0.1:8000" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestObservabilityFormat(t *testing.T) {
	if (ObservabilityConfig{LogFormat: "text"}).Format() != observability.FormatText {
		t.Error("text format not recognised")
	}
	if (ObservabilityConfig{LogFormat: ""}).Format() != observability.FormatJSON {
		t.Error("json should be the default format")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "buildpro.yaml")
	write := func(level string) {
		content := "auth:\n  secret_key: file-secret\nobservability:\n  log_level: " + level + "\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("info")

	reloaded := make(chan Config, 16)
	logger := observability.NewLogger(observability.InfoLevel, &strings.Builder{})
	if err := Watch(path, logger, func(cfg Config) { reloaded <- cfg }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	write("debug")
	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-reloaded:
			if cfg.Observability.Level() == observability.DebugLevel {
				return
			}
		case <-timeout:
			t.Fatal("no reload with the new log level")
		}
	}
}

func TestWatch_NoPath(t *testing.T) {
	logger := observability.NewLogger(observability.InfoLevel, &strings.Builder{})
	if err := Watch("", logger, func(Config) { t.Error("unexpected reload") }); err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}
