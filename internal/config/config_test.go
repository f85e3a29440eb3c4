package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8040 {
		t.Errorf("Server.Port = %d, ожидалось 8040", cfg.Server.Port)
	}
	if cfg.Catalog.Backend != "file" || cfg.Catalog.Path != "data/videos.json" {
		t.Errorf("Catalog = %+v", cfg.Catalog)
	}
	if cfg.Catalog.PlaceholderURL != "/placeholder-thumb.svg" {
		t.Errorf("PlaceholderURL = %q", cfg.Catalog.PlaceholderURL)
	}
	if cfg.Telegram.MaxUploadBytes != 50*1024*1024 {
		t.Errorf("MaxUploadBytes = %d", cfg.Telegram.MaxUploadBytes)
	}
	if cfg.Sync.FetchLimit != 100 || !cfg.Sync.UseCursor || cfg.Sync.Interval != 0 {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache.TTL = %v", cfg.Cache.TTL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CM_PORT", "9090")
	t.Setenv("CM_LOG_LEVEL", "debug")
	t.Setenv("CM_TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("CM_TELEGRAM_CHANNEL_ID", "@meowtube")
	t.Setenv("CM_SYNC_INTERVAL", "90s")
	t.Setenv("CM_SYNC_USE_CURSOR", "false")
	t.Setenv("CM_CATALOG_PATH", "/var/lib/catalog/videos.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, ожидалось 9090", cfg.Server.Port)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug {
		t.Errorf("уровень логирования = %v", cfg.Log.SlogLevel())
	}
	if cfg.Sync.Interval != 90*time.Second || cfg.Sync.UseCursor {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
	if cfg.Catalog.Path != "/var/lib/catalog/videos.json" {
		t.Errorf("Catalog.Path = %q", cfg.Catalog.Path)
	}
	if err := cfg.Telegram.CheckCredentials(); err != nil {
		t.Errorf("CheckCredentials: %v", err)
	}
}

func TestLoad_LegacyTelegramEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "legacy-token")
	t.Setenv("TELEGRAM_CHANNEL_ID", "-100123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.BotToken != "legacy-token" || cfg.Telegram.ChannelID != "-100123" {
		t.Errorf("Telegram = %+v", cfg.Telegram)
	}
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	yaml := `
server:
  port: 8100
catalog:
  backend: postgres
  postgres_dsn: postgres://catalog@db/catalog
sync:
  fetch_limit: 50
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("CM_SYNC_FETCH_LIMIT", "20")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8100 {
		t.Errorf("Server.Port = %d, ожидалось значение из файла 8100", cfg.Server.Port)
	}
	if cfg.Catalog.Backend != "postgres" || cfg.Catalog.PostgresDSN == "" {
		t.Errorf("Catalog = %+v", cfg.Catalog)
	}
	if cfg.Sync.FetchLimit != 20 {
		t.Errorf("FetchLimit = %d, переменная окружения должна перекрывать файл", cfg.Sync.FetchLimit)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"формат логов", "CM_LOG_FORMAT", "xml", "Format"},
		{"порт", "CM_PORT", "70000", "Port"},
		{"backend", "CM_CATALOG_BACKEND", "sqlite", "Backend"},
		{"лимит выборки", "CM_SYNC_FETCH_LIMIT", "500", "FetchLimit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			if err == nil {
				t.Fatalf("%s=%s: ожидалась ошибка", tt.key, tt.val)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ошибка должна упоминать %s: %v", tt.want, err)
			}
		})
	}
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("CM_CATALOG_BACKEND", "postgres")
	if _, err := Load(); err == nil {
		t.Error("backend postgres без DSN должен давать ошибку")
	}
}

func TestCheckCredentials_Missing(t *testing.T) {
	tg := TelegramConfig{BotToken: "123:abc"}
	if err := tg.CheckCredentials(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("ожидалась ErrMissingCredentials, получено %v", err)
	}
}
