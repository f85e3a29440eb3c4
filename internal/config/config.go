// Пакет config: конфигурация Catalog Module.
// Источники по возрастанию приоритета: значения по умолчанию,
// YAML-файл из CM_CONFIG_FILE (необязателен), переменные окружения CM_*.
// Конфигурация собирается один раз при старте процесса и передаётся
// компонентам по указателю; сами компоненты окружение не читают.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Version: версия сборки, задаётся через ldflags.
var Version = "dev"

// ConfigFileEnv: переменная окружения с путём к YAML-файлу конфигурации.
const ConfigFileEnv = "CM_CONFIG_FILE"

// ErrMissingCredentials: не заданы токен бота или канал.
var ErrMissingCredentials = errors.New("не заданы учётные данные Telegram (CM_TELEGRAM_BOT_TOKEN, CM_TELEGRAM_CHANNEL_ID)")

// Config: конфигурация Catalog Module.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Telegram  TelegramConfig  `koanf:"telegram"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Sync      SyncConfig      `koanf:"sync"`
	Cache     CacheConfig     `koanf:"cache"`
	DepHealth DepHealthConfig `koanf:"dephealth"`
}

// ServerConfig: HTTP-сервер.
type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	// ResolveRateLimit: запросов в минуту с одного IP к resolve-маршрутам (0 = без ограничения)
	ResolveRateLimit int `koanf:"resolve_rate_limit" validate:"min=0"`
}

// LogConfig: логирование.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// TelegramConfig: доступ к Telegram Bot API.
type TelegramConfig struct {
	BotToken      string        `koanf:"bot_token"`
	ChannelID     string        `koanf:"channel_id"`
	APIURL        string        `koanf:"api_url" validate:"required,url"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
	UploadTimeout time.Duration `koanf:"upload_timeout" validate:"gt=0"`
	// MaxUploadBytes: предел размера файла для Bot API (50 МБ)
	MaxUploadBytes    int64         `koanf:"max_upload_bytes" validate:"min=1"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gt=0"`
	Burst             int           `koanf:"burst" validate:"min=1"`
	BreakerFailures   uint32        `koanf:"breaker_failures" validate:"min=1"`
	BreakerTimeout    time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// CatalogConfig: хранилище снимка каталога.
type CatalogConfig struct {
	// Backend: file или postgres
	Backend     string `koanf:"backend" validate:"oneof=file postgres"`
	Path        string `koanf:"path" validate:"required_if=Backend file"`
	PostgresDSN string `koanf:"postgres_dsn" validate:"required_if=Backend postgres"`
	// PlaceholderURL: куда перенаправлять запрос превью, если превью нет
	PlaceholderURL string `koanf:"placeholder_url" validate:"required"`
	// Watch: следить за файлом снимка и сбрасывать кэш при его замене
	Watch bool `koanf:"watch"`
}

// SyncConfig: синхронизация каталога с каналом.
type SyncConfig struct {
	FetchLimit int `koanf:"fetch_limit" validate:"min=1,max=100"`
	// Interval: период фоновой синхронизации в сервере (0 = выключена)
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
	// UseCursor: читать ленту с сохранённой позиции; false = фиксированное окно последних обновлений
	UseCursor bool `koanf:"use_cursor"`
}

// CacheConfig: LRU-кэш записей для resolve-маршрутов.
type CacheConfig struct {
	Size int           `koanf:"size" validate:"min=1"`
	TTL  time.Duration `koanf:"ttl" validate:"gt=0"`
}

// DepHealthConfig: мониторинг зависимостей через topologymetrics.
type DepHealthConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Group         string        `koanf:"group" validate:"required_if=Enabled true"`
	CheckInterval time.Duration `koanf:"check_interval" validate:"gt=0"`
}

// defaultConfig возвращает значения по умолчанию.
func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:             8040,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			ShutdownTimeout:  5 * time.Second,
			ResolveRateLimit: 120,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telegram: TelegramConfig{
			APIURL:            "https://api.telegram.org",
			Timeout:           30 * time.Second,
			UploadTimeout:     10 * time.Minute,
			MaxUploadBytes:    50 * 1024 * 1024,
			RequestsPerSecond: 25,
			Burst:             5,
			BreakerFailures:   5,
			BreakerTimeout:    30 * time.Second,
		},
		Catalog: CatalogConfig{
			Backend:        "file",
			Path:           "data/videos.json",
			PlaceholderURL: "/placeholder-thumb.svg",
			Watch:          true,
		},
		Sync: SyncConfig{
			FetchLimit: 100,
			Interval:   0,
			UseCursor:  true,
		},
		Cache: CacheConfig{
			Size: 1000,
			TTL:  5 * time.Minute,
		},
		DepHealth: DepHealthConfig{
			Enabled:       false,
			Group:         "catalog",
			CheckInterval: 15 * time.Second,
		},
	}
}

// envMappings: переменные окружения и соответствующие ключи конфигурации.
// TELEGRAM_BOT_TOKEN и TELEGRAM_CHANNEL_ID приняты для совместимости со старыми .env.
var envMappings = map[string]string{
	"cm_port":                      "server.port",
	"cm_http_read_timeout":         "server.read_timeout",
	"cm_http_write_timeout":        "server.write_timeout",
	"cm_http_idle_timeout":         "server.idle_timeout",
	"cm_shutdown_timeout":          "server.shutdown_timeout",
	"cm_resolve_rate_limit":        "server.resolve_rate_limit",
	"cm_log_level":                 "log.level",
	"cm_log_format":                "log.format",
	"cm_telegram_bot_token":        "telegram.bot_token",
	"cm_telegram_channel_id":       "telegram.channel_id",
	"cm_telegram_api_url":          "telegram.api_url",
	"cm_telegram_timeout":          "telegram.timeout",
	"cm_telegram_upload_timeout":   "telegram.upload_timeout",
	"cm_telegram_max_upload_bytes": "telegram.max_upload_bytes",
	"cm_telegram_rps":              "telegram.requests_per_second",
	"cm_telegram_burst":            "telegram.burst",
	"cm_telegram_breaker_failures": "telegram.breaker_failures",
	"cm_telegram_breaker_timeout":  "telegram.breaker_timeout",
	"cm_catalog_backend":           "catalog.backend",
	"cm_catalog_path":              "catalog.path",
	"cm_catalog_postgres_dsn":      "catalog.postgres_dsn",
	"cm_catalog_placeholder_url":   "catalog.placeholder_url",
	"cm_catalog_watch":             "catalog.watch",
	"cm_sync_fetch_limit":          "sync.fetch_limit",
	"cm_sync_interval":             "sync.interval",
	"cm_sync_use_cursor":           "sync.use_cursor",
	"cm_cache_size":                "cache.size",
	"cm_cache_ttl":                 "cache.ttl",
	"cm_dephealth_enabled":         "dephealth.enabled",
	"cm_dephealth_group":           "dephealth.group",
	"cm_dephealth_check_interval":  "dephealth.check_interval",
	"telegram_bot_token":           "telegram.bot_token",
	"telegram_channel_id":          "telegram.channel_id",
}

// envTransformFunc переводит имя переменной окружения в ключ koanf.
// Неизвестные переменные пропускаются (пустая строка).
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load собирает конфигурацию из значений по умолчанию, файла и окружения,
// затем проверяет её.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("ошибка загрузки значений по умолчанию: %w", err)
	}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%s: ошибка чтения файла %s: %w", ConfigFileEnv, path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("ошибка чтения переменных окружения: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет конфигурацию правилами из тегов validate.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: нарушено правило %q (значение %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("некорректная конфигурация: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("некорректная конфигурация: %w", err)
	}
	return nil
}

// CheckCredentials проверяет, что заданы токен бота и канал.
// Нужна для операций, обращающихся к Bot API.
func (t *TelegramConfig) CheckCredentials() error {
	if t.BotToken == "" || t.ChannelID == "" {
		return ErrMissingCredentials
	}
	return nil
}

// SlogLevel возвращает уровень логирования slog.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger создаёт и настраивает slog.Logger на основе конфигурации.
// JSON-формат для production, text для разработки.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
