// Пакет app: сборка компонентов Catalog Module из конфигурации.
// Используется и сервером (cmd/catalog-module), и CLI (cmd/catalogctl):
// оба работают с одним снимком каталога и одним каналом.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/catalog-module/internal/config"
	"github.com/bigkaa/goartstore/catalog-module/internal/database"
	"github.com/bigkaa/goartstore/catalog-module/internal/repository"
	"github.com/bigkaa/goartstore/catalog-module/internal/service"
	"github.com/bigkaa/goartstore/catalog-module/internal/storage/snapshot"
	"github.com/bigkaa/goartstore/catalog-module/internal/tgclient"
)

// Catalog: открытое хранилище каталога и репозиторий поверх него.
type Catalog struct {
	Repo  *repository.CatalogRepository
	Store snapshot.Store

	// Pool и DB заданы только для backend postgres
	Pool *pgxpool.Pool
	DB   *sql.DB

	cfg     *config.CatalogConfig
	watcher *snapshot.Watcher
	logger  *slog.Logger
}

// OpenCatalog открывает хранилище снимка по CM_CATALOG_BACKEND.
// Для postgres применяются миграции и создаётся пул соединений.
func OpenCatalog(ctx context.Context, cfg *config.CatalogConfig, logger *slog.Logger) (*Catalog, error) {
	c := &Catalog{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "catalog")),
	}

	switch cfg.Backend {
	case "postgres":
		if err := database.Migrate(cfg.PostgresDSN, logger); err != nil {
			return nil, fmt.Errorf("миграции БД: %w", err)
		}
		pool, err := database.Connect(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("подключение к PostgreSQL: %w", err)
		}
		c.Pool = pool
		// Адаптер pgxpool → *sql.DB для topologymetrics
		c.DB = stdlib.OpenDBFromPool(pool)
		c.Store = snapshot.NewPostgresStore(pool)
	default:
		store, err := snapshot.NewFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		c.Store = store
	}

	c.Repo = repository.NewCatalogRepository(c.Store)
	c.logger.Info("Каталог открыт",
		slog.String("backend", cfg.Backend),
		slog.String("location", c.location()),
	)
	return c, nil
}

// EnableCache создаёт LRU-кэш записей и подключает его сброс:
// после каждой записи снимка этим процессом и, для файлового backend
// с CM_CATALOG_WATCH=true, при замене файла другим процессом.
func (c *Catalog) EnableCache(cfg *config.CacheConfig) (*service.CacheService, error) {
	cache := service.NewCacheService(cfg.Size, cfg.TTL)
	c.Repo.OnSave(cache.Purge)

	fs, ok := c.Store.(*snapshot.FileStore)
	if !ok || !c.cfg.Watch {
		return cache, nil
	}
	w, err := snapshot.StartWatch(fs.Path(), c.logger, cache.Purge)
	if err != nil {
		return nil, err
	}
	c.watcher = w
	return cache, nil
}

// ReadinessCheckers возвращает проверки для /health/ready:
// чтение снимка и, для postgres, пинг пула.
func (c *Catalog) ReadinessCheckers() (catalog, pg interface{ CheckReady() (string, string) }) {
	catalog = c.Repo
	if c.Pool != nil {
		pg = database.NewReadinessChecker(c.Pool)
	}
	return catalog, pg
}

// Close останавливает наблюдение и закрывает соединения.
func (c *Catalog) Close() error {
	if c.watcher != nil {
		c.watcher.Stop()
	}
	var errs []error
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
	return errors.Join(errs...)
}

func (c *Catalog) location() string {
	if fs, ok := c.Store.(*snapshot.FileStore); ok {
		return fs.Path()
	}
	return "postgres"
}

// NewTelegramClient создаёт клиент Bot API из конфигурации.
// Учётные данные проверяются отдельно (config.TelegramConfig.CheckCredentials).
func NewTelegramClient(cfg *config.TelegramConfig, logger *slog.Logger) *tgclient.Client {
	return tgclient.New(tgclient.Options{
		BotToken:          cfg.BotToken,
		ChannelID:         cfg.ChannelID,
		APIURL:            cfg.APIURL,
		Timeout:           cfg.Timeout,
		UploadTimeout:     cfg.UploadTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		BreakerFailures:   cfg.BreakerFailures,
		BreakerTimeout:    cfg.BreakerTimeout,
	}, logger)
}

// NewSyncService создаёт сервис синхронизации из конфигурации.
func NewSyncService(cfg *config.SyncConfig, remote service.EventFetcher, repo *repository.CatalogRepository, logger *slog.Logger) *service.SyncService {
	return service.NewSyncService(remote, repo, cfg.FetchLimit, cfg.UseCursor, cfg.Interval, logger)
}
