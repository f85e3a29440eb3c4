// Точка входа Catalog Module: HTTP-сервис каталога видео.
// Загружает конфигурацию, открывает снимок каталога (файл или PostgreSQL),
// создаёт клиент Telegram Bot API, сервисы резолва и синхронизации,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bigkaa/goartstore/catalog-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/catalog-module/internal/app"
	"github.com/bigkaa/goartstore/catalog-module/internal/config"
	"github.com/bigkaa/goartstore/catalog-module/internal/server"
	"github.com/bigkaa/goartstore/catalog-module/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Загрузка конфигурации (значения по умолчанию, CM_CONFIG_FILE, окружение)
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		return 1
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Catalog Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Server.Port),
		slog.String("backend", cfg.Catalog.Backend),
	)

	// 3. Учётные данные Bot API обязательны для resolve и sync
	if err := cfg.Telegram.CheckCredentials(); err != nil {
		logger.Error("Telegram не настроен", slog.String("error", err.Error()))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Каталог (миграции и пул для postgres)
	catalog, err := app.OpenCatalog(ctx, &cfg.Catalog, logger)
	if err != nil {
		logger.Error("Ошибка открытия каталога", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := catalog.Close(); err != nil {
			logger.Warn("Ошибка закрытия каталога", slog.String("error", err.Error()))
		}
	}()

	// 5. LRU-кэш записей со сбросом при изменении снимка
	cache, err := catalog.EnableCache(&cfg.Cache)
	if err != nil {
		logger.Error("Ошибка запуска наблюдения за снимком", slog.String("error", err.Error()))
		return 1
	}

	// 6. Клиент Telegram Bot API
	remote := app.NewTelegramClient(&cfg.Telegram, logger)

	// 7. Сервисы резолва и синхронизации
	resolveSvc := service.NewResolveService(catalog.Repo, cache, remote, cfg.Catalog.PlaceholderURL, logger)
	syncSvc := app.NewSyncService(&cfg.Sync, remote, catalog.Repo, logger)
	syncSvc.Start(ctx)
	defer syncSvc.Stop()

	// 8. topologymetrics: Bot API и, для postgres, база каталога
	if cfg.DepHealth.Enabled {
		dephealthSvc, dhErr := service.NewDephealthService(service.DephealthParams{
			ServiceID:      "catalog-module",
			Group:          cfg.DepHealth.Group,
			TelegramAPIURL: remote.APIURL(),
			DB:             catalog.DB,
			PostgresURL:    cfg.Catalog.PostgresDSN,
			CheckInterval:  cfg.DepHealth.CheckInterval,
		}, logger)
		if dhErr != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dhErr.Error()),
			)
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		} else {
			defer dephealthSvc.Stop()
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DepHealth.Group),
				slog.String("check_interval", cfg.DepHealth.CheckInterval.String()),
			)
		}
	}

	// 9. Health handler
	catalogChecker, pgChecker := catalog.ReadinessCheckers()
	healthHandler := handlers.NewHealthHandler(catalogChecker, pgChecker)

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(
		catalog.Repo,
		resolveSvc,
		syncSvc,
		healthHandler,
		cfg.Catalog.PlaceholderURL,
		logger,
	)

	// 11. HTTP-сервер
	srv := server.New(&cfg.Server, logger, apiHandler)

	// 12. Запуск (блокирующий вызов до SIGINT/SIGTERM)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("Catalog Module остановлен")
	return 0
}
