// Пакет commands: команды операторского CLI catalogctl.
//
// Коды выхода:
//   - 0: успех
//   - 1: ошибка (нет учётных данных, файла, превышен размер, сбой Bot API)
//   - 2: событие опубликовано в канал, но локальный каталог не обновлён
//     (каталог восстанавливается командой sync)
package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/bigkaa/goartstore/catalog-module/internal/app"
	"github.com/bigkaa/goartstore/catalog-module/internal/config"
)

// Коды выхода CLI.
const (
	ExitFailure          = 1
	ExitCatalogNotSynced = 2
)

// NewApp создаёт приложение catalogctl. Результаты команд пишутся в stdout,
// логи и сообщения об ошибках в stderr.
func NewApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "catalogctl",
		Usage:     "Публикация видео в Telegram-канал и синхронизация каталога",
		Version:   config.Version,
		Writer:    stdout,
		ErrWriter: stderr,
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}
			os.Exit(ExitCode(c.App.ErrWriter, err))
		},
		Commands: []*cli.Command{
			PublishCommand(),
			SyncCommand(),
			ListCommand(),
			VersionCommand(),
		},
	}
}

// ExitCode печатает сообщение ошибки в w и возвращает код выхода.
// Коды из cli.Exit сохраняются, прочие ошибки дают ExitFailure.
func ExitCode(w io.Writer, err error) int {
	if err == nil {
		return 0
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		// cli.Exit("", N).Error() возвращает "exit status N"
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			_, _ = fmt.Fprintln(w, msg)
		}
		return code
	}

	_, _ = fmt.Fprintf(w, "Ошибка: %v\n", err)
	return ExitFailure
}

// runtime: окружение одной команды.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	catalog *app.Catalog
}

// setup загружает конфигурацию и открывает каталог.
// needRemote: команда обращается к Bot API и требует учётных данных.
func setup(c *cli.Context, needRemote bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Ошибка конфигурации: %v", err), ExitFailure)
	}
	if needRemote {
		if err := cfg.Telegram.CheckCredentials(); err != nil {
			return nil, cli.Exit(err.Error(), ExitFailure)
		}
	}

	logger := config.SetupLogger(cfg)

	catalog, err := app.OpenCatalog(c.Context, &cfg.Catalog, logger)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Ошибка открытия каталога: %v", err), ExitFailure)
	}

	return &runtime{cfg: cfg, logger: logger, catalog: catalog}, nil
}

func (r *runtime) close() {
	if err := r.catalog.Close(); err != nil {
		r.logger.Warn("Ошибка закрытия каталога", slog.String("error", err.Error()))
	}
}
