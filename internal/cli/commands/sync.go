package commands

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/bigkaa/goartstore/catalog-module/internal/app"
)

// SyncCommand возвращает команду sync.
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Сверить локальный каталог с лентой канала",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Сколько обновлений ленты читать (1..100, 0 = из конфигурации)",
			},
			&cli.BoolFlag{Name: "json", Usage: "Вывести результат в JSON"},
		},
		Action: syncAction,
	}
}

func syncAction(c *cli.Context) error {
	limit := c.Int("limit")
	if limit < 0 || limit > 100 {
		return cli.Exit("--limit должен быть от 1 до 100", ExitFailure)
	}

	rt, err := setup(c, true)
	if err != nil {
		return err
	}
	defer rt.close()

	remote := app.NewTelegramClient(&rt.cfg.Telegram, rt.logger)
	syncer := app.NewSyncService(&rt.cfg.Sync, remote, rt.catalog.Repo, rt.logger)

	res, err := syncer.SyncOnce(c.Context, limit)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Синхронизация не удалась: %v", err), ExitFailure)
	}

	w := c.App.Writer
	if c.Bool("json") {
		return json.NewEncoder(w).Encode(res)
	}
	state := "без изменений"
	if res.Changed {
		state = "каталог обновлён"
	}
	_, err = fmt.Fprintf(w, "Синхронизация: прочитано %d, событий %d, пропущено %d, устаревших %d; записей %d, курсор %d (%s)\n",
		res.Fetched, res.Decoded, res.Ignored, res.Stale, res.Total, res.Cursor, state)
	return err
}
