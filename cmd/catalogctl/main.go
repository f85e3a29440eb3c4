// Пакет main: операторский CLI catalogctl.
//
// Использование:
//
//	catalogctl publish --video clip.mp4 --title "Заголовок" [--thumb thumb.jpg] [--desc ...] [--duration N]
//	catalogctl sync [--limit N]
//	catalogctl list [--json]
//
// Коды выхода описаны в пакете commands.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bigkaa/goartstore/catalog-module/internal/cli/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	app := commands.NewApp(os.Stdout, os.Stderr)
	err := app.RunContext(ctx, os.Args)
	stop()

	// ExitErrHandler уже завершил процесс для ошибок команд,
	// сюда попадают ошибки разбора аргументов
	if err != nil {
		os.Exit(commands.ExitCode(os.Stderr, err))
	}
}
