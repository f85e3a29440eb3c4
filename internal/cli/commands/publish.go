package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/bigkaa/goartstore/catalog-module/internal/app"
	"github.com/bigkaa/goartstore/catalog-module/internal/service"
)

// PublishCommand возвращает команду publish.
func PublishCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Загрузить видео (и превью) в канал, опубликовать событие и обновить каталог",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "video", Usage: "Путь к видеофайлу", Required: true},
			&cli.StringFlag{Name: "thumb", Usage: "Путь к превью (необязательно)"},
			&cli.StringFlag{Name: "title", Usage: "Заголовок", Required: true},
			&cli.StringFlag{Name: "desc", Usage: "Описание"},
			&cli.Float64Flag{Name: "duration", Usage: "Длительность в секундах (по умолчанию определяется ffprobe)"},
			&cli.StringFlag{
				Name:    "ffprobe",
				Usage:   "Путь к ffprobe",
				Value:   "ffprobe",
				EnvVars: []string{"CM_FFPROBE_PATH"},
			},
			&cli.BoolFlag{Name: "json", Usage: "Вывести результат в JSON"},
		},
		Action: publishAction,
	}
}

// publishOutput: результат publish для вывода.
type publishOutput struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Duration        float64 `json:"duration"`
	EventPosition   int64   `json:"event_position"`
	ThumbnailSource string  `json:"thumbnail_source"`
	CatalogUpdated  bool    `json:"catalog_updated"`
}

func publishAction(c *cli.Context) error {
	rt, err := setup(c, true)
	if err != nil {
		return err
	}
	defer rt.close()

	maxBytes := rt.cfg.Telegram.MaxUploadBytes

	videoPath := c.String("video")
	video, videoSize, err := openInput(videoPath, maxBytes)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Видео: %v", err), ExitFailure)
	}
	defer video.Close()

	in := service.PublishInput{
		Video:       video,
		VideoName:   filepath.Base(videoPath),
		VideoSize:   videoSize,
		Title:       c.String("title"),
		Description: c.String("desc"),
		Duration:    c.Float64("duration"),
	}

	if thumbPath := c.String("thumb"); thumbPath != "" {
		thumb, thumbSize, err := openInput(thumbPath, maxBytes)
		switch {
		case errors.Is(err, os.ErrNotExist):
			rt.logger.Warn("Файл превью не найден, публикация без отдельного превью",
				slog.String("path", thumbPath),
			)
		case err != nil:
			return cli.Exit(fmt.Sprintf("Превью: %v", err), ExitFailure)
		default:
			defer thumb.Close()
			in.Thumb = thumb
			in.ThumbName = filepath.Base(thumbPath)
			in.ThumbSize = thumbSize
		}
	}

	if !c.IsSet("duration") {
		in.Duration = service.ProbeDuration(c.Context, c.String("ffprobe"), videoPath, rt.logger)
	}

	remote := app.NewTelegramClient(&rt.cfg.Telegram, rt.logger)
	publisher := service.NewPublishService(remote, rt.catalog.Repo, maxBytes, rt.logger)

	res, err := publisher.Publish(c.Context, in)
	var cue *service.CatalogUpdateError
	switch {
	case errors.As(err, &cue):
		_ = writePublishResult(c, res, false)
		return cli.Exit(fmt.Sprintf("%v\nСобытие уже в канале: выполните `catalogctl sync`, чтобы восстановить каталог.", err), ExitCatalogNotSynced)
	case err != nil:
		return cli.Exit(fmt.Sprintf("Публикация не удалась: %v", err), ExitFailure)
	}

	return writePublishResult(c, res, true)
}

// openInput открывает файл и проверяет лимит размера Bot API.
func openInput(path string, maxBytes int64) (*os.File, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("%s: это директория", path)
	}
	if info.Size() > maxBytes {
		return nil, 0, fmt.Errorf("%s: размер %.2f МБ превышает лимит Bot API %.0f МБ",
			path, float64(info.Size())/(1024*1024), float64(maxBytes)/(1024*1024))
	}

	f, err := os.Open(path) //nolint:gosec // G304: путь задаёт оператор
	if err != nil {
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func writePublishResult(c *cli.Context, res *service.PublishResult, catalogUpdated bool) error {
	out := publishOutput{
		ID:              res.Record.ID,
		Title:           res.Record.Title,
		Duration:        res.Record.DurationSeconds,
		EventPosition:   res.EventPosition,
		ThumbnailSource: string(res.ThumbnailSource),
		CatalogUpdated:  catalogUpdated,
	}

	w := c.App.Writer
	if c.Bool("json") {
		return json.NewEncoder(w).Encode(out)
	}
	_, err := fmt.Fprintf(w, "Опубликовано: id=%s title=%q duration=%.0fs event=%d thumbnail=%s\n",
		out.ID, out.Title, out.Duration, out.EventPosition, out.ThumbnailSource)
	return err
}
