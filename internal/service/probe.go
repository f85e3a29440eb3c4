package service

import (
	"context"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeDuration определяет длительность видео через ffprobe.
// Возвращает целое число секунд (с округлением вниз) или 0, если ffprobe
// недоступен или не смог прочитать файл: длительность 0 означает "неизвестно".
func ProbeDuration(ctx context.Context, ffprobe, path string, logger *slog.Logger) float64 {
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}

	cmd := exec.CommandContext(ctx, ffprobe, //nolint:gosec // G204: путь к файлу задаёт оператор
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		logger.Warn("ffprobe не смог определить длительность, используется 0",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return 0
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		logger.Warn("ffprobe вернул некорректную длительность, используется 0",
			slog.String("path", path),
			slog.String("output", strings.TrimSpace(string(out))),
		)
		return 0
	}
	return math.Floor(d)
}
