package snapshot

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher следит за файлом снимка и вызывает onChange, когда файл
// заменяется другим процессом (например, CLI publish или sync).
// Наблюдается родительская директория: renameio заменяет файл через rename.
// Серия событий одной замены (Create, Rename) сводится к одному вызову onChange.
type Watcher struct {
	fw     *fsnotify.Watcher
	done   chan struct{}
	logger *slog.Logger
}

// watchDebounce: пауза после последнего события перед вызовом onChange.
const watchDebounce = 100 * time.Millisecond

// StartWatch запускает наблюдение за файлом path.
func StartWatch(path string, logger *slog.Logger, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("наблюдение за директорией %s: %w", dir, err)
	}

	w := &Watcher{
		fw:     fw,
		done:   make(chan struct{}),
		logger: logger.With(slog.String("component", "snapshot_watch")),
	}
	go w.run(filepath.Base(path), onChange)

	w.logger.Info("Наблюдение за снимком каталога запущено", slog.String("path", path))
	return w, nil
}

func (w *Watcher) run(target string, onChange func()) {
	defer close(w.done)

	const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Rename | fsnotify.Remove

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target || ev.Op&relevant == 0 {
				continue
			}
			w.logger.Debug("Снимок каталога изменён",
				slog.String("event", ev.Op.String()),
			)
			// Debounce: таймер перезапускается на каждое событие
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			onChange()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Ошибка fsnotify", slog.String("error", err.Error()))
		}
	}
}

// Stop останавливает наблюдение и ждёт завершения горутины.
func (w *Watcher) Stop() {
	_ = w.fw.Close()
	<-w.done
}
