// sync.go: сверка локального каталога с лентой канала.
//
// SyncOnce читает обновления ленты, разбирает их кодеком событий
// (сообщения, не являющиеся событиями каталога, отбрасываются как шум),
// сливает записи с каталогом по ID (запись из ленты заменяет существующую
// целиком), отбрасывает демо-запись и записи без primary_handle, сортирует
// по created_at по убыванию и сохраняет результат.
//
// С курсором (CM_SYNC_USE_CURSOR=true) лента читается с позиции, следующей
// за сохранённой в снимке, а курсор сдвигается только вместе с успешной
// записью снимка. Без курсора читается фиксированное окно последних обновлений.
//
// Если слияние не изменило ни записей, ни курсора, снимок не перезаписывается.
//
// Prometheus-метрики:
//   - cm_sync_runs_total: количество запусков по результату
//   - cm_sync_events_total: обработанные сообщения ленты по исходу разбора
//   - cm_sync_duration_seconds: длительность синхронизации
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/event"
	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/repository"
	"github.com/bigkaa/goartstore/catalog-module/internal/storage/snapshot"
	"github.com/bigkaa/goartstore/catalog-module/internal/tgclient"
)

// Prometheus-метрики синхронизации.
var (
	syncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_sync_runs_total",
		Help: "Количество запусков синхронизации каталога.",
	}, []string{"result"}) // result: changed, unchanged, failed

	syncEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_sync_events_total",
		Help: "Сообщения ленты, обработанные синхронизацией, по исходу разбора.",
	}, []string{"outcome"})

	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cm_sync_duration_seconds",
		Help:    "Длительность синхронизации каталога.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 0.05s … ~25s
	})
)

// SyncResult: итог одного запуска синхронизации.
type SyncResult struct {
	// Fetched: сколько обновлений вернула лента
	Fetched int `json:"fetched"`
	// Decoded: сколько из них оказались событиями каталога
	Decoded int `json:"decoded"`
	// Ignored: шум ленты (не события, битый JSON, невалидные записи)
	Ignored int `json:"ignored"`
	// Stale: обновления с позицией не выше курсора
	Stale int `json:"stale"`
	// Total: записей в каталоге после синхронизации
	Total int `json:"total"`
	// Changed: снимок был перезаписан
	Changed bool `json:"changed"`
	// Cursor: курсор после синхронизации
	Cursor int64 `json:"cursor"`
}

// SyncService: сверка каталога с лентой канала.
type SyncService struct {
	remote     EventFetcher
	repo       *repository.CatalogRepository
	fetchLimit int
	useCursor  bool
	interval   time.Duration
	logger     *slog.Logger

	group singleflight.Group

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSyncService создаёт сервис синхронизации.
// interval: период фоновой синхронизации (0 = только по запросу).
func NewSyncService(
	remote EventFetcher,
	repo *repository.CatalogRepository,
	fetchLimit int,
	useCursor bool,
	interval time.Duration,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		remote:     remote,
		repo:       repo,
		fetchLimit: fetchLimit,
		useCursor:  useCursor,
		interval:   interval,
		logger:     logger.With(slog.String("component", "catalog_sync")),
	}
}

// Start запускает фоновую синхронизацию, если задан интервал.
func (s *SyncService) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Фоновая синхронизация каталога выключена")
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.logger.Info("Фоновая синхронизация каталога запущена",
			slog.String("interval", s.interval.String()),
			slog.Bool("use_cursor", s.useCursor),
		)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Фоновая синхронизация каталога остановлена")
				return
			case <-ticker.C:
				if _, err := s.SyncOnce(ctx, 0); err != nil {
					s.logger.Error("Ошибка фоновой синхронизации", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// Stop останавливает фоновую горутину и ждёт завершения.
func (s *SyncService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// SyncOnce выполняет одну синхронизацию. limit = 0 означает лимит из конфигурации.
// Одновременные вызовы внутри процесса объединяются в один запуск.
func (s *SyncService) SyncOnce(ctx context.Context, limit int) (*SyncResult, error) {
	if limit <= 0 {
		limit = s.fetchLimit
	}

	v, err, shared := s.group.Do("sync:"+strconv.Itoa(limit), func() (any, error) {
		return s.run(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("Синхронизация объединена с уже выполняющейся")
	}
	res := *v.(*SyncResult)
	return &res, nil
}

func (s *SyncService) run(ctx context.Context, limit int) (*SyncResult, error) {
	start := time.Now()
	defer func() {
		syncDuration.Observe(time.Since(start).Seconds())
	}()

	current, err := s.repo.Snapshot(ctx)
	if err != nil {
		syncRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	var events []tgclient.RawEvent
	if s.useCursor {
		events, err = s.remote.FetchEventsSince(ctx, current.Cursor, limit)
	} else {
		events, err = s.remote.FetchRecentEvents(ctx, limit)
	}
	if err != nil {
		syncRunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("чтение ленты канала: %w", err)
	}

	res := &SyncResult{Fetched: len(events)}
	decoded := make([]model.VideoRecord, 0, len(events))
	maxPos := current.Cursor

	for _, ev := range events {
		if s.useCursor && ev.Position <= current.Cursor {
			res.Stale++
			continue
		}
		maxPos = max(maxPos, ev.Position)

		rec, outcome := event.Decode(ev.Payload)
		syncEventsTotal.WithLabelValues(outcome.String()).Inc()
		if outcome != event.OutcomeDecoded {
			res.Ignored++
			if outcome == event.OutcomeInvalid {
				s.logger.Debug("Событие каталога не прошло валидацию",
					slog.Int64("position", ev.Position),
				)
			}
			continue
		}
		decoded = append(decoded, *rec)
	}
	res.Decoded = len(decoded)

	written, err := s.repo.Update(ctx, func(snap *snapshot.Snapshot) (bool, error) {
		merged := MergeRecords(snap.Records, decoded)
		cursor := snap.Cursor
		if s.useCursor {
			cursor = max(cursor, maxPos)
		}
		res.Total = len(merged)
		res.Cursor = cursor

		if cursor == snap.Cursor && slices.Equal(merged, snap.Records) {
			return false, nil
		}
		snap.Records = merged
		snap.Cursor = cursor
		return true, nil
	})
	if err != nil {
		syncRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	res.Changed = written != nil
	if res.Changed {
		syncRunsTotal.WithLabelValues("changed").Inc()
	} else {
		syncRunsTotal.WithLabelValues("unchanged").Inc()
	}

	s.logger.Info("Синхронизация каталога завершена",
		slog.Int("fetched", res.Fetched),
		slog.Int("decoded", res.Decoded),
		slog.Int("ignored", res.Ignored),
		slog.Int("stale", res.Stale),
		slog.Int("total", res.Total),
		slog.Bool("changed", res.Changed),
		slog.Int64("cursor", res.Cursor),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// MergeRecords сливает записи каталога с записями из ленты.
// Запись из ленты заменяет существующую с тем же ID целиком, сохраняя её место;
// новые ID добавляются в конец в порядке ленты. Результат проходит фильтр
// видимости и стабильную сортировку по created_at по убыванию.
func MergeRecords(existing, incoming []model.VideoRecord) []model.VideoRecord {
	merged := make([]model.VideoRecord, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))

	put := func(rec model.VideoRecord) {
		if i, ok := index[rec.ID]; ok {
			merged[i] = rec
			return
		}
		index[rec.ID] = len(merged)
		merged = append(merged, rec)
	}
	for _, rec := range existing {
		put(rec)
	}
	for _, rec := range incoming {
		put(rec)
	}

	return repository.VisibleSorted(merged)
}
