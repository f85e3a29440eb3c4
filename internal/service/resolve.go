package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/repository"
)

var resolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cm_resolve_total",
	Help: "Количество резолвов по слоту и результату.",
}, []string{"slot", "result"}) // result: ok, degraded, not_found, error

// Причины деградации резолва превью.
const (
	ReasonRecordNotFound = "record_not_found"
	ReasonNoThumbnail    = "no_thumbnail"
	ReasonRemoteError    = "remote_error"
	ReasonStorageError   = "storage_error"
)

// Resolution: результат резолва.
// Degraded = true означает, что вместо файла отдаётся заглушка (только для превью).
type Resolution struct {
	URL      string
	Degraded bool
	Reason   string
}

// RecordGetter возвращает запись каталога по ID.
type RecordGetter interface {
	Get(ctx context.Context, id string) (*model.VideoRecord, error)
}

// ResolveService: превращение ID записи во временную ссылку на файл.
// Записи берутся из LRU-кэша, при промахе из каталога; ссылки не кэшируются.
type ResolveService struct {
	records     RecordGetter
	cache       *CacheService
	remote      ContentResolver
	placeholder string
	logger      *slog.Logger
}

// NewResolveService создаёт сервис резолва.
// cache может быть nil (без кэша), placeholder: URL заглушки превью.
func NewResolveService(
	records RecordGetter,
	cache *CacheService,
	remote ContentResolver,
	placeholder string,
	logger *slog.Logger,
) *ResolveService {
	return &ResolveService{
		records:     records,
		cache:       cache,
		remote:      remote,
		placeholder: placeholder,
		logger:      logger.With(slog.String("component", "resolve")),
	}
}

// Resolve возвращает ссылку на файл записи для слота.
//
// primary: отсутствующая запись даёт NotFoundError("record"), пустой handle
// NotFoundError("content handle"), ошибки Bot API возвращаются без изменений.
// thumbnail: никогда не завершается ошибкой; отсутствие записи или превью,
// ошибка Bot API и сбой хранилища каталога дают заглушку с Degraded = true.
func (s *ResolveService) Resolve(ctx context.Context, id string, slot model.Slot) (*Resolution, error) {
	res, err := s.resolve(ctx, id, slot)
	resolveTotal.WithLabelValues(string(slot), resolveLabel(res, err)).Inc()
	return res, err
}

func (s *ResolveService) resolve(ctx context.Context, id string, slot model.Slot) (*Resolution, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if slot == model.SlotThumbnail {
				return s.degraded(ReasonRecordNotFound), nil
			}
			return nil, &model.NotFoundError{Subject: "record"}
		}
		if slot == model.SlotThumbnail {
			s.logger.Error("Каталог недоступен, превью заменено заглушкой",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
			return s.degraded(ReasonStorageError), nil
		}
		return nil, err
	}

	handle := rec.Handle(slot)

	if slot == model.SlotThumbnail {
		if handle == "" {
			return s.degraded(ReasonNoThumbnail), nil
		}
		url, err := s.remote.ResolveContentURL(ctx, handle)
		if err != nil {
			s.logger.Warn("Превью недоступно, отдаётся заглушка",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
			return s.degraded(ReasonRemoteError), nil
		}
		return &Resolution{URL: url}, nil
	}

	if handle == "" {
		return nil, &model.NotFoundError{Subject: "content handle"}
	}
	url, err := s.remote.ResolveContentURL(ctx, handle)
	if err != nil {
		return nil, err
	}
	return &Resolution{URL: url}, nil
}

// lookup ищет запись в кэше, затем в каталоге. Демо-запись не резолвится.
func (s *ResolveService) lookup(ctx context.Context, id string) (*model.VideoRecord, error) {
	if id == model.DemoID {
		return nil, repository.ErrNotFound
	}
	var gen uint64
	if s.cache != nil {
		if rec, ok := s.cache.Get(id); ok {
			return &rec, nil
		}
		gen = s.cache.Generation()
	}

	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		// Снимок мог смениться во время чтения: такую запись не кэшируем
		s.cache.Set(*rec, gen)
	}
	return rec, nil
}

func (s *ResolveService) degraded(reason string) *Resolution {
	return &Resolution{URL: s.placeholder, Degraded: true, Reason: reason}
}

func resolveLabel(res *Resolution, err error) string {
	var nf *model.NotFoundError
	switch {
	case err == nil && res.Degraded:
		return "degraded"
	case err == nil:
		return "ok"
	case errors.As(err, &nf):
		return "not_found"
	default:
		return "error"
	}
}
