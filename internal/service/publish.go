// publish.go: конвейер публикации нового видео.
//
// Порядок шагов фиксирован: сначала файлы и событие становятся долговечными
// в канале, и только затем обновляется локальный каталог.
//  1. Загрузка видео (ошибка: ничего не опубликовано)
//  2. Загрузка превью, иначе превью, сгенерированное Telegram, иначе без превью
//  3. Сборка события, ID записи = message_id сообщения с видео
//  4. Публикация события (ошибка: файлы остаются в канале без события)
//  5. Upsert записи в каталог (ошибка: событие уже опубликовано, каталог
//     восстановит следующая синхронизация)
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/event"
	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/repository"
)

var publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cm_publish_total",
	Help: "Количество публикаций видео по результату.",
}, []string{"result"}) // result: ok, invalid, upload_failed, event_failed, catalog_failed

// ThumbnailSource: откуда взято превью опубликованной записи.
type ThumbnailSource string

const (
	// ThumbnailUploaded: превью загружено отдельным файлом
	ThumbnailUploaded ThumbnailSource = "uploaded"
	// ThumbnailDerived: превью сгенерировано Telegram при загрузке видео
	ThumbnailDerived ThumbnailSource = "derived"
	// ThumbnailNone: превью нет
	ThumbnailNone ThumbnailSource = "none"
)

// PublishInput: входные данные публикации.
type PublishInput struct {
	Video     io.Reader `validate:"required"`
	VideoName string    `validate:"required"`
	// VideoSize: размер видео в байтах для проверки лимита Bot API
	VideoSize int64 `validate:"gte=0"`
	// Thumb: превью; nil = без отдельного превью
	Thumb       io.Reader
	ThumbName   string `validate:"required_with=Thumb"`
	ThumbSize   int64  `validate:"gte=0"`
	Title       string `validate:"required"`
	Description string
	Duration    float64 `validate:"gte=0"`
}

// PublishResult: результат публикации.
type PublishResult struct {
	Record model.VideoRecord
	// EventPosition: message_id сообщения с событием
	EventPosition   int64
	ThumbnailSource ThumbnailSource
}

// CatalogUpdateError: событие опубликовано в канал, но запись в локальный
// каталог не удалась. Каталог восстанавливается командой sync.
type CatalogUpdateError struct {
	RecordID string
	Err      error
}

func (e *CatalogUpdateError) Error() string {
	return fmt.Sprintf("событие %s опубликовано, но каталог не обновлён: %v", e.RecordID, e.Err)
}

func (e *CatalogUpdateError) Unwrap() error {
	return e.Err
}

// PublishService: публикация видео в канал и каталог.
type PublishService struct {
	remote         BlobPublisher
	repo           *repository.CatalogRepository
	maxUploadBytes int64
	validate       *validator.Validate
	now            func() time.Time
	logger         *slog.Logger
}

// NewPublishService создаёт сервис публикации.
// maxUploadBytes: предел размера одного файла (лимит Bot API).
func NewPublishService(
	remote BlobPublisher,
	repo *repository.CatalogRepository,
	maxUploadBytes int64,
	logger *slog.Logger,
) *PublishService {
	return &PublishService{
		remote:         remote,
		repo:           repo,
		maxUploadBytes: maxUploadBytes,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		now:            time.Now,
		logger:         logger.With(slog.String("component", "publish")),
	}
}

// Publish выполняет конвейер публикации.
// При ошибке шага 5 возвращается и результат, и *CatalogUpdateError.
func (s *PublishService) Publish(ctx context.Context, in PublishInput) (*PublishResult, error) {
	if err := s.checkInput(&in); err != nil {
		publishTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	// 1. Видео
	video, err := s.remote.UploadBlob(ctx, model.SlotPrimary, in.VideoName, in.Video)
	if err != nil {
		publishTotal.WithLabelValues("upload_failed").Inc()
		return nil, fmt.Errorf("загрузка видео: %w", err)
	}
	s.logger.Info("Видео загружено",
		slog.Int64("message_id", video.Position),
		slog.Int64("size", in.VideoSize),
	)

	// 2. Превью
	thumbHandle, source := "", ThumbnailNone
	switch {
	case in.Thumb != nil:
		thumb, err := s.remote.UploadBlob(ctx, model.SlotThumbnail, in.ThumbName, in.Thumb)
		if err != nil {
			publishTotal.WithLabelValues("upload_failed").Inc()
			return nil, fmt.Errorf("загрузка превью: %w", err)
		}
		thumbHandle, source = thumb.Handle, ThumbnailUploaded
	case video.DerivedThumbnail != "":
		thumbHandle, source = video.DerivedThumbnail, ThumbnailDerived
	}

	// 3. Событие
	ev := event.New(event.Fields{
		VideoMsgID:  video.Position,
		FileID:      video.Handle,
		ThumbFileID: thumbHandle,
		Title:       in.Title,
		Description: in.Description,
		Duration:    in.Duration,
	}, s.now())
	payload, err := event.Encode(ev)
	if err != nil {
		publishTotal.WithLabelValues("event_failed").Inc()
		return nil, err
	}

	// 4. Публикация события
	eventPos, err := s.remote.PublishEvent(ctx, payload)
	if err != nil {
		publishTotal.WithLabelValues("event_failed").Inc()
		return nil, fmt.Errorf("публикация события: %w", err)
	}

	result := &PublishResult{
		Record:          ev.Record(),
		EventPosition:   eventPos,
		ThumbnailSource: source,
	}

	// 5. Локальный каталог
	if err := s.repo.Upsert(ctx, result.Record); err != nil {
		publishTotal.WithLabelValues("catalog_failed").Inc()
		s.logger.Error("Событие опубликовано, но каталог не обновлён",
			slog.String("id", result.Record.ID),
			slog.String("error", err.Error()),
		)
		return result, &CatalogUpdateError{RecordID: result.Record.ID, Err: err}
	}

	publishTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Видео опубликовано",
		slog.String("id", result.Record.ID),
		slog.String("title", result.Record.Title),
		slog.String("thumbnail", string(source)),
	)
	return result, nil
}

// checkInput проверяет обязательные поля и размеры файлов.
func (s *PublishService) checkInput(in *PublishInput) error {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: нарушено правило %q", fe.Field(), fe.Tag()))
			}
			return &model.ValidationError{Errors: msgs}
		}
		return &model.ValidationError{Errors: []string{err.Error()}}
	}

	var errs []string
	if in.VideoSize > s.maxUploadBytes {
		errs = append(errs, fmt.Sprintf("видео слишком большое: %.2f МБ, лимит Bot API %.0f МБ", mib(in.VideoSize), mib(s.maxUploadBytes)))
	}
	if in.Thumb != nil && in.ThumbSize > s.maxUploadBytes {
		errs = append(errs, fmt.Sprintf("превью слишком большое: %.2f МБ, лимит Bot API %.0f МБ", mib(in.ThumbSize), mib(s.maxUploadBytes)))
	}
	if len(errs) > 0 {
		return &model.ValidationError{Errors: errs}
	}
	return nil
}

func mib(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
