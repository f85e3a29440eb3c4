// Пакет service: бизнес-логика Catalog Module.
//
//   - PublishService: загрузка видео в канал, публикация события и запись в каталог
//   - SyncService: сверка каталога с лентой канала
//   - ResolveService: превращение ID записи во временную ссылку на файл
//   - CacheService: LRU-кэш записей для resolve-маршрутов
//   - DephealthService: мониторинг зависимостей
//
// Сервисы зависят от узких интерфейсов удалённого журнала, которые
// реализует *tgclient.Client; в тестах их заменяют заглушки.
package service

import (
	"context"
	"io"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/tgclient"
)

// BlobPublisher загружает файлы и публикует события в журнал.
type BlobPublisher interface {
	UploadBlob(ctx context.Context, kind model.Slot, name string, r io.Reader) (*tgclient.BlobUpload, error)
	PublishEvent(ctx context.Context, payload []byte) (int64, error)
}

// EventFetcher читает ленту журнала.
type EventFetcher interface {
	FetchRecentEvents(ctx context.Context, limit int) ([]tgclient.RawEvent, error)
	FetchEventsSince(ctx context.Context, cursor int64, limit int) ([]tgclient.RawEvent, error)
}

// ContentResolver выдаёт временную ссылку на файл по content handle.
type ContentResolver interface {
	ResolveContentURL(ctx context.Context, handle string) (string, error)
}
