// Пакет snapshot: хранилище локального снимка каталога.
// Снимок хранится целиком, одним документом, и снабжён версией.
// Все изменения идут через CompareAndSwap: писатель, прочитавший устаревшую
// версию, получает ErrVersionConflict, поэтому гонка писателей явная и тестируемая,
// а читатель никогда не видит частично записанный снимок.
package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// ErrVersionConflict: версия снимка изменилась с момента чтения.
var ErrVersionConflict = errors.New("конфликт версий снимка каталога")

// Snapshot: материализованный снимок каталога.
type Snapshot struct {
	// Version: монотонно растущая версия, 0 означает "снимок ещё не записывался"
	Version uint64
	// Cursor: наибольшая позиция журнала, уже учтённая синхронизацией
	Cursor int64
	// UpdatedAt: время последней записи
	UpdatedAt time.Time
	// Records: записи в порядке хранения
	Records []model.VideoRecord
}

// Store: хранилище снимка с примитивом compare-and-swap.
type Store interface {
	// Load читает текущий снимок. Отсутствующий снимок возвращается пустым, версии 0.
	Load(ctx context.Context) (*Snapshot, error)
	// CompareAndSwap записывает next, если текущая версия равна expectedVersion.
	// Возвращает записанный снимок с новой версией или ErrVersionConflict.
	CompareAndSwap(ctx context.Context, expectedVersion uint64, next Snapshot) (*Snapshot, error)
}
