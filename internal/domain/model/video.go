// Пакет model содержит доменные модели Catalog Module.
// VideoRecord используется и как in-memory представление записи каталога,
// и как элемент локального снимка каталога на диске (или в PostgreSQL).
package model

import "fmt"

const (
	// DemoID: зарезервированный идентификатор демо-записи.
	// Такая запись никогда не попадает в выдачу и не резолвится.
	DemoID = "demo"

	// EventType: дискриминатор события метаданных в канале.
	EventType = "video_meta"

	// SchemaVersion: текущая версия схемы записи.
	SchemaVersion = 1
)

// VideoRecord описывает одну запись каталога.
// Идентификатор записи совпадает с позицией сообщения с видео в канале.
type VideoRecord struct {
	// ID: позиция сообщения с видео в канале (message_id), в виде строки
	ID string `json:"id"`
	// Title: заголовок видео, не пустой
	Title string `json:"title"`
	// Description: описание, может быть пустым
	Description string `json:"description"`
	// PrimaryHandle: file_id основного видеофайла.
	// Пустое значение делает запись невидимой.
	PrimaryHandle string `json:"primary_handle"`
	// ThumbnailHandle: file_id превью, пустая строка означает отсутствие превью
	ThumbnailHandle string `json:"thumbnail_handle"`
	// DurationSeconds: длительность в секундах, 0 означает "неизвестно"
	DurationSeconds float64 `json:"duration_seconds"`
	// CreatedAt: Unix-время публикации в секундах
	CreatedAt int64 `json:"created_at"`
	// SchemaVersion: версия схемы записи
	SchemaVersion int `json:"schema_version"`
}

// Visible сообщает, участвует ли запись в выдаче и резолве.
func (r *VideoRecord) Visible() bool {
	return r.ID != DemoID && r.PrimaryHandle != ""
}

// Handle возвращает content handle для указанного слота.
func (r *VideoRecord) Handle(slot Slot) string {
	if slot == SlotThumbnail {
		return r.ThumbnailHandle
	}
	return r.PrimaryHandle
}

// Slot: какой из двух файлов записи запрашивается.
type Slot string

const (
	// SlotPrimary: основной видеофайл
	SlotPrimary Slot = "primary"
	// SlotThumbnail: превью
	SlotThumbnail Slot = "thumbnail"
)

// ParseSlot разбирает строковое имя слота.
func ParseSlot(s string) (Slot, error) {
	switch Slot(s) {
	case SlotPrimary, SlotThumbnail:
		return Slot(s), nil
	default:
		return "", &ValidationError{Errors: []string{fmt.Sprintf("неизвестный слот %q, допустимые: primary, thumbnail", s)}}
	}
}
