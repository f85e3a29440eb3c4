// Пакет event: кодек событий метаданных, публикуемых в канал.
// Канал является журналом только на добавление и единственным источником истины;
// помимо событий каталога в нём встречаются произвольные сообщения людей и бота,
// поэтому Decode не возвращает ошибок, а сообщает исход разбора.
package event

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// Fields: поля, которые производитель передаёт для нового события.
type Fields struct {
	// VideoMsgID: позиция сообщения с видео в канале, становится ID записи
	VideoMsgID  int64
	FileID      string
	ThumbFileID string
	Title       string
	Description string
	Duration    float64
}

// Event: событие метаданных в формате канала.
type Event struct {
	Type          string  `json:"type"`
	SchemaVersion int     `json:"schema_version"`
	VideoMsgID    int64   `json:"video_msg_id"`
	FileID        string  `json:"file_id"`
	ThumbFileID   string  `json:"thumb_file_id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Duration      float64 `json:"duration"`
	UploadedAt    int64   `json:"uploaded_at"`
}

// New создаёт событие, проставляя тип, версию схемы и время публикации.
func New(f Fields, now time.Time) Event {
	return Event{
		Type:          model.EventType,
		SchemaVersion: model.SchemaVersion,
		VideoMsgID:    f.VideoMsgID,
		FileID:        f.FileID,
		ThumbFileID:   f.ThumbFileID,
		Title:         f.Title,
		Description:   f.Description,
		Duration:      f.Duration,
		UploadedAt:    now.Unix(),
	}
}

// Record возвращает запись каталога, которую описывает событие.
func (e Event) Record() model.VideoRecord {
	return model.VideoRecord{
		ID:              strconv.FormatInt(e.VideoMsgID, 10),
		Title:           e.Title,
		Description:     e.Description,
		PrimaryHandle:   e.FileID,
		ThumbnailHandle: e.ThumbFileID,
		DurationSeconds: e.Duration,
		CreatedAt:       e.UploadedAt,
		SchemaVersion:   e.SchemaVersion,
	}
}

// Encode сериализует событие в текст сообщения (JSON с отступом в 2 пробела).
func Encode(e Event) ([]byte, error) {
	if e.Type != model.EventType {
		return nil, fmt.Errorf("неизвестный тип события %q", e.Type)
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации события: %w", err)
	}
	return data, nil
}

// Outcome: исход разбора сообщения канала.
type Outcome int

const (
	// OutcomeDecoded: событие каталога успешно разобрано
	OutcomeDecoded Outcome = iota
	// OutcomeEmpty: сообщение без текста (фото, стикер, служебное)
	OutcomeEmpty
	// OutcomeMalformed: текст не является JSON-объектом ожидаемой формы
	OutcomeMalformed
	// OutcomeForeignType: JSON, но не событие каталога
	OutcomeForeignType
	// OutcomeInvalid: событие каталога, не прошедшее валидацию записи
	OutcomeInvalid
)

// String возвращает имя исхода для логов и лейблов метрик.
func (o Outcome) String() string {
	switch o {
	case OutcomeDecoded:
		return "decoded"
	case OutcomeEmpty:
		return "empty"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeForeignType:
		return "foreign_type"
	case OutcomeInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// wireEvent: форма события при разборе. Отсутствующие поля получают
// нулевые значения, что и есть значения по умолчанию.
type wireEvent struct {
	SchemaVersion *int     `json:"schema_version"`
	VideoMsgID    position `json:"video_msg_id"`
	FileID        string   `json:"file_id"`
	ThumbFileID   string   `json:"thumb_file_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Duration      float64  `json:"duration"`
	UploadedAt    float64  `json:"uploaded_at"`
}

// untitled подставляется вместо отсутствующего заголовка.
const untitled = "Untitled"

// Decode разбирает текст сообщения канала.
// Запись возвращается только при OutcomeDecoded, во всех остальных случаях nil.
func Decode(raw []byte) (*model.VideoRecord, Outcome) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, OutcomeEmpty
	}

	var probe struct {
		Type any `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, OutcomeMalformed
	}
	if tag, ok := probe.Type.(string); !ok || tag != model.EventType {
		return nil, OutcomeForeignType
	}

	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, OutcomeMalformed
	}

	rec := &model.VideoRecord{
		ID:              string(w.VideoMsgID),
		Title:           w.Title,
		Description:     w.Description,
		PrimaryHandle:   w.FileID,
		ThumbnailHandle: w.ThumbFileID,
		DurationSeconds: w.Duration,
		CreatedAt:       int64(w.UploadedAt),
		SchemaVersion:   model.SchemaVersion,
	}
	if rec.Title == "" {
		rec.Title = untitled
	}
	if w.SchemaVersion != nil {
		rec.SchemaVersion = *w.SchemaVersion
	}

	if !model.Validate(rec).Valid {
		return nil, OutcomeInvalid
	}
	return rec, OutcomeDecoded
}

// position принимает video_msg_id как число или как строку.
type position string

func (p *position) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*p = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = position(s)
		return nil
	}
	if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
		*p = position(strconv.FormatInt(n, 10))
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("video_msg_id: ожидалось число или строка, получено %s", b)
	}
	*p = position(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}
