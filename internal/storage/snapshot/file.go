package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// document: формат файла снимка на диске.
type document struct {
	Version   uint64              `json:"version"`
	Cursor    int64               `json:"cursor"`
	UpdatedAt time.Time           `json:"updated_at"`
	Videos    []model.VideoRecord `json:"videos"`
}

// legacyRecord: элемент старого videos.json (голый JSON-массив без версии).
type legacyRecord struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	FileID      string  `json:"file_id"`
	ThumbFileID string  `json:"thumb_file_id"`
	Duration    float64 `json:"duration"`
	UploadedAt  int64   `json:"uploaded_at"`
}

// FileStore хранит снимок в одном JSON-файле.
// Запись атомарна: временный файл, fsync, rename (renameio).
// CompareAndSwap сериализуется мьютексом внутри процесса и flock на
// соседнем файле <path>.lock между процессами (CLI и сервер).
type FileStore struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewFileStore создаёт файловое хранилище снимка.
// Директория создаётся, если не существует.
func NewFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию каталога %s: %w", dir, err)
	}
	return &FileStore{path: path, now: time.Now}, nil
}

// Path возвращает путь к файлу снимка.
func (s *FileStore) Path() string {
	return s.path
}

// Load читает снимок с диска.
func (s *FileStore) Load(_ context.Context) (*Snapshot, error) {
	return s.read()
}

// CompareAndSwap атомарно заменяет файл снимка, если версия не изменилась.
func (s *FileStore) CompareAndSwap(_ context.Context, expectedVersion uint64, next Snapshot) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := lockFile(s.path + ".lock")
	if err != nil {
		return nil, fmt.Errorf("блокировка снимка: %w", err)
	}
	defer func() { _ = unlock() }()

	current, err := s.read()
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("%w: ожидалась версия %d, текущая %d", ErrVersionConflict, expectedVersion, current.Version)
	}

	doc := document{
		Version:   expectedVersion + 1,
		Cursor:    next.Cursor,
		UpdatedAt: s.now().UTC().Truncate(time.Second),
		Videos:    next.Records,
	}
	if doc.Videos == nil {
		doc.Videos = []model.VideoRecord{}
	}

	if err := s.write(&doc); err != nil {
		return nil, err
	}

	return &Snapshot{
		Version:   doc.Version,
		Cursor:    doc.Cursor,
		UpdatedAt: doc.UpdatedAt,
		Records:   doc.Videos,
	}, nil
}

// read читает и разбирает файл. Отсутствующий файл даёт пустой снимок.
func (s *FileStore) read() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения снимка %s: %w", s.path, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &Snapshot{}, nil
	}

	// Старый формат: голый массив записей без версии
	if data[0] == '[' {
		return decodeLegacy(data)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ошибка десериализации снимка %s: %w", s.path, err)
	}
	return &Snapshot{
		Version:   doc.Version,
		Cursor:    doc.Cursor,
		UpdatedAt: doc.UpdatedAt,
		Records:   doc.Videos,
	}, nil
}

// write записывает документ через renameio: temp файл, fsync, atomic rename.
func (s *FileStore) write(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации снимка: %w", err)
	}

	pending, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла снимка: %w", err)
	}
	// Cleanup удаляет временный файл, если замена не состоялась
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("ошибка записи снимка: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("ошибка атомарной замены снимка: %w", err)
	}
	return nil
}

// decodeLegacy переводит старый videos.json в снимок версии 0.
func decodeLegacy(data []byte) (*Snapshot, error) {
	var legacy []legacyRecord
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("ошибка десериализации videos.json: %w", err)
	}

	records := make([]model.VideoRecord, 0, len(legacy))
	for _, l := range legacy {
		records = append(records, model.VideoRecord{
			ID:              l.ID,
			Title:           l.Title,
			Description:     l.Description,
			PrimaryHandle:   l.FileID,
			ThumbnailHandle: l.ThumbFileID,
			DurationSeconds: l.Duration,
			CreatedAt:       l.UploadedAt,
			SchemaVersion:   model.SchemaVersion,
		})
	}
	return &Snapshot{Records: records}, nil
}
