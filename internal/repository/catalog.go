// Пакет repository: операции каталога поверх хранилища снимка.
// Каждая операция загружает снимок заново; изменения идут через
// compare-and-swap, так что читатель никогда не видит частичную запись.
package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/storage/snapshot"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound: запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
)

// maxUpdateAttempts: сколько раз Update перечитывает снимок при конфликте версий.
const maxUpdateAttempts = 5

// Mutator изменяет загруженный снимок на месте.
// changed=false означает, что менять нечего, и запись не выполняется.
type Mutator func(snap *snapshot.Snapshot) (changed bool, err error)

// CatalogRepository: каталог записей поверх snapshot.Store.
type CatalogRepository struct {
	store  snapshot.Store
	onSave []func()
}

// NewCatalogRepository создаёт репозиторий каталога.
func NewCatalogRepository(store snapshot.Store) *CatalogRepository {
	return &CatalogRepository{store: store}
}

// OnSave регистрирует функцию, вызываемую после каждой успешной записи
// (например, сброс кэша записей).
func (r *CatalogRepository) OnSave(fn func()) {
	r.onSave = append(r.onSave, fn)
}

// Snapshot возвращает текущий снимок целиком (версия, курсор, записи).
func (r *CatalogRepository) Snapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return nil, &model.StorageError{Op: "load", Err: err}
	}
	return snap, nil
}

// Load возвращает все записи в порядке хранения.
func (r *CatalogRepository) Load(ctx context.Context) ([]model.VideoRecord, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Records, nil
}

// Cursor возвращает наибольшую позицию журнала, уже учтённую каталогом.
func (r *CatalogRepository) Cursor(ctx context.Context) (int64, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return snap.Cursor, nil
}

// Save заменяет все записи каталога. Семантика "последняя запись побеждает":
// конфликт версий разрешается перечитыванием, курсор сохраняется.
func (r *CatalogRepository) Save(ctx context.Context, records []model.VideoRecord) error {
	next := slices.Clone(records)
	_, err := r.Update(ctx, func(snap *snapshot.Snapshot) (bool, error) {
		snap.Records = next
		return true, nil
	})
	return err
}

// Upsert заменяет запись с тем же ID целиком или добавляет её в конец.
// Фильтрации по видимости здесь нет: её выполняют чтение и синхронизация.
func (r *CatalogRepository) Upsert(ctx context.Context, rec model.VideoRecord) error {
	if err := model.Validate(&rec).Err(); err != nil {
		return err
	}
	_, err := r.Update(ctx, func(snap *snapshot.Snapshot) (bool, error) {
		snap.Records = upsertRecord(snap.Records, rec)
		return true, nil
	})
	return err
}

// ListVisible возвращает видимые записи (без демо и без пустого primary_handle),
// отсортированные по created_at по убыванию. Сортировка стабильная.
func (r *CatalogRepository) ListVisible(ctx context.Context) ([]model.VideoRecord, error) {
	records, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	return VisibleSorted(records), nil
}

// Get возвращает запись по ID, включая невидимые.
// Возвращает ErrNotFound, если записи нет.
func (r *CatalogRepository) Get(ctx context.Context, id string) (*model.VideoRecord, error) {
	records, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			rec := records[i]
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

// Update выполняет цикл чтение-изменение-CAS. При конфликте версий
// снимок перечитывается и mutate вызывается заново, не более maxUpdateAttempts раз.
// Возвращает записанный снимок или nil, если mutate сообщил об отсутствии изменений.
func (r *CatalogRepository) Update(ctx context.Context, mutate Mutator) (*snapshot.Snapshot, error) {
	var lastErr error
	for range maxUpdateAttempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current, err := r.store.Load(ctx)
		if err != nil {
			return nil, &model.StorageError{Op: "load", Err: err}
		}

		next := *current
		next.Records = slices.Clone(current.Records)
		changed, err := mutate(&next)
		if err != nil {
			return nil, err
		}
		if !changed {
			return nil, nil
		}

		written, err := r.store.CompareAndSwap(ctx, current.Version, next)
		if errors.Is(err, snapshot.ErrVersionConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, &model.StorageError{Op: "save", Err: err}
		}

		for _, fn := range r.onSave {
			fn()
		}
		return written, nil
	}
	return nil, &model.StorageError{Op: "save", Err: lastErr}
}

// readinessTimeout: предел на чтение снимка при проверке готовности.
const readinessTimeout = 3 * time.Second

// CheckReady проверяет, что снимок каталога читается.
// Возвращает статус ("ok", "fail") и сообщение.
func (r *CatalogRepository) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
	defer cancel()

	snap, err := r.Snapshot(ctx)
	if err != nil {
		return "fail", err.Error()
	}
	return "ok", fmt.Sprintf("версия %d, записей %d", snap.Version, len(snap.Records))
}

// VisibleSorted отбрасывает невидимые записи и сортирует остальные
// по created_at по убыванию, сохраняя порядок равных.
func VisibleSorted(records []model.VideoRecord) []model.VideoRecord {
	out := make([]model.VideoRecord, 0, len(records))
	for i := range records {
		if records[i].Visible() {
			out = append(out, records[i])
		}
	}
	slices.SortStableFunc(out, func(a, b model.VideoRecord) int {
		return cmp.Compare(b.CreatedAt, a.CreatedAt)
	})
	return out
}

func upsertRecord(records []model.VideoRecord, rec model.VideoRecord) []model.VideoRecord {
	for i := range records {
		if records[i].ID == rec.ID {
			records[i] = rec
			return records
		}
	}
	return append(records, rec)
}
