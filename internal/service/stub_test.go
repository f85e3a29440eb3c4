package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/repository"
	"github.com/bigkaa/goartstore/catalog-module/internal/storage/snapshot"
	"github.com/bigkaa/goartstore/catalog-module/internal/tgclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// stubRemote: заглушка удалённого журнала. Реализует BlobPublisher,
// EventFetcher и ContentResolver.
type stubRemote struct {
	mu sync.Mutex

	nextPosition int64
	derivedThumb string
	uploadErr    map[model.Slot]error
	uploads      []stubUpload

	publishErr error
	published  [][]byte

	events      []tgclient.RawEvent
	fetchErr    error
	fetchCalls  int
	sinceCursor []int64
	// fetchGate: если задан, Fetch* ждут его закрытия; fetchEntered закрывается при входе
	fetchGate    chan struct{}
	fetchEntered chan struct{}

	resolveURL string
	resolveErr error
	resolved   []string
}

type stubUpload struct {
	kind model.Slot
	name string
	data string
}

func (s *stubRemote) UploadBlob(_ context.Context, kind model.Slot, name string, r io.Reader) (*tgclient.BlobUpload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.uploadErr[kind]; err != nil {
		return nil, err
	}
	s.uploads = append(s.uploads, stubUpload{kind: kind, name: name, data: string(data)})
	s.nextPosition++

	up := &tgclient.BlobUpload{
		Handle:   "handle-" + name,
		Position: s.nextPosition,
	}
	if kind == model.SlotPrimary {
		up.DerivedThumbnail = s.derivedThumb
	}
	return up, nil
}

func (s *stubRemote) PublishEvent(_ context.Context, payload []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.publishErr != nil {
		return 0, s.publishErr
	}
	s.published = append(s.published, payload)
	s.nextPosition++
	return s.nextPosition, nil
}

func (s *stubRemote) FetchRecentEvents(_ context.Context, _ int) ([]tgclient.RawEvent, error) {
	return s.fetch(nil)
}

func (s *stubRemote) FetchEventsSince(_ context.Context, cursor int64, _ int) ([]tgclient.RawEvent, error) {
	return s.fetch(&cursor)
}

func (s *stubRemote) fetch(cursor *int64) ([]tgclient.RawEvent, error) {
	if s.fetchEntered != nil {
		close(s.fetchEntered)
	}
	if s.fetchGate != nil {
		<-s.fetchGate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetchCalls++
	if cursor != nil {
		s.sinceCursor = append(s.sinceCursor, *cursor)
	}
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}

	// курсор не фильтрует: отсев устаревших позиций проверяется на стороне сервиса
	return slices.Clone(s.events), nil
}

func (s *stubRemote) ResolveContentURL(_ context.Context, handle string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resolved = append(s.resolved, handle)
	if s.resolveErr != nil {
		return "", s.resolveErr
	}
	return s.resolveURL, nil
}

// newTestCatalog создаёт каталог на файловом снимке во временной директории.
func newTestCatalog(t *testing.T) (*repository.CatalogRepository, *snapshot.FileStore) {
	t.Helper()
	store, err := snapshot.NewFileStore(filepath.Join(t.TempDir(), "videos.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return repository.NewCatalogRepository(store), store
}

// failingStore: хранилище, у которого ломается запись.
type failingStore struct {
	snapshot.Store
	casErr error
}

func (s *failingStore) CompareAndSwap(context.Context, uint64, snapshot.Snapshot) (*snapshot.Snapshot, error) {
	return nil, s.casErr
}
