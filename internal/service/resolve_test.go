package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/repository"
)

const testPlaceholder = "/placeholder-thumb.svg"

// countingGetter считает обращения к каталогу.
type countingGetter struct {
	records map[string]model.VideoRecord
	err     error
	calls   atomic.Int32
}

func (g *countingGetter) Get(_ context.Context, id string) (*model.VideoRecord, error) {
	g.calls.Add(1)
	if g.err != nil {
		return nil, g.err
	}
	rec, ok := g.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func newTestGetter() *countingGetter {
	return &countingGetter{records: map[string]model.VideoRecord{
		"1":          {ID: "1", Title: "полная", PrimaryHandle: "p1", ThumbnailHandle: "t1"},
		"2":          {ID: "2", Title: "без превью", PrimaryHandle: "p2"},
		"3":          {ID: "3", Title: "без файла"},
		model.DemoID: {ID: model.DemoID, Title: "Демо", PrimaryHandle: "pd", ThumbnailHandle: "td"},
	}}
}

func TestResolve_Primary(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		remoteErr   error
		wantURL     string
		wantSubject string
		wantErr     error
	}{
		{name: "успешный резолв", id: "1", wantURL: "https://cdn.example/x"},
		{name: "нет записи", id: "404", wantSubject: "record"},
		{name: "демо-запись", id: model.DemoID, wantSubject: "record"},
		{name: "пустой handle", id: "3", wantSubject: "content handle"},
		{
			name:      "лимит Bot API",
			id:        "1",
			remoteErr: &model.RateLimitedError{RetryAfterSeconds: 60},
			wantErr:   &model.RateLimitedError{RetryAfterSeconds: 60},
		},
		{
			name:      "файл удалён из Telegram",
			id:        "1",
			remoteErr: &model.NotFoundError{Subject: "content"},
			wantErr:   &model.NotFoundError{Subject: "content"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &stubRemote{resolveURL: "https://cdn.example/x", resolveErr: tt.remoteErr}
			svc := NewResolveService(newTestGetter(), nil, remote, testPlaceholder, testLogger())

			res, err := svc.Resolve(context.Background(), tt.id, model.SlotPrimary)

			switch {
			case tt.wantSubject != "":
				var nf *model.NotFoundError
				if !errors.As(err, &nf) || nf.Subject != tt.wantSubject {
					t.Fatalf("ожидалась NotFoundError(%q), получено %v", tt.wantSubject, err)
				}
				if len(remote.resolved) != 0 {
					t.Error("Bot API не должен вызываться")
				}
			case tt.wantErr != nil:
				if err == nil || err.Error() != tt.wantErr.Error() {
					t.Fatalf("ожидалась ошибка %v, получено %v", tt.wantErr, err)
				}
				var rl *model.RateLimitedError
				if errors.As(tt.wantErr, &rl) {
					var got *model.RateLimitedError
					if !errors.As(err, &got) || got.RetryAfterSeconds != rl.RetryAfterSeconds {
						t.Errorf("ожидалась RateLimitedError{%d}, получено %v", rl.RetryAfterSeconds, err)
					}
				}
			default:
				if err != nil {
					t.Fatalf("Resolve: %v", err)
				}
				if res.URL != tt.wantURL || res.Degraded {
					t.Errorf("неожиданный результат: %+v", res)
				}
			}
		})
	}
}

// Превью никогда не завершается ошибкой.
func TestResolve_Thumbnail(t *testing.T) {
	tests := []struct {
		name         string
		id           string
		remoteErr    error
		wantURL      string
		wantDegraded bool
		wantReason   string
	}{
		{name: "успешный резолв", id: "1", wantURL: "https://cdn.example/t"},
		{name: "нет записи", id: "404", wantURL: testPlaceholder, wantDegraded: true, wantReason: ReasonRecordNotFound},
		{name: "демо-запись", id: model.DemoID, wantURL: testPlaceholder, wantDegraded: true, wantReason: ReasonRecordNotFound},
		{name: "нет превью", id: "2", wantURL: testPlaceholder, wantDegraded: true, wantReason: ReasonNoThumbnail},
		{
			name:         "ошибка Bot API",
			id:           "1",
			remoteErr:    &model.ExternalServiceError{Code: 502, Description: "bad gateway"},
			wantURL:      testPlaceholder,
			wantDegraded: true,
			wantReason:   ReasonRemoteError,
		},
		{
			name:         "лимит Bot API",
			id:           "1",
			remoteErr:    &model.RateLimitedError{RetryAfterSeconds: 60},
			wantURL:      testPlaceholder,
			wantDegraded: true,
			wantReason:   ReasonRemoteError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &stubRemote{resolveURL: "https://cdn.example/t", resolveErr: tt.remoteErr}
			svc := NewResolveService(newTestGetter(), nil, remote, testPlaceholder, testLogger())

			res, err := svc.Resolve(context.Background(), tt.id, model.SlotThumbnail)
			if err != nil {
				t.Fatalf("резолв превью не должен завершаться ошибкой: %v", err)
			}
			if res.URL != tt.wantURL || res.Degraded != tt.wantDegraded || res.Reason != tt.wantReason {
				t.Errorf("получено %+v, ожидалось URL=%q Degraded=%v Reason=%q",
					res, tt.wantURL, tt.wantDegraded, tt.wantReason)
			}
		})
	}
}

// Сбой хранилища: primary возвращает ошибку, превью деградирует до заглушки.
func TestResolve_StorageError(t *testing.T) {
	getter := newTestGetter()
	getter.err = &model.StorageError{Op: "load", Err: errors.New("битый снимок")}
	remote := &stubRemote{}
	svc := NewResolveService(getter, nil, remote, testPlaceholder, testLogger())

	_, err := svc.Resolve(context.Background(), "1", model.SlotPrimary)
	var serr *model.StorageError
	if !errors.As(err, &serr) {
		t.Errorf("primary: ожидалась StorageError, получено %v", err)
	}

	res, err := svc.Resolve(context.Background(), "1", model.SlotThumbnail)
	if err != nil {
		t.Fatalf("thumbnail: резолв превью не должен завершаться ошибкой: %v", err)
	}
	if res.URL != testPlaceholder || !res.Degraded || res.Reason != ReasonStorageError {
		t.Errorf("thumbnail: получено %+v, ожидалась заглушка с причиной %q", res, ReasonStorageError)
	}
	if len(remote.resolved) != 0 {
		t.Error("Bot API не должен вызываться")
	}
}

// Записи кэшируются, ссылки нет: каждый резолв идёт в Bot API.
func TestResolve_CachesRecordsNotURLs(t *testing.T) {
	getter := newTestGetter()
	remote := &stubRemote{resolveURL: "https://cdn.example/x"}
	cache := NewCacheService(10, time.Minute)
	svc := NewResolveService(getter, cache, remote, testPlaceholder, testLogger())
	ctx := context.Background()

	for range 3 {
		if _, err := svc.Resolve(ctx, "1", model.SlotPrimary); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}
	if n := getter.calls.Load(); n != 1 {
		t.Errorf("каталог прочитан %d раз, ожидался 1", n)
	}
	if len(remote.resolved) != 3 {
		t.Errorf("Bot API вызван %d раз, ожидалось 3", len(remote.resolved))
	}

	cache.Purge()
	if _, err := svc.Resolve(ctx, "1", model.SlotThumbnail); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if n := getter.calls.Load(); n != 2 {
		t.Errorf("после сброса кэша каталог должен читаться снова, прочитан %d раз", n)
	}
}

func TestResolve_DemoNeverReachesCatalog(t *testing.T) {
	getter := newTestGetter()
	svc := NewResolveService(getter, nil, &stubRemote{}, testPlaceholder, testLogger())

	_, _ = svc.Resolve(context.Background(), model.DemoID, model.SlotPrimary)
	if n := getter.calls.Load(); n != 0 {
		t.Errorf("демо-запись не должна искаться в каталоге, обращений: %d", n)
	}
}

// purgingGetter имитирует запись снимка, завершившуюся во время чтения каталога.
type purgingGetter struct {
	*countingGetter
	cache *CacheService
}

func (g *purgingGetter) Get(ctx context.Context, id string) (*model.VideoRecord, error) {
	rec, err := g.countingGetter.Get(ctx, id)
	g.cache.Purge()
	return rec, err
}

// Запись, прочитанная до сброса кэша, не кэшируется.
func TestResolve_DoesNotCacheRecordReadBeforePurge(t *testing.T) {
	cache := NewCacheService(10, time.Minute)
	getter := &purgingGetter{countingGetter: newTestGetter(), cache: cache}
	svc := NewResolveService(getter, cache, &stubRemote{resolveURL: "https://cdn.example/x"}, testPlaceholder, testLogger())

	if _, err := svc.Resolve(context.Background(), "1", model.SlotPrimary); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("в кэше %d записей, ожидалось 0", cache.Len())
	}
	if _, err := svc.Resolve(context.Background(), "1", model.SlotPrimary); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if n := getter.calls.Load(); n != 2 {
		t.Errorf("каталог прочитан %d раз, ожидалось 2", n)
	}
}
