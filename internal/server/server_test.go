package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/bigkaa/goartstore/catalog-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/catalog-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/catalog-module/internal/config"
	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/repository"
	"github.com/bigkaa/goartstore/catalog-module/internal/service"
	"github.com/bigkaa/goartstore/catalog-module/internal/storage/snapshot"
)

type staticContent struct{}

func (staticContent) ResolveContentURL(_ context.Context, handle string) (string, error) {
	return "https://cdn.example/" + handle, nil
}

type noopSyncer struct{}

func (noopSyncer) SyncOnce(context.Context, int) (*service.SyncResult, error) {
	return &service.SyncResult{}, nil
}

func newTestServer(t *testing.T, rateLimit int) *Server {
	t.Helper()

	store, err := snapshot.NewFileStore(filepath.Join(t.TempDir(), "videos.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	repo := repository.NewCatalogRepository(store)
	err = repo.Save(context.Background(), []model.VideoRecord{
		{ID: "1", Title: "один", PrimaryHandle: "p1", CreatedAt: 1, SchemaVersion: 1},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := service.NewResolveService(repo, nil, staticContent{}, handlers.PlaceholderPath, logger)
	h := handlers.NewAPIHandler(repo, resolver, noopSyncer{}, handlers.NewHealthHandler(repo, nil), handlers.PlaceholderPath, logger)

	cfg := &config.ServerConfig{
		Port:             0,
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     5 * time.Second,
		IdleTimeout:      5 * time.Second,
		ShutdownTimeout:  2 * time.Second,
		ResolveRateLimit: rateLimit,
	}
	return New(cfg, logger, h)
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "192.0.2.10:40000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t, 0)
	h := srv.Handler()

	tests := []struct {
		path string
		want int
	}{
		{"/health/live", http.StatusOK},
		{"/health/ready", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/placeholder-thumb.svg", http.StatusOK},
		{"/api/v1/videos", http.StatusOK},
		{"/api/v1/videos/1", http.StatusOK},
		{"/api/v1/videos/1/content", http.StatusFound},
		{"/api/v1/videos/1/thumbnail", http.StatusFound},
		{"/api/v1/videos/404", http.StatusNotFound},
		{"/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(h, tt.path)
			if w.Code != tt.want {
				t.Errorf("статус %d, ожидался %d", w.Code, tt.want)
			}
			if w.Header().Get(middleware.RequestIDHeader) == "" {
				t.Error("ответ должен содержать X-Request-ID")
			}
		})
	}
}

// Лимит действует только на resolve-маршруты.
func TestServer_ResolveRateLimit(t *testing.T) {
	srv := newTestServer(t, 1)
	h := srv.Handler()

	if w := get(h, "/api/v1/videos/1/content"); w.Code != http.StatusFound {
		t.Fatalf("первый запрос: статус %d", w.Code)
	}
	if w := get(h, "/api/v1/videos/1/thumbnail"); w.Code != http.StatusTooManyRequests {
		t.Errorf("второй resolve-запрос: статус %d, ожидался 429", w.Code)
	}
	for range 3 {
		if w := get(h, "/api/v1/videos"); w.Code != http.StatusOK {
			t.Errorf("список не должен ограничиваться: статус %d", w.Code)
		}
	}
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := newTestServer(t, 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run не завершился после отмены контекста")
	}
}
