// handler.go: основной обработчик API Catalog Module.
// Объединяет health, чтение каталога, resolve-маршруты и ручную синхронизацию.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/service"
)

// CatalogReader: чтение каталога.
type CatalogReader interface {
	ListVisible(ctx context.Context) ([]model.VideoRecord, error)
	Get(ctx context.Context, id string) (*model.VideoRecord, error)
}

// Resolver: превращение ID записи в ссылку на файл.
type Resolver interface {
	Resolve(ctx context.Context, id string, slot model.Slot) (*service.Resolution, error)
}

// Syncer: ручной запуск синхронизации.
type Syncer interface {
	SyncOnce(ctx context.Context, limit int) (*service.SyncResult, error)
}

// APIHandler: основной обработчик API Catalog Module.
type APIHandler struct {
	catalog        CatalogReader
	resolver       Resolver
	syncer         Syncer
	health         *HealthHandler
	placeholderURL string
	logger         *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// placeholderURL: URL заглушки превью в ответах списка и карточки.
func NewAPIHandler(
	catalog CatalogReader,
	resolver Resolver,
	syncer Syncer,
	health *HealthHandler,
	placeholderURL string,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		catalog:        catalog,
		resolver:       resolver,
		syncer:         syncer,
		health:         health,
		placeholderURL: placeholderURL,
		logger:         logger.With(slog.String("component", "api_handler")),
	}
}

// Register регистрирует маршруты в chi-роутере.
// resolveMiddlewares применяются только к resolve-маршрутам (rate limit по IP).
func (h *APIHandler) Register(r chi.Router, resolveMiddlewares ...func(http.Handler) http.Handler) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)
	r.Get(PlaceholderPath, ServePlaceholder)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/videos", h.ListVideos)
		r.Get("/videos/{id}", h.GetVideo)
		r.Post("/sync", h.TriggerSync)

		r.Group(func(r chi.Router) {
			r.Use(resolveMiddlewares...)
			r.Get("/videos/{id}/content", h.ResolveContent)
			r.Get("/videos/{id}/thumbnail", h.ResolveThumbnail)
		})
	})
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
