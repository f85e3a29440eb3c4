// videos.go: чтение каталога и resolve-маршруты.
//
//	GET /api/v1/videos                   список видимых записей, новые первыми
//	GET /api/v1/videos/{id}              карточка записи
//	GET /api/v1/videos/{id}/content      302 на временную ссылку видео
//	GET /api/v1/videos/{id}/thumbnail    302 на превью или заглушку
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/catalog-module/internal/api/errors"
	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/repository"
)

// videoItem: элемент списка видео.
type videoItem struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Duration     float64 `json:"duration"`
	ThumbnailURL string  `json:"thumbnail_url"`
	UploadedAt   int64   `json:"uploaded_at"`
}

// videoListResponse: ответ GET /api/v1/videos.
type videoListResponse struct {
	Videos []videoItem `json:"videos"`
	Total  int         `json:"total"`
}

// videoDetail: ответ GET /api/v1/videos/{id}.
type videoDetail struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Duration     float64 `json:"duration"`
	VideoURL     string  `json:"video_url"`
	DownloadURL  string  `json:"download_url"`
	ThumbnailURL string  `json:"thumbnail_url"`
	UploadedAt   int64   `json:"uploaded_at"`
}

// ListVideos: GET /api/v1/videos.
func (h *APIHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	records, err := h.catalog.ListVisible(r.Context())
	if err != nil {
		h.logger.Error("Ошибка чтения каталога", slog.String("error", err.Error()))
		apierrors.FromDomain(w, err)
		return
	}

	resp := videoListResponse{
		Videos: make([]videoItem, 0, len(records)),
		Total:  len(records),
	}
	for i := range records {
		resp.Videos = append(resp.Videos, h.toItem(&records[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetVideo: GET /api/v1/videos/{id}.
// Отсутствующая или невидимая запись даёт 404.
func (h *APIHandler) GetVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.NotFound(w, "Видео не найдено")
			return
		}
		h.logger.Error("Ошибка чтения каталога",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		apierrors.FromDomain(w, err)
		return
	}
	if !rec.Visible() {
		apierrors.NotFound(w, "Видео не найдено")
		return
	}

	item := h.toItem(rec)
	contentURL := "/api/v1/videos/" + rec.ID + "/content"
	writeJSON(w, http.StatusOK, videoDetail{
		ID:           item.ID,
		Title:        item.Title,
		Description:  item.Description,
		Duration:     item.Duration,
		VideoURL:     contentURL,
		DownloadURL:  contentURL,
		ThumbnailURL: item.ThumbnailURL,
		UploadedAt:   item.UploadedAt,
	})
}

// ResolveContent: GET /api/v1/videos/{id}/content.
// 302 на временную ссылку; 404, 429 с Retry-After или 502 при ошибке.
func (h *APIHandler) ResolveContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.resolver.Resolve(r.Context(), id, model.SlotPrimary)
	if err != nil {
		status := apierrors.FromDomain(w, err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Ошибка резолва видео",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	redirect(w, r, res.URL)
}

// ResolveThumbnail: GET /api/v1/videos/{id}/thumbnail.
// Всегда 302: на превью или на заглушку.
func (h *APIHandler) ResolveThumbnail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.resolver.Resolve(r.Context(), id, model.SlotThumbnail)
	if err != nil {
		h.logger.Error("Ошибка резолва превью, отдаётся заглушка",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		redirect(w, r, h.placeholderURL)
		return
	}
	if res.Degraded {
		h.logger.Debug("Превью заменено заглушкой",
			slog.String("id", id),
			slog.String("reason", res.Reason),
		)
	}

	redirect(w, r, res.URL)
}

// redirect отдаёт 302. Временные ссылки Bot API не кэшируются клиентом.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *APIHandler) toItem(rec *model.VideoRecord) videoItem {
	thumb := h.placeholderURL
	if rec.ThumbnailHandle != "" {
		thumb = "/api/v1/videos/" + rec.ID + "/thumbnail"
	}
	return videoItem{
		ID:           rec.ID,
		Title:        rec.Title,
		Description:  rec.Description,
		Duration:     rec.DurationSeconds,
		ThumbnailURL: thumb,
		UploadedAt:   rec.CreatedAt,
	}
}
