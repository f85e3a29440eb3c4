package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/bigkaa/goartstore/catalog-module/internal/api/errors"
)

// maxSyncLimit: предел limit у getUpdates.
const maxSyncLimit = 100

// TriggerSync: POST /api/v1/sync[?limit=N].
// Запускает синхронизацию и возвращает её итог.
func (h *APIHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSyncLimit {
			apierrors.ValidationError(w, "limit должен быть целым числом от 1 до 100")
			return
		}
		limit = n
	}

	res, err := h.syncer.SyncOnce(r.Context(), limit)
	if err != nil {
		h.logger.Error("Ошибка синхронизации по запросу", slog.String("error", err.Error()))
		apierrors.FromDomain(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
