package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	apierrors "github.com/bigkaa/goartstore/catalog-module/internal/api/errors"
)

// ResolveRateLimit ограничивает число запросов к resolve-маршрутам с одного IP
// (скользящее окно в минуту). Каждый такой запрос расходует лимит Bot API.
// requestsPerMinute <= 0 отключает ограничение.
func ResolveRateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	window := time.Minute
	return httprate.Limit(
		requestsPerMinute,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			apierrors.RateLimited(w, int(window.Seconds()), "Слишком много запросов, повторите позже")
		}),
	)
}
