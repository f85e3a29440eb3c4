// Пакет errors: ответы с ошибками в едином формате.
// Формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт имени со stdlib, импортируется как apierrors

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// Коды ошибок API.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeRateLimited     = "RATE_LIMITED"
	CodeUpstreamError   = "UPSTREAM_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// errorBody: структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail: детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode: HTTP статус-код, code: машиночитаемый код, message: описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError: 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound: 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// RateLimited: 429 с заголовком Retry-After в секундах.
func RateLimited(w http.ResponseWriter, retryAfterSeconds int, message string) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, message)
}

// UpstreamError: 502 сбой Telegram Bot API.
func UpstreamError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeUpstreamError, message)
}

// InternalError: 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// FromDomain записывает ответ по категории доменной ошибки и возвращает HTTP-статус.
//
//	NotFoundError        → 404
//	RateLimitedError     → 429 + Retry-After
//	ExternalServiceError → 502
//	ValidationError      → 400
//	StorageError и прочее → 500
func FromDomain(w http.ResponseWriter, err error) int {
	var (
		nf  *model.NotFoundError
		rl  *model.RateLimitedError
		ext *model.ExternalServiceError
		ve  *model.ValidationError
	)
	switch {
	case stderrors.As(err, &nf):
		NotFound(w, nf.Error())
		return http.StatusNotFound
	case stderrors.As(err, &rl):
		RateLimited(w, rl.RetryAfterSeconds, rl.Error())
		return http.StatusTooManyRequests
	case stderrors.As(err, &ext):
		UpstreamError(w, ext.Error())
		return http.StatusBadGateway
	case stderrors.As(err, &ve):
		ValidationError(w, ve.Error())
		return http.StatusBadRequest
	default:
		InternalError(w, "Внутренняя ошибка каталога")
		return http.StatusInternalServerError
	}
}
