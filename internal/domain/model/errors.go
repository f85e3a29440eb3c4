// errors.go: таксономия ошибок каталога.
// Все ошибки проверяются через errors.As и несут достаточно структуры,
// чтобы HTTP-слой и CLI различали категории.
package model

import (
	"fmt"
	"strings"
)

// ValidationError: некорректные поля записи или входных данных.
// Локальная ошибка, повторять запрос бессмысленно.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "ошибка валидации: " + strings.Join(e.Errors, "; ")
}

// NotFoundError: отсутствует запись, content handle или содержимое на удалённой стороне.
type NotFoundError struct {
	// Subject: что именно не найдено ("record", "content handle", "content")
	Subject string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("не найдено: %s", e.Subject)
}

// RateLimitedError: удалённый сервис ограничил частоту запросов.
// Ядро не повторяет запрос само, задержка передаётся вызывающему коду.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("превышен лимит запросов, повтор через %d с", e.RetryAfterSeconds)
}

// ExternalServiceError: любой другой неуспешный ответ удалённого сервиса.
// Code = 0 означает транспортную ошибку (ответ не получен).
type ExternalServiceError struct {
	Code        int
	Description string
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("ошибка внешнего сервиса (code=%d): %s", e.Code, e.Description)
}

// StorageError: сбой чтения или записи локального снимка каталога.
// Фатальна для текущей операции и всегда пробрасывается наверх.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ошибка хранилища каталога (%s): %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
