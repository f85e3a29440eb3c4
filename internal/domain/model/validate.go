package model

import "unicode/utf8"

// ValidationResult: результат проверки записи.
// Ошибки накапливаются в порядке проверки правил, без раннего выхода.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Err возвращает *ValidationError для невалидного результата, иначе nil.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Errors: r.Errors}
}

// Validate проверяет запись каталога. Функция чистая, без побочных эффектов.
// Пустой PrimaryHandle допустим: видимость по нему решается на уровне каталога.
func Validate(r *VideoRecord) ValidationResult {
	if r == nil {
		return ValidationResult{Valid: false, Errors: []string{"record is nil"}}
	}

	var errs []string

	if r.ID == "" {
		errs = append(errs, "id must be a non-empty string")
	}
	if r.Title == "" {
		errs = append(errs, "title must be a non-empty string")
	}
	if !utf8.ValidString(r.PrimaryHandle) {
		errs = append(errs, "primary_handle must be a string")
	}
	// NaN не проходит сравнение >= 0
	if !(r.DurationSeconds >= 0) {
		errs = append(errs, "duration_seconds must be a non-negative number")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
