package utils

import (
	"time"

	"github.com/go-playground/validator/v10"
)

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	var def T
	if len(defaults) > 0 {
		def = defaults[0]
	}
	return def
}

// NormalizeDate sets the time components (hour, minute, second, nanosecond) to zero.
// All shipping/due-date comparisons in the engine are date-only.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func NormalizeDatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := NormalizeDate(*t)
	return &d
}
