// Package model содержит валидаторы для моделей.
//
// Группа: BASE - Базовые компоненты
// Содержит: ValidationError, ValidationErrors, валидаторы координат
package model

import (
	"fmt"
	"strings"
)

// ValidationError представляет ошибку валидации
type ValidationError struct {
	Field   string
	Message string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors представляет множество ошибок валидации
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// HasErrors проверяет, есть ли ошибки валидации
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Strings возвращает сообщения об ошибках
func (ve ValidationErrors) Strings() []string {
	out := make([]string, 0, len(ve))
	for _, err := range ve {
		out = append(out, err.Error())
	}
	return out
}

// ValidateLatitude проверяет диапазон широты
func ValidateLatitude(field string, lat float64) error {
	if lat < -90 || lat > 90 {
		return ValidationError{Field: field, Message: fmt.Sprintf("latitude %v out of range [-90, 90]", lat)}
	}
	return nil
}

// ValidateLongitude проверяет диапазон долготы
func ValidateLongitude(field string, lng float64) error {
	if lng < -180 || lng > 180 {
		return ValidationError{Field: field, Message: fmt.Sprintf("longitude %v out of range [-180, 180]", lng)}
	}
	return nil
}

// ValidateCoordinatePair проверяет пару необязательных координат: либо обе, либо ни одной
func ValidateCoordinatePair(prefix string, lat, lng *float64) ValidationErrors {
	var errors ValidationErrors
	switch {
	case lat == nil && lng == nil:
		return nil
	case lat == nil || lng == nil:
		errors = append(errors, ValidationError{Field: prefix + "coordinates", Message: "latitude and longitude must be set together"})
		return errors
	}
	if err := ValidateLatitude(prefix+"latitude", *lat); err != nil {
		errors = append(errors, err.(ValidationError))
	}
	if err := ValidateLongitude(prefix+"longitude", *lng); err != nil {
		errors = append(errors, err.(ValidationError))
	}
	return errors
}
