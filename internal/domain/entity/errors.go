package entity

import (
	"errors"
	"fmt"
)

// Ошибки конвейера поиска дефектов. Проверяются через errors.Is.
var (
	ErrInsufficientFeatureMatches = errors.New("insufficient feature matches")
	ErrHomographyEstimationFailed = errors.New("homography estimation failed")
	ErrDimensionMismatch          = errors.New("dimension mismatch")
	ErrInvalidImage               = errors.New("invalid image")
	ErrInvalidParams              = errors.New("invalid params")
)

// Имена видов ошибок, которые отдаются наружу (HTTP, задания).
const (
	KindInsufficientFeatureMatches = "InsufficientFeatureMatches"
	KindHomographyEstimationFailed = "HomographyEstimationFailed"
	KindDimensionMismatch          = "DimensionMismatch"
	KindInvalidImage               = "InvalidImage"
	KindInvalidParams              = "InvalidParams"
	KindInternal                   = "Internal"
)

// ErrorKind сопоставляет ошибку с её видом.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientFeatureMatches):
		return KindInsufficientFeatureMatches
	case errors.Is(err, ErrHomographyEstimationFailed):
		return KindHomographyEstimationFailed
	case errors.Is(err, ErrDimensionMismatch):
		return KindDimensionMismatch
	case errors.Is(err, ErrInvalidImage):
		return KindInvalidImage
	case errors.Is(err, ErrInvalidParams):
		return KindInvalidParams
	default:
		return KindInternal
	}
}

// ValidationError описывает неверное значение параметра конвейера.
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s value %v - %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidParams
}
