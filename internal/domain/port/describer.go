package port

import (
	"context"

	"defect-inspector/internal/domain/entity"
)

// DefectDescriber интерфейс описателя дефектов
type DefectDescriber interface {
	// Describe генерирует текстовое описание найденных дефектов
	Describe(ctx context.Context, report *entity.DefectReport) (*entity.Description, error)
}
