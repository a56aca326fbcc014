package port

import (
	"context"

	"defect-inspector/internal/domain/entity"
)

// DefectDetector интерфейс детектора дефектов
type DefectDetector interface {
	// DetectDefects выравнивает test по template и возвращает найденные отличия.
	// Ошибки сопоставляются с entity.Err* через errors.Is.
	DetectDefects(ctx context.Context, template, test *entity.Image, params entity.Params) (*entity.DefectReport, error)
}
