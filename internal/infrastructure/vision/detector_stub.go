//go:build !gocv
// +build !gocv

package vision

import (
	"context"

	"defect-inspector/internal/domain/entity"
)

// DetectDefects возвращает ошибку, если сборка без тега gocv.
func (d *GoCVDetector) DetectDefects(ctx context.Context, template, test *entity.Image, params entity.Params) (*entity.DefectReport, error) {
	_ = ctx
	_ = template
	_ = test
	_ = params
	return nil, ErrNotEnabled
}
