//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"defect-inspector/internal/domain/entity"
)

// DetectDefects выравнивает test по template, сравнивает бинарные карты
// структуры и возвращает области отличий с подписанным снимком.
// Каждый вызов работает со своими буферами; входы не изменяются.
func (d *GoCVDetector) DetectDefects(ctx context.Context, template, test *entity.Image, params entity.Params) (*entity.DefectReport, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := template.Validate(); err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	if err := test.Validate(); err != nil {
		return nil, fmt.Errorf("test: %w", err)
	}
	// Отмена проверяется только до старта: частичный результат бесполезен.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	templateMat, err := toMat(template)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	defer templateMat.Close()

	testMat, err := toMat(test)
	if err != nil {
		return nil, fmt.Errorf("test: %w", err)
	}
	defer testMat.Close()

	if d.Gate != nil {
		if err := d.Gate.Check(templateMat, "template"); err != nil {
			return nil, err
		}
		if err := d.Gate.Check(testMat, "test"); err != nil {
			return nil, err
		}
	}

	return d.detect(templateMat, testMat, params)
}

func (d *GoCVDetector) detect(templateMat, testMat gocv.Mat, p entity.Params) (*entity.DefectReport, error) {
	started := time.Now()

	alignment, err := Align(templateMat, testMat, p)
	if err != nil {
		d.log.WithError(err).Warn("alignment failed")
		return nil, err
	}
	defer alignment.Close()

	if !sameSize(alignment.Aligned, templateMat) {
		return nil, fmt.Errorf("%w: aligned %dx%d, template %dx%d", entity.ErrDimensionMismatch,
			alignment.Aligned.Cols(), alignment.Aligned.Rows(), templateMat.Cols(), templateMat.Rows())
	}

	templateBinary := Binarize(templateMat, p)
	defer templateBinary.Close()
	testBinary := Binarize(alignment.Aligned, p)
	defer testBinary.Close()

	raw, err := IsolateDifferences(templateBinary, testBinary)
	if err != nil {
		return nil, err
	}
	defer func() { raw.Close() }()

	if p.SuppressWarpBorder {
		suppressWarpBorder(&raw, alignment.Valid, p.AdaptiveBlockSize)
	}
	rawPixels := gocv.CountNonZero(raw)

	clean := CleanMask(raw, p, d.log)
	defer clean.Close()
	cleanPixels := gocv.CountNonZero(clean)

	regions := ExtractRegions(clean, p.MinDefectSize)

	annotatedMat := Annotate(alignment.Aligned, regions)
	defer annotatedMat.Close()
	annotated, err := fromMat(annotatedMat)
	if err != nil {
		return nil, err
	}

	d.log.WithFields(logrus.Fields{
		"matches":      alignment.Matches,
		"inliers":      alignment.Inliers,
		"rotation":     fmt.Sprintf("%.2f", alignment.Homography.RotationDegrees()),
		"raw_pixels":   rawPixels,
		"clean_pixels": cleanPixels,
		"defects":      len(regions),
		"elapsed":      time.Since(started),
	}).Debug("defect detection finished")

	return &entity.DefectReport{
		Annotated:   annotated,
		DefectCount: len(regions),
		Regions:     regions,
		Homography:  alignment.Homography,
		Matches:     alignment.Matches,
		Inliers:     alignment.Inliers,
		RawPixels:   rawPixels,
		CleanPixels: cleanPixels,
	}, nil
}
