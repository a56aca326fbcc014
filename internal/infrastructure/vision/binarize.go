//go:build gocv
// +build gocv

package vision

import (
	"gocv.io/x/gocv"

	"defect-inspector/internal/domain/entity"
)

// Binarize строит бинарную карту структуры адаптивным порогом с инверсией:
// перепады яркости и текстура становятся 255, ровные участки 0.
// Оба снимка должны проходить через Binarize с одинаковыми параметрами.
func Binarize(src gocv.Mat, p entity.Params) gocv.Mat {
	gray := toGray(src)
	defer gray.Close()

	method := gocv.AdaptiveThresholdGaussian
	if p.AdaptiveMethod == entity.AdaptiveMean {
		method = gocv.AdaptiveThresholdMean
	}

	binary := gocv.NewMat()
	gocv.AdaptiveThreshold(gray, &binary, 255, method, gocv.ThresholdBinaryInv,
		p.AdaptiveBlockSize, float32(p.AdaptiveC))
	return binary
}
