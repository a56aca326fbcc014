//go:build gocv
// +build gocv

package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"defect-inspector/internal/domain/entity"
)

// IsolateDifferences возвращает XOR двух бинарных карт.
// Карты разного размера считаются ошибкой вызывающего кода.
func IsolateDifferences(templateMask, testMask gocv.Mat) (gocv.Mat, error) {
	if !sameSize(templateMask, testMask) || templateMask.Channels() != testMask.Channels() {
		return gocv.NewMat(), fmt.Errorf("%w: %dx%dx%d vs %dx%dx%d", entity.ErrDimensionMismatch,
			templateMask.Cols(), templateMask.Rows(), templateMask.Channels(),
			testMask.Cols(), testMask.Rows(), testMask.Channels())
	}

	diff := gocv.NewMat()
	gocv.BitwiseXor(templateMask, testMask, &diff)
	return diff, nil
}

// suppressWarpBorder гасит отличия у края области, покрытой test после
// warp: заливка нулём за краем даёт ложные перепады на полосе шириной
// около окна адаптивного порога.
func suppressWarpBorder(diff *gocv.Mat, valid gocv.Mat, blockSize int) {
	size := blockSize + 2
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, size))
	defer kernel.Close()

	inner := gocv.NewMat()
	defer inner.Close()
	gocv.Erode(valid, &inner, kernel)

	masked := gocv.NewMat()
	gocv.BitwiseAnd(*diff, inner, &masked)
	diff.Close()
	*diff = masked
}
