//go:build gocv
// +build gocv

package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"defect-inspector/internal/domain/entity"
)

// Check возвращает ошибку, совместимую с entity.ErrInvalidImage.
func (g *QualityGate) Check(mat gocv.Mat, label string) error {
	if mat.Empty() {
		return g.fail(label, "empty image")
	}

	if mat.Cols() < g.MinImageSide || mat.Rows() < g.MinImageSide {
		return g.fail(label, fmt.Sprintf("image is too small (%dx%d)", mat.Cols(), mat.Rows()))
	}

	gray := toGray(mat)
	defer gray.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 80, 160)
	if edgeRatio := ratioOfMask(edges); edgeRatio < g.MinSharpnessEdgeRatio {
		return g.fail(label, fmt.Sprintf("image is blurry (edge_ratio=%.4f)", edgeRatio))
	}

	bright := gocv.NewMat()
	defer bright.Close()
	gocv.Threshold(gray, &bright, 250, 255, gocv.ThresholdBinary)
	if ratio := ratioOfMask(bright); ratio > g.MaxOverexposedRatio {
		return g.fail(label, fmt.Sprintf("overexposed image (ratio=%.4f)", ratio))
	}

	dark := gocv.NewMat()
	defer dark.Close()
	gocv.Threshold(gray, &dark, 20, 255, gocv.ThresholdBinaryInv)
	if ratio := ratioOfMask(dark); ratio > g.MaxUnderexposedRatio {
		return g.fail(label, fmt.Sprintf("underexposed image (ratio=%.4f)", ratio))
	}

	// Блики: низкая насыщенность при высокой яркости. Для серых снимков не проверяем.
	if mat.Channels() != 3 {
		return nil
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(mat, &hsv, gocv.ColorBGRToHSV)
	channels := gocv.Split(hsv)
	for i := range channels {
		defer channels[i].Close()
	}
	if len(channels) < 3 {
		return g.fail(label, "invalid hsv channels")
	}

	lowSat := gocv.NewMat()
	defer lowSat.Close()
	gocv.Threshold(channels[1], &lowSat, 40, 255, gocv.ThresholdBinaryInv)

	highVal := gocv.NewMat()
	defer highVal.Close()
	gocv.Threshold(channels[2], &highVal, 245, 255, gocv.ThresholdBinary)

	glare := gocv.NewMat()
	defer glare.Close()
	gocv.BitwiseAnd(lowSat, highVal, &glare)
	if ratio := ratioOfMask(glare); ratio > g.MaxGlareRatio {
		return g.fail(label, fmt.Sprintf("too much glare (ratio=%.4f)", ratio))
	}

	return nil
}

func (g *QualityGate) fail(label, reason string) error {
	return fmt.Errorf("%w: quality gate failed for %s: %s", entity.ErrInvalidImage, label, reason)
}

func ratioOfMask(mask gocv.Mat) float64 {
	total := mask.Cols() * mask.Rows()
	if total <= 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total)
}
