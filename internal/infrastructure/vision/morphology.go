//go:build gocv
// +build gocv

package vision

import (
	"image"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"defect-inspector/internal/domain/entity"
)

type cleanupStep struct {
	name  string
	apply func(src gocv.Mat, dst *gocv.Mat)
}

// cleanupKernels — структурные элементы очистки. Освобождаются через Close.
type cleanupKernels struct {
	open       gocv.Mat // маленький квадрат
	closeSmall gocv.Mat // средний квадрат
	closeLarge gocv.Mat // большой эллипс
}

func newCleanupKernels(p entity.Params) cleanupKernels {
	return cleanupKernels{
		open:       gocv.GetStructuringElement(gocv.MorphRect, image.Pt(p.OpenKernel, p.OpenKernel)),
		closeSmall: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(p.CloseKernelSmall, p.CloseKernelSmall)),
		closeLarge: gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(p.CloseKernelLarge, p.CloseKernelLarge)),
	}
}

func (k cleanupKernels) Close() {
	k.open.Close()
	k.closeSmall.Close()
	k.closeLarge.Close()
}

// cleanupSequence задаёт порядок очистки: медиана, склейка, срез тонких
// перемычек, медиана, крупная склейка эллипсом, снова срез.
// Порядок и соотношение ядер (малое, среднее, малое, большое, малое) менять нельзя.
func cleanupSequence(p entity.Params, k cleanupKernels) []cleanupStep {
	median := func(src gocv.Mat, dst *gocv.Mat) { gocv.MedianBlur(src, dst, p.MedianKernel) }
	morph := func(op gocv.MorphType, kernel gocv.Mat) func(gocv.Mat, *gocv.Mat) {
		return func(src gocv.Mat, dst *gocv.Mat) { gocv.MorphologyEx(src, dst, op, kernel) }
	}

	return []cleanupStep{
		{"median", median},
		{"close_small", morph(gocv.MorphClose, k.closeSmall)},
		{"open", morph(gocv.MorphOpen, k.open)},
		{"median", median},
		{"close_large", morph(gocv.MorphClose, k.closeLarge)},
		{"open", morph(gocv.MorphOpen, k.open)},
	}
}

// CleanMask прогоняет сырую маску XOR через шесть шагов морфологии.
// Вход не изменяется.
func CleanMask(raw gocv.Mat, p entity.Params, log logrus.FieldLogger) gocv.Mat {
	kernels := newCleanupKernels(p)
	defer kernels.Close()

	current := raw.Clone()
	for i, step := range cleanupSequence(p, kernels) {
		next := gocv.NewMat()
		step.apply(current, &next)
		current.Close()
		current = next

		if log != nil {
			log.WithFields(logrus.Fields{
				"step":      i + 1,
				"operation": step.name,
				"on_pixels": gocv.CountNonZero(current),
			}).Debug("mask cleanup step")
		}
	}
	return current
}
