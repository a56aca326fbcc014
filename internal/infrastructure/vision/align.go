//go:build gocv
// +build gocv

package vision

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"gocv.io/x/gocv"

	"defect-inspector/internal/domain/entity"
)

// Параметры ORB, кроме бюджета точек, совпадают со значениями OpenCV по умолчанию.
const (
	orbScaleFactor   = 1.2
	orbLevels        = 8
	orbEdgeThreshold = 31
	orbWTAK          = 2
	orbPatchSize     = 31
	orbFastThreshold = 20

	ransacMaxIters   = 2000
	ransacConfidence = 0.995
	minInliers       = 4
)

// Alignment — результат выравнивания. Mat-ы освобождает Close.
type Alignment struct {
	Aligned    gocv.Mat // test в системе координат template, размер template
	Valid      gocv.Mat // 255 там, куда попали пиксели test
	Homography entity.Homography
	Matches    int
	Inliers    int
}

// Close освобождает Mat-ы выравнивания.
func (a *Alignment) Close() {
	a.Aligned.Close()
	a.Valid.Close()
}

// Align находит ключевые точки ORB в обоих снимках, сопоставляет их с
// перекрёстной проверкой, оценивает гомографию RANSAC и переносит test
// в координаты template. Пиксели вне test заполняются нулём.
func Align(template, test gocv.Mat, p entity.Params) (*Alignment, error) {
	templateGray := toGray(template)
	defer templateGray.Close()
	testGray := toGray(test)
	defer testGray.Close()

	orb := gocv.NewORBWithParams(p.FeatureCount, orbScaleFactor, orbLevels, orbEdgeThreshold, 0,
		orbWTAK, gocv.ORBScoreTypeHarris, orbPatchSize, orbFastThreshold)
	defer orb.Close()

	noMask := gocv.NewMat()
	defer noMask.Close()

	templateKP, templateDesc := orb.DetectAndCompute(templateGray, noMask)
	defer templateDesc.Close()
	testKP, testDesc := orb.DetectAndCompute(testGray, noMask)
	defer testDesc.Close()

	matches := matchFeatures(templateDesc, testDesc, p.MaxMatchDistance)
	if len(matches) < p.MatchMinCount {
		return nil, fmt.Errorf("%w: %d found, %d required", entity.ErrInsufficientFeatureMatches, len(matches), p.MatchMinCount)
	}

	src := make([]gocv.Point2f, len(matches))
	dst := make([]gocv.Point2f, len(matches))
	for i, m := range matches {
		src[i] = gocv.Point2f{X: float32(testKP[m.TrainIdx].X), Y: float32(testKP[m.TrainIdx].Y)}
		dst[i] = gocv.Point2f{X: float32(templateKP[m.QueryIdx].X), Y: float32(templateKP[m.QueryIdx].Y)}
	}

	homography, inliers, err := estimateHomography(src, dst, p)
	if err != nil {
		return nil, err
	}
	h := homographyToMat(homography)
	defer h.Close()

	size := image.Pt(template.Cols(), template.Rows())
	aligned := gocv.NewMat()
	gocv.WarpPerspectiveWithParams(test, &aligned, h, size,
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})

	coverage := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), test.Rows(), test.Cols(), gocv.MatTypeCV8UC1)
	defer coverage.Close()
	valid := gocv.NewMat()
	gocv.WarpPerspectiveWithParams(coverage, &valid, h, size,
		gocv.InterpolationNearestNeighbor, gocv.BorderConstant, color.RGBA{})

	return &Alignment{
		Aligned:    aligned,
		Valid:      valid,
		Homography: homography,
		Matches:    len(matches),
		Inliers:    inliers,
	}, nil
}

// matchFeatures сопоставляет дескрипторы полным перебором по расстоянию
// Хэмминга. Пара принимается, только если она взаимно лучшая.
// Результат отсортирован по возрастанию расстояния.
func matchFeatures(templateDesc, testDesc gocv.Mat, maxDistance float64) []gocv.DMatch {
	if templateDesc.Empty() || testDesc.Empty() {
		return nil
	}

	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, true)
	defer matcher.Close()

	// При crossCheck knnMatch с k=1 оставляет пустой список для невзаимных пар.
	candidates := matcher.KnnMatch(templateDesc, testDesc, 1)
	matches := make([]gocv.DMatch, 0, len(candidates))
	for _, c := range candidates {
		if len(c) == 0 {
			continue
		}
		if maxDistance > 0 && c[0].Distance > maxDistance {
			continue
		}
		matches = append(matches, c[0])
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return matches
}

// estimateHomography оценивает методом RANSAC гомографию, переводящую точки
// src в точки dst, и возвращает её вместе с числом инлаеров.
func estimateHomography(src, dst []gocv.Point2f, p entity.Params) (entity.Homography, int, error) {
	if len(src) != len(dst) {
		return entity.Homography{}, 0, fmt.Errorf("%w: %d source and %d target points",
			entity.ErrHomographyEstimationFailed, len(src), len(dst))
	}
	if len(src) < minInliers {
		return entity.Homography{}, 0, fmt.Errorf("%w: %d correspondences", entity.ErrHomographyEstimationFailed, len(src))
	}

	// Nx2 CV64F.
	srcPoints := gocv.NewMatWithSize(len(src), 2, gocv.MatTypeCV64F)
	defer srcPoints.Close()
	dstPoints := gocv.NewMatWithSize(len(dst), 2, gocv.MatTypeCV64F)
	defer dstPoints.Close()
	for i := range src {
		srcPoints.SetDoubleAt(i, 0, float64(src[i].X))
		srcPoints.SetDoubleAt(i, 1, float64(src[i].Y))
		dstPoints.SetDoubleAt(i, 0, float64(dst[i].X))
		dstPoints.SetDoubleAt(i, 1, float64(dst[i].Y))
	}

	inlierMask := gocv.NewMat()
	defer inlierMask.Close()
	h := gocv.FindHomography(srcPoints, &dstPoints, gocv.HomographyMethodRANSAC,
		p.RansacReprojThreshold, &inlierMask, ransacMaxIters, ransacConfidence)
	defer h.Close()
	if h.Empty() {
		return entity.Homography{}, 0, fmt.Errorf("%w: no solution for %d correspondences",
			entity.ErrHomographyEstimationFailed, len(src))
	}

	homography := homographyFromMat(h)
	inliers := 0
	if !inlierMask.Empty() {
		inliers = gocv.CountNonZero(inlierMask)
	}
	if inliers < minInliers {
		return entity.Homography{}, inliers, fmt.Errorf("%w: %d inliers", entity.ErrHomographyEstimationFailed, inliers)
	}
	if homography.Degenerate() {
		return entity.Homography{}, inliers, fmt.Errorf("%w: degenerate transform (det=%g)",
			entity.ErrHomographyEstimationFailed, homography.Det())
	}
	return homography, inliers, nil
}

func homographyToMat(h entity.Homography) gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, h[r*3+c])
		}
	}
	return m
}

func homographyFromMat(h gocv.Mat) entity.Homography {
	var out entity.Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = h.GetDoubleAt(r, c)
		}
	}
	return out
}
