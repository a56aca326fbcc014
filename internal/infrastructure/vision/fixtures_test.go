//go:build gocv
// +build gocv

package vision

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"defect-inspector/internal/domain/entity"
)

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.RGBA{A: 255}
)

// sceneWithSquares рисует чёрные квадраты на белом фоне.
func sceneWithSquares(width, height int, squares []image.Rectangle) gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), height, width, gocv.MatTypeCV8UC3)
	for _, r := range squares {
		gocv.Rectangle(&m, r, black, -1)
	}
	return m
}

// texturedScene рисует много прямоугольников разной яркости, чтобы
// у ORB было достаточно уникальных точек.
func texturedScene(width, height int, seed int64) gocv.Mat {
	rng := rand.New(rand.NewSource(seed))
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), height, width, gocv.MatTypeCV8UC3)
	for i := 0; i < 80; i++ {
		w := 10 + rng.Intn(50)
		h := 10 + rng.Intn(50)
		x := rng.Intn(width - w)
		y := rng.Intn(height - h)
		v := uint8(rng.Intn(200))
		c := color.RGBA{R: v, G: uint8(rng.Intn(200)), B: uint8(255 - int(v)), A: 255}
		gocv.Rectangle(&m, image.Rect(x, y, x+w, y+h), c, -1)
	}
	return m
}

// randomSquares раскладывает n непересекающихся квадратов разного размера,
// не задевая keepOut, с отступом margin от краёв.
func randomSquares(rng *rand.Rand, n, width, height, margin int, keepOut image.Rectangle) []image.Rectangle {
	squares := make([]image.Rectangle, 0, n)
	for len(squares) < n {
		side := 30 + rng.Intn(40)
		x := margin + rng.Intn(width-2*margin-side)
		y := margin + rng.Intn(height-2*margin-side)
		candidate := image.Rect(x, y, x+side, y+side)

		padded := candidate.Inset(-20)
		if padded.Overlaps(keepOut) {
			continue
		}
		free := true
		for _, s := range squares {
			if padded.Overlaps(s) {
				free = false
				break
			}
		}
		if free {
			squares = append(squares, candidate)
		}
	}
	return squares
}

// rotate поворачивает снимок вокруг центра, заполняя углы белым.
func rotate(src gocv.Mat, degrees float64) gocv.Mat {
	m := gocv.GetRotationMatrix2D(image.Pt(src.Cols()/2, src.Rows()/2), degrees, 1.0)
	defer m.Close()
	dst := gocv.NewMat()
	gocv.WarpAffineWithParams(src, &dst, m, image.Pt(src.Cols(), src.Rows()),
		gocv.InterpolationLinear, gocv.BorderConstant, white)
	return dst
}

func noiseImage(width, height int) gocv.Mat {
	m := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	gocv.RandU(&m, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(255, 255, 255, 0))
	return m
}

// randomBinaryMask возвращает маску {0,255} примерно с долей density ненулевых.
func randomBinaryMask(width, height int, density float64) gocv.Mat {
	noise := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC1)
	defer noise.Close()
	gocv.RandU(&noise, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(256, 0, 0, 0))

	mask := gocv.NewMat()
	gocv.Threshold(noise, &mask, float32(255*(1-density)), 255, gocv.ThresholdBinary)
	return mask
}

func blankMask(width, height int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), height, width, gocv.MatTypeCV8UC1)
}

func fillRect(m *gocv.Mat, r image.Rectangle) {
	gocv.Rectangle(m, r, white, -1)
}

func matToImage(t *testing.T, m gocv.Mat) *entity.Image {
	t.Helper()
	img, err := fromMat(m)
	require.NoError(t, err)
	return img
}

// differingRatio возвращает долю пикселей, отличающихся больше чем на tolerance.
func differingRatio(a, b gocv.Mat, tolerance float32) float64 {
	ga := toGray(a)
	defer ga.Close()
	gb := toGray(b)
	defer gb.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(ga, gb, &diff)

	over := gocv.NewMat()
	defer over.Close()
	gocv.Threshold(diff, &over, tolerance, 255, gocv.ThresholdBinary)
	return ratioOfMask(over)
}
