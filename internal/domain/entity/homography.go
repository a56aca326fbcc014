package entity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Пределы определителя, за которыми гомография считается вырожденной.
const (
	minHomographyDet = 1e-6
	maxHomographyDet = 1e6
)

// Homography — проективное преобразование 3x3, хранится построчно.
// Переводит координаты проверяемого снимка в координаты эталона.
type Homography [9]float64

// IdentityHomography возвращает тождественное преобразование.
func IdentityHomography() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

func (h Homography) dense() *mat.Dense {
	data := make([]float64, 9)
	copy(data, h[:])
	return mat.NewDense(3, 3, data)
}

// Det возвращает определитель матрицы.
func (h Homography) Det() float64 {
	return mat.Det(h.dense())
}

// Degenerate сообщает, что матрица не годится для выравнивания:
// содержит NaN/Inf или почти вырождена.
func (h Homography) Degenerate() bool {
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	if math.Abs(h[8]) < 1e-12 {
		return true
	}
	det := math.Abs(h.Det() / (h[8] * h[8] * h[8]))
	return det < minHomographyDet || det > maxHomographyDet
}

// Inverse возвращает обратное преобразование.
func (h Homography) Inverse() (Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.dense()); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrHomographyEstimationFailed, err)
	}
	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = inv.At(r, c)
		}
	}
	return out, nil
}

// Apply переводит точку (x, y) через преобразование.
func (h Homography) Apply(x, y float64) (float64, float64) {
	var p mat.VecDense
	p.MulVec(h.dense(), mat.NewVecDense(3, []float64{x, y, 1}))
	w := p.AtVec(2)
	return p.AtVec(0) / w, p.AtVec(1) / w
}

// RotationDegrees оценивает угол поворота по линейной части.
func (h Homography) RotationDegrees() float64 {
	return math.Atan2(h[3], h[0]) * 180 / math.Pi
}

// Translation возвращает сдвиг, нормированный на h[8].
func (h Homography) Translation() (dx, dy float64) {
	return h[2] / h[8], h[5] / h[8]
}
