//go:build gocv
// +build gocv

package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"defect-inspector/internal/domain/entity"
)

// toMat копирует entity.Image в новый gocv.Mat.
func toMat(img *entity.Image) (gocv.Mat, error) {
	if err := img.Validate(); err != nil {
		return gocv.NewMat(), err
	}
	mt := gocv.MatTypeCV8UC3
	if img.Channels == 1 {
		mt = gocv.MatTypeCV8UC1
	}

	// NewMatFromBytes ссылается на память слайса, поэтому сразу клонируем.
	shared, err := gocv.NewMatFromBytes(img.Height, img.Width, mt, img.Pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %v", entity.ErrInvalidImage, err)
	}
	defer shared.Close()
	return shared.Clone(), nil
}

// fromMat копирует 8-битный Mat с 1 или 3 каналами в entity.Image.
func fromMat(m gocv.Mat) (*entity.Image, error) {
	if m.Empty() {
		return nil, fmt.Errorf("%w: empty mat", entity.ErrInvalidImage)
	}
	if t := m.Type(); t != gocv.MatTypeCV8UC1 && t != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("%w: unsupported mat type %v", entity.ErrInvalidImage, t)
	}
	return &entity.Image{
		Width:    m.Cols(),
		Height:   m.Rows(),
		Channels: m.Channels(),
		Pix:      m.ToBytes(),
	}, nil
}

// toGray возвращает одноканальную копию.
func toGray(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return src.Clone()
	}
	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return gray
}

// toBGR возвращает трёхканальную копию.
func toBGR(src gocv.Mat) gocv.Mat {
	if src.Channels() == 3 {
		return src.Clone()
	}
	bgr := gocv.NewMat()
	gocv.CvtColor(src, &bgr, gocv.ColorGrayToBGR)
	return bgr
}

func sameSize(a, b gocv.Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols()
}
