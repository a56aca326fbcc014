//go:build gocv
// +build gocv

package vision

import (
	"image"
	"image/color"
	"strconv"

	"gocv.io/x/gocv"

	"defect-inspector/internal/domain/entity"
)

var (
	regionColor = color.RGBA{G: 255, A: 255}
	labelColor  = color.RGBA{R: 255, A: 255}
)

// ExtractRegions ищет внешние контуры очищенной маски и оставляет те,
// у которых ширина и высота рамки не меньше minSize.
// Метки 1..N идут в порядке обхода findContours (RETR_EXTERNAL),
// а не по положению или площади.
func ExtractRegions(mask gocv.Mat, minSize int) []entity.DefectRegion {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	regions := make([]entity.DefectRegion, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		if rect.Dx() < minSize || rect.Dy() < minSize {
			continue
		}
		regions = append(regions, entity.DefectRegion{
			Label:  len(regions) + 1,
			X:      rect.Min.X,
			Y:      rect.Min.Y,
			Width:  rect.Dx(),
			Height: rect.Dy(),
		})
	}
	return regions
}

// Annotate рисует рамку и номер каждой области на BGR-копии снимка.
func Annotate(img gocv.Mat, regions []entity.DefectRegion) gocv.Mat {
	out := toBGR(img)
	for _, r := range regions {
		gocv.Rectangle(&out, r.Rect(), regionColor, 2)

		org := image.Pt(r.X, r.Y-6)
		if org.Y < 14 {
			org.Y = r.Y + r.Height + 16
		}
		gocv.PutText(&out, strconv.Itoa(r.Label), org, gocv.FontHersheySimplex, 0.6, labelColor, 2)
	}
	return out
}
