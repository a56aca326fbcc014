package entity

import "image"

// DefectRegion представляет область с обнаруженным дефектом
type DefectRegion struct {
	Label  int `json:"label"`  // порядковый номер в порядке обхода контуров
	X      int `json:"x"`      // координата X левого верхнего угла
	Y      int `json:"y"`      // координата Y левого верхнего угла
	Width  int `json:"width"`  // ширина области в пикселях
	Height int `json:"height"` // высота области в пикселях
}

// Center возвращает координаты центра дефекта
func (d DefectRegion) Center() (x, y int) {
	return d.X + d.Width/2, d.Y + d.Height/2
}

// Area возвращает площадь ограничивающего прямоугольника
func (d DefectRegion) Area() int {
	return d.Width * d.Height
}

// Rect возвращает область как image.Rectangle
func (d DefectRegion) Rect() image.Rectangle {
	return image.Rect(d.X, d.Y, d.X+d.Width, d.Y+d.Height)
}
