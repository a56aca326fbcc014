package entity

import "fmt"

// Image — плотный массив пикселей.
// Для трёх каналов порядок BGR, пиксели идут построчно без выравнивания.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// NewImage создаёт чёрное изображение заданного размера.
func NewImage(width, height, channels int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

// Validate проверяет, что изображение можно передать в конвейер.
func (img *Image) Validate() error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("%w: empty image (%dx%d)", ErrInvalidImage, img.Width, img.Height)
	}
	if img.Channels != 1 && img.Channels != 3 {
		return fmt.Errorf("%w: unsupported channel count %d", ErrInvalidImage, img.Channels)
	}
	if want := img.Width * img.Height * img.Channels; len(img.Pix) != want {
		return fmt.Errorf("%w: pixel buffer has %d bytes, want %d", ErrInvalidImage, len(img.Pix), want)
	}
	return nil
}

// SameSize сообщает, совпадают ли ширина и высота.
func (img *Image) SameSize(other *Image) bool {
	return img.Width == other.Width && img.Height == other.Height
}

// Clone возвращает независимую копию.
func (img *Image) Clone() *Image {
	pix := make([]byte, len(img.Pix))
	copy(pix, img.Pix)
	return &Image{Width: img.Width, Height: img.Height, Channels: img.Channels, Pix: pix}
}

// Offset возвращает индекс первого байта пикселя (x, y).
func (img *Image) Offset(x, y int) int {
	return (y*img.Width + x) * img.Channels
}
