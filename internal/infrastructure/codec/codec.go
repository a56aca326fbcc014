package codec

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/domain/port"
)

// Codec декодирует снимки любого зарегистрированного формата и кодирует
// результат в Format (по умолчанию JPEG).
type Codec struct {
	Format  imaging.Format
	Quality int
}

// New создаёт кодек с JPEG на выходе.
func New() *Codec {
	return &Codec{Format: imaging.JPEG, Quality: 90}
}

// Decode превращает байты изображения в entity.Image с учётом EXIF-ориентации.
func (c *Codec) Decode(data []byte) (*entity.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", entity.ErrInvalidImage)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", entity.ErrInvalidImage, err)
	}
	return FromImage(img)
}

// Encode кодирует entity.Image в формат кодека.
func (c *Codec) Encode(img *entity.Image) ([]byte, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, ToImage(img), c.Format, imaging.JPEGQuality(c.Quality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Save пишет файл, формат определяется по расширению.
func Save(path string, img *entity.Image) error {
	if err := img.Validate(); err != nil {
		return err
	}
	if err := imaging.Save(ToImage(img), path, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// FromImage переводит image.Image в BGR (или один канал для *image.Gray).
// Альфа-канал отбрасывается.
func FromImage(src image.Image) (*entity.Image, error) {
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty bounds", entity.ErrInvalidImage)
	}

	if gray, ok := src.(*image.Gray); ok {
		out := entity.NewImage(b.Dx(), b.Dy(), 1)
		for y := 0; y < b.Dy(); y++ {
			row := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
			copy(out.Pix[y*b.Dx():], row)
		}
		return out, nil
	}

	nrgba := imaging.Clone(src)
	out := entity.NewImage(b.Dx(), b.Dy(), 3)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := nrgba.PixOffset(x, y)
			o := out.Offset(x, y)
			out.Pix[o] = nrgba.Pix[i+2]
			out.Pix[o+1] = nrgba.Pix[i+1]
			out.Pix[o+2] = nrgba.Pix[i]
		}
	}
	return out, nil
}

// ToImage переводит entity.Image обратно в image.Image.
func ToImage(img *entity.Image) image.Image {
	rect := image.Rect(0, 0, img.Width, img.Height)
	if img.Channels == 1 {
		gray := image.NewGray(rect)
		copy(gray.Pix, img.Pix)
		return gray
	}

	nrgba := image.NewNRGBA(rect)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			i := nrgba.PixOffset(x, y)
			o := img.Offset(x, y)
			nrgba.Pix[i] = img.Pix[o+2]
			nrgba.Pix[i+1] = img.Pix[o+1]
			nrgba.Pix[i+2] = img.Pix[o]
			nrgba.Pix[i+3] = 0xff
		}
	}
	return nrgba
}

var _ port.ImageCodec = (*Codec)(nil)
