package port

import "defect-inspector/internal/domain/entity"

// ImageCodec переводит закодированные байты в entity.Image и обратно.
type ImageCodec interface {
	Decode(data []byte) (*entity.Image, error)
	Encode(img *entity.Image) ([]byte, error)
}
