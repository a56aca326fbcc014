package port

import (
	"context"
	"errors"

	"defect-inspector/internal/domain/entity"
)

// ErrJobNotFound возвращается для неизвестного идентификатора задания.
var ErrJobNotFound = errors.New("job is not found")

// JobStore хранит состояние асинхронных проверок.
type JobStore interface {
	Save(ctx context.Context, job *entity.Job) error
	Get(ctx context.Context, id string) (*entity.Job, error)
}
