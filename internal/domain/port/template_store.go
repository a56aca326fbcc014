package port

import (
	"context"
	"errors"
)

// ErrTemplateNotFound возвращается, если эталон для пользователя не сохранён.
var ErrTemplateNotFound = errors.New("template photo is not found")

// TemplateStore хранит эталонные снимки пользователей между сообщениями.
type TemplateStore interface {
	Put(ctx context.Context, userID int64, photo []byte) error
	Get(ctx context.Context, userID int64) ([]byte, error)
	Delete(ctx context.Context, userID int64) error
}
