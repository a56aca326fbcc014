package storage

import (
	"context"
	"sync"

	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/domain/port"
)

// MemoryUserRepository in-memory хранилище пользователей.
// Наружу отдаются копии, чтобы состояние менялось только через Save.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[int64]entity.User
}

// NewMemoryUserRepository создаёт новое in-memory хранилище
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]entity.User),
	}
}

// Get возвращает пользователя по ID, создаёт нового если не найден
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user := r.loadLocked(userID, chatID)
	return &user, nil
}

// Save сохраняет состояние пользователя
func (r *MemoryUserRepository) Save(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	r.users[user.ID] = *user
	r.mu.Unlock()

	return nil
}

// CompareAndSetState меняет состояние только если текущее равно from
func (r *MemoryUserRepository) CompareAndSetState(ctx context.Context, userID, chatID int64, from, to entity.UserState) (*entity.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user := r.loadLocked(userID, chatID)
	if user.State != from {
		return &user, false, nil
	}
	user.SetState(to)
	r.users[userID] = user
	return &user, true, nil
}

func (r *MemoryUserRepository) loadLocked(userID, chatID int64) entity.User {
	if user, exists := r.users[userID]; exists {
		return user
	}
	user := *entity.NewUser(userID, chatID)
	r.users[userID] = user
	return user
}

// Проверка реализации интерфейса
var _ port.UserRepository = (*MemoryUserRepository)(nil)
