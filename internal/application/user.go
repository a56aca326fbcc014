package app

import (
	"context"
	"errors"

	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/domain/port"
)

type UserService struct {
	repo port.UserRepository
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *UserService) SetState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	user.SetState(state)
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Transition переводит пользователя из from в to. Если текущее состояние
// другое, возвращает пользователя как есть и false.
func (s *UserService) Transition(ctx context.Context, userID, chatID int64, from, to entity.UserState) (*entity.User, bool, error) {
	return s.repo.CompareAndSetState(ctx, userID, chatID, from, to)
}

// BeginCheck начинает новую проверку. Во время идущей проверки
// возвращает ErrInspectionInProgress.
func (s *UserService) BeginCheck(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.moveUnlessBusy(ctx, userID, chatID, entity.StateAwaitingTemplate)
}

// Cancel возвращает пользователя в главное меню. Идущую проверку
// прервать нельзя: возвращается ErrInspectionInProgress.
func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.moveUnlessBusy(ctx, userID, chatID, entity.StateMainMenu)
}

// maxStateRetries ограничивает повторы, если состояние меняется между чтением и записью.
const maxStateRetries = 8

var errStateContention = errors.New("user state keeps changing")

// moveUnlessBusy переводит пользователя в to из любого состояния, кроме processing.
// Переход делается через CompareAndSetState, поэтому проверка и запись атомарны.
func (s *UserService) moveUnlessBusy(ctx context.Context, userID, chatID int64, to entity.UserState) (*entity.User, error) {
	for attempt := 0; attempt < maxStateRetries; attempt++ {
		current, err := s.repo.Get(ctx, userID, chatID)
		if err != nil {
			return nil, err
		}
		if current.Busy() {
			return current, ErrInspectionInProgress
		}

		user, ok, err := s.repo.CompareAndSetState(ctx, userID, chatID, current.State, to)
		if err != nil {
			return nil, err
		}
		if ok {
			return user, nil
		}
	}
	return nil, errStateContention
}
