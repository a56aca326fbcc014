package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/domain/port"
)

var (
	// ErrInspectionInProgress — предыдущая проверка пользователя ещё не завершена.
	ErrInspectionInProgress = errors.New("inspection is already in progress")
	// ErrUnexpectedPhoto: фото пришло не в том состоянии диалога.
	ErrUnexpectedPhoto = errors.New("photo is not expected in current state")
)

type InspectionService struct {
	users     *UserService
	detector  port.DefectDetector
	describer port.DefectDescriber
	codec     port.ImageCodec
	templates port.TemplateStore
	params    entity.Params
	log       logrus.FieldLogger
}

// InspectionOutput содержит отчёт, его описание и подписанный снимок в JPEG.
type InspectionOutput struct {
	Report      *entity.DefectReport
	Description *entity.Description
	Annotated   []byte
}

// NewInspectionService создаёт сервис, который управляет проверкой дефектов.
func NewInspectionService(
	users *UserService,
	detector port.DefectDetector,
	describer port.DefectDescriber,
	codec port.ImageCodec,
	templates port.TemplateStore,
	params entity.Params,
	log logrus.FieldLogger,
) *InspectionService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &InspectionService{
		users:     users,
		detector:  detector,
		describer: describer,
		codec:     codec,
		templates: templates,
		params:    params,
		log:       log.WithField("component", "inspection"),
	}
}

// Params возвращает параметры конвейера по умолчанию для этого сервиса.
func (s *InspectionService) Params() entity.Params {
	return s.params
}

// AcceptTemplatePhoto сохраняет эталон и переводит пользователя к ожиданию проверяемого фото.
func (s *InspectionService) AcceptTemplatePhoto(ctx context.Context, userID, chatID int64, photo []byte) (*entity.User, error) {
	if len(photo) == 0 {
		return nil, fmt.Errorf("%w: empty photo", entity.ErrInvalidImage)
	}
	user, ok, err := s.users.Transition(ctx, userID, chatID, entity.StateAwaitingTemplate, entity.StateAwaitingTest)
	if err != nil {
		return nil, err
	}
	if !ok {
		if user.Busy() {
			return user, ErrInspectionInProgress
		}
		return user, ErrUnexpectedPhoto
	}

	if err := s.templates.Put(ctx, userID, photo); err != nil {
		// Без эталона дальше идти некуда: возвращаем шаг назад.
		if _, _, resetErr := s.users.Transition(ctx, userID, chatID, entity.StateAwaitingTest, entity.StateAwaitingTemplate); resetErr != nil {
			s.log.WithError(resetErr).WithField("user_id", userID).Error("failed to reset user state")
		}
		return nil, fmt.Errorf("store template: %w", err)
	}
	return user, nil
}

// ProcessTestPhoto сравнивает сохранённый эталон с присланным фото.
// Пользователь всегда возвращается в главное меню, эталон удаляется.
func (s *InspectionService) ProcessTestPhoto(ctx context.Context, userID, chatID int64, photo []byte) (*InspectionOutput, error) {
	user, ok, err := s.users.Transition(ctx, userID, chatID, entity.StateAwaitingTest, entity.StateProcessing)
	if err != nil {
		return nil, err
	}
	if !ok {
		if user.Busy() {
			return nil, ErrInspectionInProgress
		}
		return nil, ErrUnexpectedPhoto
	}
	defer s.finish(userID, chatID)

	template, err := s.templates.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.Inspect(ctx, template, photo, s.params)
}

// Cancel прерывает диалог. Идущую проверку отменить нельзя.
func (s *InspectionService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	user, err := s.users.Cancel(ctx, userID, chatID)
	if err != nil {
		return user, err
	}
	if err := s.templates.Delete(ctx, userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to delete template")
	}
	return user, nil
}

// Inspect декодирует оба снимка, ищет дефекты и готовит ответ.
// Состояние пользователей не затрагивается.
func (s *InspectionService) Inspect(ctx context.Context, template, test []byte, params entity.Params) (*InspectionOutput, error) {
	if s.detector == nil {
		return nil, errors.New("detector is not configured")
	}

	templateImg, err := s.codec.Decode(template)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	testImg, err := s.codec.Decode(test)
	if err != nil {
		return nil, fmt.Errorf("test: %w", err)
	}

	started := time.Now()
	report, err := s.detector.DetectDefects(ctx, templateImg, testImg, params)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"kind":  entity.ErrorKind(err),
			"error": err,
		}).Info("inspection failed")
		return nil, err
	}

	out := &InspectionOutput{Report: report}
	if s.describer != nil {
		out.Description, err = s.describer.Describe(ctx, report)
		if err != nil {
			return nil, fmt.Errorf("describe: %w", err)
		}
	}
	if report.Annotated != nil {
		out.Annotated, err = s.codec.Encode(report.Annotated)
		if err != nil {
			return nil, fmt.Errorf("encode annotated image: %w", err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"defects": report.DefectCount,
		"matches": report.Matches,
		"inliers": report.Inliers,
		"elapsed": time.Since(started),
	}).Info("inspection finished")
	return out, nil
}

// finish работает на своём контексте: отмена запроса не должна
// оставить пользователя в состоянии processing.
func (s *InspectionService) finish(userID, chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.templates.Delete(ctx, userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to delete template")
	}
	// Из processing состояние меняет только finish.
	if _, _, err := s.users.Transition(ctx, userID, chatID, entity.StateProcessing, entity.StateMainMenu); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("failed to reset user state")
	}
}
