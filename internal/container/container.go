package container

import (
	"github.com/sirupsen/logrus"

	app "defect-inspector/internal/application"
	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/domain/port"
)

// Deps содержит инфраструктуру для сборки сервисов.
type Deps struct {
	Users     port.UserRepository
	Templates port.TemplateStore
	Jobs      port.JobStore
	Detector  port.DefectDetector
	Describer port.DefectDescriber
	Codec     port.ImageCodec
	Params    entity.Params
	Workers   int
	QueueSize int
	Log       logrus.FieldLogger
}

type Container struct {
	UserService       *app.UserService
	InspectionService *app.InspectionService
	Dispatcher        *app.Dispatcher
	Jobs              port.JobStore
	Log               logrus.FieldLogger
}

func New(deps Deps) *Container {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	userService := app.NewUserService(deps.Users)
	inspectionService := app.NewInspectionService(userService, deps.Detector, deps.Describer,
		deps.Codec, deps.Templates, deps.Params, log)

	var dispatcher *app.Dispatcher
	if deps.Jobs != nil {
		dispatcher = app.NewDispatcher(inspectionService, deps.Jobs, deps.Workers, deps.QueueSize, log)
	}

	return &Container{
		UserService:       userService,
		InspectionService: inspectionService,
		Dispatcher:        dispatcher,
		Jobs:              deps.Jobs,
		Log:               log,
	}
}
