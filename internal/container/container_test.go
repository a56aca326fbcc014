package container

import (
	"testing"

	"github.com/stretchr/testify/require"

	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/infrastructure/codec"
	"defect-inspector/internal/infrastructure/describer"
	"defect-inspector/internal/infrastructure/storage"
	"defect-inspector/internal/infrastructure/vision"
)

func TestNew_WithoutJobsHasNoDispatcher(t *testing.T) {
	c := New(Deps{
		Users:     storage.NewMemoryUserRepository(),
		Templates: storage.NewMemoryTemplateStore(),
		Detector:  vision.NewGoCVDetector(nil, nil),
		Describer: describer.NewTextDescriber(),
		Codec:     codec.New(),
		Params:    entity.DefaultParams(),
	})
	require.NotNil(t, c.UserService)
	require.NotNil(t, c.InspectionService)
	require.Nil(t, c.Dispatcher)
	require.NotNil(t, c.Log)
	require.Equal(t, entity.DefaultParams(), c.InspectionService.Params())
}

func TestNew_WithJobsBuildsDispatcher(t *testing.T) {
	c := New(Deps{
		Users:     storage.NewMemoryUserRepository(),
		Templates: storage.NewMemoryTemplateStore(),
		Jobs:      storage.NewMemoryJobStore(),
		Detector:  vision.NewGoCVDetector(nil, nil),
		Codec:     codec.New(),
		Params:    entity.DefaultParams(),
		Workers:   2,
		QueueSize: 4,
	})
	require.NotNil(t, c.Dispatcher)
	c.Dispatcher.Run()
	c.Dispatcher.Stop()
}
