package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/infrastructure/describer"
	"defect-inspector/internal/infrastructure/storage"
)

// fakeCodec считает любые байты, кроме "bad", картинкой 4x4.
type fakeCodec struct{}

func (fakeCodec) Decode(data []byte) (*entity.Image, error) {
	if len(data) == 0 || string(data) == "bad" {
		return nil, fmt.Errorf("%w: cannot decode", entity.ErrInvalidImage)
	}
	return entity.NewImage(4, 4, 3), nil
}

func (fakeCodec) Encode(img *entity.Image) ([]byte, error) {
	return []byte("jpeg"), nil
}

// fakeDetector возвращает заранее заданный результат и считает вызовы.
type fakeDetector struct {
	mu       sync.Mutex
	calls    int
	inFlight int
	peak     int // наибольшее число одновременных вызовов
	err     error
	regions []entity.DefectRegion
	gate    chan struct{} // если не nil, вызов ждёт закрытия
}

func (d *fakeDetector) DetectDefects(ctx context.Context, template, test *entity.Image, params entity.Params) (*entity.DefectReport, error) {
	d.mu.Lock()
	d.calls++
	d.inFlight++
	if d.inFlight > d.peak {
		d.peak = d.inFlight
	}
	gate := d.gate
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.inFlight--
		d.mu.Unlock()
	}()

	if gate != nil {
		<-gate
	}
	if d.err != nil {
		return nil, d.err
	}
	return &entity.DefectReport{
		Annotated:   test.Clone(),
		DefectCount: len(d.regions),
		Regions:     d.regions,
		Homography:  entity.IdentityHomography(),
	}, nil
}

func (d *fakeDetector) Peak() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.peak
}

func (d *fakeDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type fixture struct {
	users     *UserService
	templates *storage.MemoryTemplateStore
	detector  *fakeDetector
	svc       *InspectionService
	hook      *test.Hook
}

func newFixture() *fixture {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	users := NewUserService(storage.NewMemoryUserRepository())
	templates := storage.NewMemoryTemplateStore()
	detector := &fakeDetector{}
	svc := NewInspectionService(users, detector, describer.NewTextDescriber(), fakeCodec{},
		templates, entity.DefaultParams(), logger)
	return &fixture{users: users, templates: templates, detector: detector, svc: svc, hook: hook}
}
