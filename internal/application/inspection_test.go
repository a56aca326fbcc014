package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/domain/port"
)

func TestInspectionService_AcceptTemplatePhoto(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.AcceptTemplatePhoto(ctx, 1, 10, []byte("tpl"))
	require.ErrorIs(t, err, ErrUnexpectedPhoto)

	_, err = f.users.BeginCheck(ctx, 1, 10)
	require.NoError(t, err)

	user, err := f.svc.AcceptTemplatePhoto(ctx, 1, 10, []byte("tpl"))
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingTest, user.State)

	stored, err := f.templates.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("tpl"), stored)
}

func TestInspectionService_AcceptTemplatePhotoRejectsEmpty(t *testing.T) {
	f := newFixture()
	_, err := f.svc.AcceptTemplatePhoto(context.Background(), 1, 10, nil)
	require.ErrorIs(t, err, entity.ErrInvalidImage)
}

func beginWithTemplate(t *testing.T, f *fixture, userID, chatID int64) {
	t.Helper()
	ctx := context.Background()
	_, err := f.users.BeginCheck(ctx, userID, chatID)
	require.NoError(t, err)
	_, err = f.svc.AcceptTemplatePhoto(ctx, userID, chatID, []byte("tpl"))
	require.NoError(t, err)
}

func TestInspectionService_ProcessTestPhoto(t *testing.T) {
	f := newFixture()
	f.detector.regions = []entity.DefectRegion{{Label: 1, X: 1, Y: 1, Width: 2, Height: 2}}
	ctx := context.Background()
	beginWithTemplate(t, f, 1, 10)

	out, err := f.svc.ProcessTestPhoto(ctx, 1, 10, []byte("test"))
	require.NoError(t, err)
	require.Equal(t, 1, out.Report.DefectCount)
	require.Equal(t, []byte("jpeg"), out.Annotated)
	require.NotNil(t, out.Description)
	require.Contains(t, out.Description.Text, "Найдено отличий: 1")

	user, err := f.users.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)

	_, err = f.templates.Get(ctx, 1)
	require.ErrorIs(t, err, port.ErrTemplateNotFound)
}

func TestInspectionService_ProcessTestPhotoFailureResetsState(t *testing.T) {
	f := newFixture()
	f.detector.err = entity.ErrInsufficientFeatureMatches
	ctx := context.Background()
	beginWithTemplate(t, f, 1, 10)

	_, err := f.svc.ProcessTestPhoto(ctx, 1, 10, []byte("test"))
	require.ErrorIs(t, err, entity.ErrInsufficientFeatureMatches)

	user, err := f.users.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}

func TestInspectionService_ProcessTestPhotoBadImageResetsState(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	beginWithTemplate(t, f, 1, 10)

	_, err := f.svc.ProcessTestPhoto(ctx, 1, 10, []byte("bad"))
	require.ErrorIs(t, err, entity.ErrInvalidImage)
	require.Zero(t, f.detector.Calls())

	user, err := f.users.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}

func TestInspectionService_ProcessTestPhotoWrongState(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ProcessTestPhoto(context.Background(), 1, 10, []byte("test"))
	require.ErrorIs(t, err, ErrUnexpectedPhoto)
	require.Zero(t, f.detector.Calls())
}

func TestInspectionService_RejectsSecondRunWhileProcessing(t *testing.T) {
	f := newFixture()
	f.detector.gate = make(chan struct{})
	ctx := context.Background()
	beginWithTemplate(t, f, 1, 10)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = f.svc.ProcessTestPhoto(ctx, 1, 10, []byte("test"))
	}()

	require.Eventually(t, func() bool { return f.detector.Calls() == 1 }, time.Second, 5*time.Millisecond)

	_, err := f.svc.ProcessTestPhoto(ctx, 1, 10, []byte("test"))
	require.ErrorIs(t, err, ErrInspectionInProgress)
	_, err = f.svc.AcceptTemplatePhoto(ctx, 1, 10, []byte("tpl"))
	require.ErrorIs(t, err, ErrInspectionInProgress)
	_, err = f.svc.Cancel(ctx, 1, 10)
	require.ErrorIs(t, err, ErrInspectionInProgress)

	close(f.detector.gate)
	wg.Wait()
	require.NoError(t, firstErr)
	require.Equal(t, 1, f.detector.Calls())

	user, err := f.users.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}

func TestInspectionService_Cancel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	beginWithTemplate(t, f, 1, 10)

	user, err := f.svc.Cancel(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)

	_, err = f.templates.Get(ctx, 1)
	require.True(t, errors.Is(err, port.ErrTemplateNotFound))
}

func TestInspectionService_InspectIsStateless(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	out, err := f.svc.Inspect(ctx, []byte("a"), []byte("b"), entity.DefaultParams())
	require.NoError(t, err)
	require.Zero(t, out.Report.DefectCount)

	_, err = f.svc.Inspect(ctx, []byte("bad"), []byte("b"), entity.DefaultParams())
	require.ErrorIs(t, err, entity.ErrInvalidImage)
	require.Contains(t, err.Error(), "template")

	user, err := f.users.Get(ctx, 5, 50)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}

func TestInspectionService_LogsFailures(t *testing.T) {
	f := newFixture()
	f.detector.err = entity.ErrHomographyEstimationFailed

	_, err := f.svc.Inspect(context.Background(), []byte("a"), []byte("b"), entity.DefaultParams())
	require.Error(t, err)

	entry := f.hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, "inspection failed", entry.Message)
	require.Equal(t, entity.KindHomographyEstimationFailed, entry.Data["kind"])
}

func TestInspectionService_NewCheckRefusedDuringRun(t *testing.T) {
	f := newFixture()
	f.detector.gate = make(chan struct{})
	ctx := context.Background()
	beginWithTemplate(t, f, 1, 10)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.ProcessTestPhoto(ctx, 1, 10, []byte("test"))
		done <- err
	}()
	require.Eventually(t, func() bool { return f.detector.Calls() == 1 }, time.Second, 5*time.Millisecond)

	// Попытка начать новую проверку поверх идущей не должна менять состояние.
	_, err := f.users.BeginCheck(ctx, 1, 10)
	require.ErrorIs(t, err, ErrInspectionInProgress)
	_, err = f.users.Cancel(ctx, 1, 10)
	require.ErrorIs(t, err, ErrInspectionInProgress)

	user, err := f.users.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateProcessing, user.State)

	_, err = f.svc.AcceptTemplatePhoto(ctx, 1, 10, []byte("tpl2"))
	require.ErrorIs(t, err, ErrInspectionInProgress)
	_, err = f.svc.ProcessTestPhoto(ctx, 1, 10, []byte("test2"))
	require.ErrorIs(t, err, ErrInspectionInProgress)

	close(f.detector.gate)
	require.NoError(t, <-done)
	require.Equal(t, 1, f.detector.Calls())
	require.Equal(t, 1, f.detector.Peak())

	user, err = f.users.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)

	// После доставки результата новая проверка начинается как обычно.
	user, err = f.users.BeginCheck(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingTemplate, user.State)
}
