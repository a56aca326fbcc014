//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"image"
	"math"
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"defect-inspector/internal/domain/entity"
)

func newTestDetector(gate *QualityGate) *GoCVDetector {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)
	return NewGoCVDetector(log, gate)
}

func TestDetectDefects_InsertedSquareUnderRotation(t *testing.T) {
	const size = 500
	inserted := image.Rect(300, 330, 355, 385)

	rng := rand.New(rand.NewSource(42))
	squares := randomSquares(rng, 5, size, size, 60, inserted)

	templateMat := sceneWithSquares(size, size, squares)
	defer templateMat.Close()

	withDefect := sceneWithSquares(size, size, append(squares, inserted))
	defer withDefect.Close()
	testMat := rotate(withDefect, 5)
	defer testMat.Close()

	report, err := newTestDetector(nil).DetectDefects(context.Background(),
		matToImage(t, templateMat), matToImage(t, testMat), entity.DefaultParams())
	require.NoError(t, err)

	require.Equal(t, 1, report.DefectCount)
	require.Len(t, report.Regions, 1)
	got := report.Regions[0]
	require.Equal(t, 1, got.Label)
	require.InDelta(t, inserted.Min.X, got.X, 10)
	require.InDelta(t, inserted.Min.Y, got.Y, 10)
	require.InDelta(t, inserted.Max.X, got.X+got.Width, 10)
	require.InDelta(t, inserted.Max.Y, got.Y+got.Height, 10)

	require.InDelta(t, 5, math.Abs(report.Homography.RotationDegrees()), 1.0)
	require.Equal(t, size, report.Annotated.Width)
	require.Equal(t, size, report.Annotated.Height)
	require.Equal(t, 3, report.Annotated.Channels)
	require.LessOrEqual(t, report.CleanPixels, report.RawPixels)
}

func TestDetectDefects_IdenticalImagesHaveNoDefects(t *testing.T) {
	scene := texturedScene(400, 300, 5)
	defer scene.Close()
	img := matToImage(t, scene)

	report, err := newTestDetector(nil).DetectDefects(context.Background(), img, img, entity.DefaultParams())
	require.NoError(t, err)
	require.Zero(t, report.DefectCount)
	require.Empty(t, report.Regions)
	require.False(t, report.HasDefects())
}

func TestDetectDefects_InputIsNotModified(t *testing.T) {
	scene := texturedScene(300, 300, 6)
	defer scene.Close()
	template := matToImage(t, scene)
	test := template.Clone()
	before := test.Clone()

	_, err := newTestDetector(nil).DetectDefects(context.Background(), template, test, entity.DefaultParams())
	require.NoError(t, err)
	require.Equal(t, before.Pix, test.Pix)
}

func TestDetectDefects_RejectsBadInput(t *testing.T) {
	d := newTestDetector(nil)
	ctx := context.Background()
	good := entity.NewImage(50, 50, 3)

	_, err := d.DetectDefects(ctx, nil, good, entity.DefaultParams())
	require.True(t, errors.Is(err, entity.ErrInvalidImage))

	_, err = d.DetectDefects(ctx, good, &entity.Image{Width: 50, Height: 50, Channels: 3}, entity.DefaultParams())
	require.True(t, errors.Is(err, entity.ErrInvalidImage))

	p := entity.DefaultParams()
	p.MedianKernel = 4
	_, err = d.DetectDefects(ctx, good, good, p)
	require.True(t, errors.Is(err, entity.ErrInvalidParams))
}

func TestDetectDefects_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	img := entity.NewImage(50, 50, 3)
	_, err := newTestDetector(nil).DetectDefects(ctx, img, img, entity.DefaultParams())
	require.ErrorIs(t, err, context.Canceled)
}

func TestDetectDefects_QualityGateRejectsSmallImages(t *testing.T) {
	scene := texturedScene(200, 200, 7)
	defer scene.Close()
	img := matToImage(t, scene)

	_, err := newTestDetector(DefaultQualityGate()).DetectDefects(context.Background(), img, img, entity.DefaultParams())
	require.True(t, errors.Is(err, entity.ErrInvalidImage))
	require.Contains(t, err.Error(), "too small")
}

func TestConvertRoundTrip(t *testing.T) {
	img := entity.NewImage(7, 5, 3)
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	m, err := toMat(img)
	require.NoError(t, err)
	defer m.Close()

	back, err := fromMat(m)
	require.NoError(t, err)
	require.Equal(t, img, back)
}
