package vision

import (
	"errors"

	"github.com/sirupsen/logrus"

	"defect-inspector/internal/domain/port"
)

// ErrNotEnabled возвращается, если сборка без тега gocv.
var ErrNotEnabled = errors.New("gocv build tag is not enabled")

// GoCVDetector ищет дефекты сравнением эталона и выровненного снимка.
// Без тега сборки gocv DetectDefects возвращает ErrNotEnabled.
type GoCVDetector struct {
	Gate *QualityGate // nil отключает проверку качества
	log  logrus.FieldLogger
}

// NewGoCVDetector создаёт детектор.
func NewGoCVDetector(log logrus.FieldLogger, gate *QualityGate) *GoCVDetector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &GoCVDetector{Gate: gate, log: log.WithField("component", "vision")}
}

var _ port.DefectDetector = (*GoCVDetector)(nil)
