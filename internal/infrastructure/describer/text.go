package describer

import (
	"context"
	"fmt"
	"math"
	"strings"

	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/domain/port"
)

// TextDescriber собирает краткий отчёт для пользователя без внешних сервисов.
type TextDescriber struct {
	MaxListed int // сколько областей перечислять поимённо
}

// NewTextDescriber создаёт описатель с перечислением до десяти областей.
func NewTextDescriber() *TextDescriber {
	return &TextDescriber{MaxListed: 10}
}

var _ port.DefectDescriber = (*TextDescriber)(nil)

// Describe генерирует текстовое описание найденных дефектов.
func (d *TextDescriber) Describe(ctx context.Context, report *entity.DefectReport) (*entity.Description, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("describe: empty report")
	}

	var b strings.Builder
	if report.HasDefects() {
		fmt.Fprintf(&b, "🔍 Найдено отличий: %d\n", report.DefectCount)
		for i, r := range report.Regions {
			if d.MaxListed > 0 && i >= d.MaxListed {
				fmt.Fprintf(&b, "… и ещё %d\n", len(report.Regions)-i)
				break
			}
			cx, cy := r.Center()
			fmt.Fprintf(&b, "#%d: центр (%d, %d), размер %d×%d px\n", r.Label, cx, cy, r.Width, r.Height)
		}
	} else {
		b.WriteString("✅ Дефекты не обнаружены.\n")
	}

	dx, dy := report.Homography.Translation()
	fmt.Fprintf(&b, "📐 Выравнивание: поворот %.1f°, сдвиг (%.0f, %.0f), совпадений %d, из них согласованных %d",
		report.Homography.RotationDegrees(), zero(dx), zero(dy), report.Matches, report.Inliers)

	return &entity.Description{Text: b.String()}, nil
}

// zero убирает "-0" из вывода.
func zero(v float64) float64 {
	if math.Abs(v) < 0.5 {
		return 0
	}
	return v
}
