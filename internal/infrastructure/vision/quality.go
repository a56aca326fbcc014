package vision

// QualityGate отбраковывает снимки, на которых сравнение бессмысленно.
type QualityGate struct {
	MinImageSide          int
	MinSharpnessEdgeRatio float64
	MaxOverexposedRatio   float64
	MaxUnderexposedRatio  float64
	MaxGlareRatio         float64
}

// DefaultQualityGate возвращает пороги для фото деталей с телефона.
func DefaultQualityGate() *QualityGate {
	return &QualityGate{
		MinImageSide:          400,
		MinSharpnessEdgeRatio: 0.008,
		MaxOverexposedRatio:   0.35,
		MaxUnderexposedRatio:  0.45,
		MaxGlareRatio:         0.08,
	}
}
