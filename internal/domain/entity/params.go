package entity

// AdaptiveMethod — статистика окрестности для адаптивного порога.
type AdaptiveMethod string

const (
	AdaptiveGaussian AdaptiveMethod = "gaussian" // взвешенное по Гауссу среднее
	AdaptiveMean     AdaptiveMethod = "mean"     // простое среднее
)

// Params — настройки конвейера поиска дефектов.
type Params struct {
	FeatureCount          int            `json:"feature_count" yaml:"feature_count"`
	MatchMinCount         int            `json:"match_min_count" yaml:"match_min_count"`
	// MaxMatchDistance отсекает взаимно лучшие пары с расстоянием Хэмминга больше порога.
	// 0 отключает порог и оставляет чистую перекрёстную проверку.
	MaxMatchDistance      float64        `json:"max_match_distance" yaml:"max_match_distance"`
	RansacReprojThreshold float64        `json:"ransac_reproj_threshold" yaml:"ransac_reproj_threshold"`
	AdaptiveMethod        AdaptiveMethod `json:"adaptive_method" yaml:"adaptive_method"`
	AdaptiveBlockSize     int            `json:"adaptive_block_size" yaml:"adaptive_block_size"`
	AdaptiveC             float64        `json:"adaptive_c" yaml:"adaptive_c"`
	MedianKernel          int            `json:"median_kernel" yaml:"median_kernel"`
	CloseKernelSmall      int            `json:"close_kernel_small" yaml:"close_kernel_small"`
	CloseKernelLarge      int            `json:"close_kernel_large" yaml:"close_kernel_large"`
	OpenKernel            int            `json:"open_kernel" yaml:"open_kernel"`
	MinDefectSize         int            `json:"min_defect_size" yaml:"min_defect_size"`
	SuppressWarpBorder    bool           `json:"suppress_warp_border" yaml:"suppress_warp_border"`
}

// DefaultParams возвращает настройки по умолчанию.
func DefaultParams() Params {
	return Params{
		FeatureCount:          1000,
		MatchMinCount:         10,
		MaxMatchDistance:      64,
		RansacReprojThreshold: 5.0,
		AdaptiveMethod:        AdaptiveGaussian,
		AdaptiveBlockSize:     11,
		AdaptiveC:             2,
		MedianKernel:          5,
		CloseKernelSmall:      15,
		CloseKernelLarge:      29,
		OpenKernel:            3,
		MinDefectSize:         15,
		SuppressWarpBorder:    true,
	}
}

// Validate проверяет диапазоны и нечётность ядер.
// Размеры ядер должны сохранять порядок open <= close_small <= close_large.
func (p Params) Validate() error {
	if p.FeatureCount < 4 {
		return &ValidationError{Field: "feature_count", Value: p.FeatureCount, Reason: "must be at least 4"}
	}
	if p.MatchMinCount < 4 {
		return &ValidationError{Field: "match_min_count", Value: p.MatchMinCount, Reason: "must be at least 4"}
	}
	if p.MatchMinCount > p.FeatureCount {
		return &ValidationError{Field: "match_min_count", Value: p.MatchMinCount, Reason: "must not exceed feature_count"}
	}
	if p.MaxMatchDistance < 0 {
		return &ValidationError{Field: "max_match_distance", Value: p.MaxMatchDistance, Reason: "must not be negative"}
	}
	if p.RansacReprojThreshold <= 0 {
		return &ValidationError{Field: "ransac_reproj_threshold", Value: p.RansacReprojThreshold, Reason: "must be positive"}
	}
	if p.AdaptiveMethod != AdaptiveGaussian && p.AdaptiveMethod != AdaptiveMean {
		return &ValidationError{Field: "adaptive_method", Value: p.AdaptiveMethod, Reason: "must be gaussian or mean"}
	}
	if err := validateOddKernel("adaptive_block_size", p.AdaptiveBlockSize, 3); err != nil {
		return err
	}
	if err := validateOddKernel("median_kernel", p.MedianKernel, 1); err != nil {
		return err
	}
	if err := validateOddKernel("open_kernel", p.OpenKernel, 1); err != nil {
		return err
	}
	if err := validateOddKernel("close_kernel_small", p.CloseKernelSmall, 1); err != nil {
		return err
	}
	if err := validateOddKernel("close_kernel_large", p.CloseKernelLarge, 1); err != nil {
		return err
	}
	if p.OpenKernel > p.CloseKernelSmall {
		return &ValidationError{Field: "open_kernel", Value: p.OpenKernel, Reason: "must not exceed close_kernel_small"}
	}
	if p.CloseKernelSmall > p.CloseKernelLarge {
		return &ValidationError{Field: "close_kernel_small", Value: p.CloseKernelSmall, Reason: "must not exceed close_kernel_large"}
	}
	if p.MinDefectSize < 1 {
		return &ValidationError{Field: "min_defect_size", Value: p.MinDefectSize, Reason: "must be at least 1"}
	}
	return nil
}

func validateOddKernel(field string, size, min int) error {
	if size < min {
		return &ValidationError{Field: field, Value: size, Reason: "too small"}
	}
	if size%2 == 0 {
		return &ValidationError{Field: field, Value: size, Reason: "must be odd number"}
	}
	return nil
}
