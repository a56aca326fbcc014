package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"defect-inspector/internal/domain/entity"
)

type Config struct {
	TelegramToken string
	HTTPAddr      string

	RedisAddr           string
	RedisMaxConnections int
	ResultTTL           time.Duration

	Workers   int
	QueueSize int

	ParamsFile  string
	Params      entity.Params
	QualityGate bool

	LogLevel   string
	LogFormat  string
	GinRelease bool
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		HTTPAddr:      os.Getenv("HTTP_ADDR"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		ParamsFile:    os.Getenv("PARAMS_FILE"),
		LogLevel:      getString("LOG_LEVEL", "info"),
		LogFormat:     getString("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.RedisMaxConnections, err = getInt("REDIS_MAX_CONNECTIONS", 10); err != nil {
		return nil, err
	}
	if cfg.ResultTTL, err = getDuration("RESULT_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getInt("WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.QueueSize, err = getInt("QUEUE_SIZE", 16); err != nil {
		return nil, err
	}
	if cfg.QualityGate, err = getBool("QUALITY_GATE", false); err != nil {
		return nil, err
	}
	if cfg.GinRelease, err = getBool("GIN_RELEASE", false); err != nil {
		return nil, err
	}

	if cfg.Workers < 1 {
		return nil, fmt.Errorf("WORKERS must be positive, got %d", cfg.Workers)
	}
	if cfg.QueueSize < 1 {
		return nil, fmt.Errorf("QUEUE_SIZE must be positive, got %d", cfg.QueueSize)
	}

	cfg.Params = entity.DefaultParams()
	if cfg.ParamsFile != "" {
		if cfg.Params, err = LoadParams(cfg.ParamsFile); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// LoadParams читает YAML с параметрами конвейера. Отсутствующие поля
// остаются значениями по умолчанию.
func LoadParams(path string) (entity.Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.Params{}, fmt.Errorf("read params file: %w", err)
	}
	return ParseParams(data)
}

// ParseParams разбирает YAML поверх entity.DefaultParams и проверяет результат.
func ParseParams(data []byte) (entity.Params, error) {
	params := entity.DefaultParams()
	if err := yaml.Unmarshal(data, &params); err != nil {
		return entity.Params{}, fmt.Errorf("parse params: %w", err)
	}
	if err := params.Validate(); err != nil {
		return entity.Params{}, err
	}
	return params, nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
