package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/garyburd/redigo/redis"

	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/domain/port"
)

const (
	templateKeyPrefix = "template:"
	jobKeyPrefix      = "inspection:"
)

// NewRedisPool создаёт пул соединений к Redis.
func NewRedisPool(addr string, maxConnections int) *redis.Pool {
	return redis.NewPool(func() (redis.Conn, error) {
		return redis.Dial("tcp", addr)
	}, maxConnections)
}

// RedisTemplateStore хранит эталоны в Redis с ограниченным временем жизни.
type RedisTemplateStore struct {
	pool *redis.Pool
	ttl  time.Duration
}

func NewRedisTemplateStore(pool *redis.Pool, ttl time.Duration) *RedisTemplateStore {
	return &RedisTemplateStore{pool: pool, ttl: ttl}
}

func (s *RedisTemplateStore) Put(ctx context.Context, userID int64, photo []byte) error {
	conn := s.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("SETEX", templateKey(userID), ttlSeconds(s.ttl), photo); err != nil {
		return fmt.Errorf("store template: %w", err)
	}
	return nil
}

func (s *RedisTemplateStore) Get(ctx context.Context, userID int64) ([]byte, error) {
	conn := s.pool.Get()
	defer conn.Close()

	photo, err := redis.Bytes(conn.Do("GET", templateKey(userID)))
	if err == redis.ErrNil {
		return nil, port.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	return photo, nil
}

func (s *RedisTemplateStore) Delete(ctx context.Context, userID int64) error {
	conn := s.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("DEL", templateKey(userID)); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// RedisJobStore хранит задания как JSON; результат живёт ttl после записи.
type RedisJobStore struct {
	pool *redis.Pool
	ttl  time.Duration
}

func NewRedisJobStore(pool *redis.Pool, ttl time.Duration) *RedisJobStore {
	return &RedisJobStore{pool: pool, ttl: ttl}
}

func (s *RedisJobStore) Save(ctx context.Context, job *entity.Job) error {
	serialized, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	conn := s.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("SETEX", jobKeyPrefix+job.ID, ttlSeconds(s.ttl), serialized); err != nil {
		return fmt.Errorf("store job: %w", err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*entity.Job, error) {
	conn := s.pool.Get()
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", jobKeyPrefix+id))
	if err == redis.ErrNil {
		return nil, port.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}

	var job entity.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

func templateKey(userID int64) string {
	return templateKeyPrefix + strconv.FormatInt(userID, 10)
}

func ttlSeconds(ttl time.Duration) int {
	if s := int(ttl / time.Second); s > 0 {
		return s
	}
	return 1
}

var (
	_ port.TemplateStore = (*RedisTemplateStore)(nil)
	_ port.JobStore      = (*RedisJobStore)(nil)
)
