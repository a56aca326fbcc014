package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/domain/port"
)

func TestMemoryUserRepository_GetCreatesUser(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	user, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)

	// Изменение копии не должно влиять на хранилище без Save.
	user.SetState(entity.StateAwaitingTest)
	again, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, again.State)

	require.NoError(t, repo.Save(ctx, user))
	again, err = repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingTest, again.State)
}

func TestMemoryUserRepository_CompareAndSetStateIsExclusive(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	user, _ := repo.Get(ctx, 7, 70)
	user.SetState(entity.StateAwaitingTest)
	require.NoError(t, repo.Save(ctx, user))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repo.CompareAndSetState(ctx, 7, 70, entity.StateAwaitingTest, entity.StateProcessing)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, winners)
}

func TestMemoryTemplateStore(t *testing.T) {
	store := NewMemoryTemplateStore()
	ctx := context.Background()

	_, err := store.Get(ctx, 1)
	require.ErrorIs(t, err, port.ErrTemplateNotFound)

	require.NoError(t, store.Put(ctx, 1, []byte("tpl")))
	photo, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("tpl"), photo)

	require.NoError(t, store.Delete(ctx, 1))
	_, err = store.Get(ctx, 1)
	require.ErrorIs(t, err, port.ErrTemplateNotFound)
}

func TestMemoryJobStore(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, port.ErrJobNotFound)

	job := entity.NewJob("abc", time.Now())
	require.NoError(t, store.Save(ctx, job))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, entity.JobPending, got.Status)
}

func TestRedisKeyHelpers(t *testing.T) {
	require.Equal(t, "template:42", templateKey(42))
	require.Equal(t, 3600, ttlSeconds(time.Hour))
	require.Equal(t, 1, ttlSeconds(0))
}
