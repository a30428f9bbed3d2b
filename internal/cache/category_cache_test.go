package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-service/internal/domain"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Bool(1), args.Error(2)
}

func (m *mockStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return m.Called(ctx, key, data, ttl).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func TestCategoryCache_SetThenGet(t *testing.T) {
	store := &mockStore{}
	c := NewCategoryCache(store, time.Minute, nil)
	category := domain.Category{
		ID:              "tech",
		Name:            "Technical Support",
		DefaultPriority: domain.PriorityMedium,
		ResponseWindow:  24 * time.Hour,
		DepartmentID:    "it",
		Active:          true,
	}

	var written []byte
	store.On("Set", mock.Anything, "issue-service:category:tech", mock.Anything, time.Minute).
		Run(func(args mock.Arguments) { written = args.Get(2).([]byte) }).
		Return(nil)
	c.Set(context.Background(), category)
	require.NotEmpty(t, written)

	store.On("Get", mock.Anything, "issue-service:category:tech").Return(written, true, nil)
	got, ok := c.Get(context.Background(), "tech")

	require.True(t, ok)
	assert.Equal(t, category, got)
}

func TestCategoryCache_FailuresAreMisses(t *testing.T) {
	store := &mockStore{}
	c := NewCategoryCache(store, time.Minute, nil)

	store.On("Get", mock.Anything, "issue-service:category:down").Return(nil, false, errors.New("dial tcp: refused"))
	store.On("Get", mock.Anything, "issue-service:category:junk").Return([]byte("{not json"), true, nil)
	store.On("Delete", mock.Anything, "issue-service:category:down").Return(errors.New("dial tcp: refused"))

	_, ok := c.Get(context.Background(), "down")
	assert.False(t, ok)
	_, ok = c.Get(context.Background(), "junk")
	assert.False(t, ok)
	assert.NotPanics(t, func() { c.Invalidate(context.Background(), "down") })
}

func TestCategoryCache_NilStore(t *testing.T) {
	c := NewCategoryCache(nil, time.Minute, nil)
	c.Set(context.Background(), domain.Category{ID: "x"})
	_, ok := c.Get(context.Background(), "x")
	assert.False(t, ok)
}
