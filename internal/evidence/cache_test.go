package evidence

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSearch struct {
	mock.Mock
}

func (m *mockSearch) ReverseImage(ctx context.Context, imageURL string) (*ReverseImageResult, error) {
	args := m.Called(ctx, imageURL)
	if r := args.Get(0); r != nil {
		return r.(*ReverseImageResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSearch) Web(ctx context.Context, query string, num int) ([]SearchResult, error) {
	args := m.Called(ctx, query, num)
	if r := args.Get(0); r != nil {
		return r.([]SearchResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupCache(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisCache(client, time.Hour)
}

func TestRedisCache_RoundTrip(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()

	var got []SearchResult
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	want := []SearchResult{{Title: "t", Snippet: "s", Link: "l"}}
	require.NoError(t, c.Set(ctx, "k", want))
	assert.True(t, mr.Exists("evidence:k"))
	assert.Equal(t, time.Hour, mr.TTL("evidence:k"))

	ok, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Hour)
	ok, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedSearch_CachesSuccess(t *testing.T) {
	_, c := setupCache(t)
	next := new(mockSearch)
	s := NewCachedSearch(next, c, discardLogger())
	ctx := context.Background()

	res := &ReverseImageResult{InlineImages: 3, ImageResults: []ImageHit{{Title: "A", Link: "https://a"}}}
	next.On("ReverseImage", mock.Anything, "https://img").Return(res, nil).Once()
	next.On("Web", mock.Anything, "q", 5).Return([]SearchResult{{Title: "t"}}, nil).Once()

	for range 2 {
		got, err := s.ReverseImage(ctx, "https://img")
		require.NoError(t, err)
		assert.Equal(t, res, got)

		web, err := s.Web(ctx, "q", 5)
		require.NoError(t, err)
		assert.Equal(t, []SearchResult{{Title: "t"}}, web)
	}
	next.AssertExpectations(t)
}

func TestCachedSearch_QuotaNotCached(t *testing.T) {
	_, c := setupCache(t)
	next := new(mockSearch)
	s := NewCachedSearch(next, c, discardLogger())

	next.On("ReverseImage", mock.Anything, "https://img").Return(nil, ErrQuotaExceeded).Twice()

	for range 2 {
		_, err := s.ReverseImage(context.Background(), "https://img")
		assert.ErrorIs(t, err, ErrQuotaExceeded)
	}
	next.AssertExpectations(t)
}

func TestCachedSearch_CacheDownFallsThrough(t *testing.T) {
	mr, c := setupCache(t)
	mr.Close()

	next := new(mockSearch)
	s := NewCachedSearch(next, c, discardLogger())
	next.On("Web", mock.Anything, "q", 5).Return([]SearchResult{{Title: "t"}}, nil)

	web, err := s.Web(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Len(t, web, 1)
}
