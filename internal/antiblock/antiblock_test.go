package antiblock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/maltedev/retail-price-sweeper/internal/fetch"
	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/maltedev/retail-price-sweeper/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	id     fetch.Identity
	closed bool
}

func (s *fakeSession) Fetch(_ context.Context, url string) (*fetch.Page, error) {
	if s.closed {
		return nil, errors.New("session closed")
	}
	return &fetch.Page{URL: url, HTML: s.id.UserAgent}, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type recorder struct {
	mu       sync.Mutex
	sessions []*fakeSession
	fail     bool
}

func (r *recorder) factory(_ context.Context, id fetch.Identity) (fetch.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("browser did not start")
	}
	s := &fakeSession{id: id}
	r.sessions = append(r.sessions, s)
	return s, nil
}

func identities() []fetch.Identity {
	return []fetch.Identity{{UserAgent: "ua-1"}, {UserAgent: "ua-2"}}
}

func TestRestartAfterConsecutiveFailures(t *testing.T) {
	rec := &recorder{}
	c := New(rec.factory, Options{RestartAfter: 5, Identities: identities()}, nil)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	for i := 0; i < 4; i++ {
		require.NoError(t, c.Settle(ctx, models.StatusNotFound))
	}
	assert.Equal(t, 4, c.Failures())
	assert.Equal(t, 0, c.Restarts())
	assert.Len(t, rec.sessions, 1)

	require.NoError(t, c.Settle(ctx, models.StatusFetchError))
	assert.Equal(t, 0, c.Failures())
	assert.Equal(t, 1, c.Restarts())
	require.Len(t, rec.sessions, 2)
	assert.True(t, rec.sessions[0].closed)
	assert.Equal(t, StateActive, c.State())

	// the sixth product runs on the rotated identity
	page, err := c.Fetch(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "ua-2", page.HTML)
}

func TestSuccessBreaksTheStreak(t *testing.T) {
	rec := &recorder{}
	c := New(rec.factory, Options{RestartAfter: 3, Identities: identities()}, nil)
	ctx := context.Background()

	statuses := []models.Status{
		models.StatusNotFound,
		models.StatusFetchError,
		models.StatusFoundValid,
		models.StatusNotFound,
		models.StatusFoundInvalidMatch,
	}
	for _, s := range statuses {
		require.NoError(t, c.Settle(ctx, s))
	}
	assert.Equal(t, 0, c.Restarts())
	assert.Equal(t, 2, c.Failures())
}

func TestRejectedMatchesTriggerRestart(t *testing.T) {
	rec := &recorder{}
	c := New(rec.factory, Options{RestartAfter: 5, Identities: identities()}, nil)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	for i := 0; i < 4; i++ {
		require.NoError(t, c.Settle(ctx, models.StatusFoundInvalidMatch))
	}
	assert.Equal(t, 0, c.Restarts())

	require.NoError(t, c.Settle(ctx, models.StatusNotFound))
	assert.Equal(t, 1, c.Restarts())
	assert.Equal(t, 0, c.Failures())
	require.Len(t, rec.sessions, 2)
	assert.True(t, rec.sessions[0].closed)
}

func TestFetchOpensSessionLazily(t *testing.T) {
	rec := &recorder{}
	c := New(rec.factory, Options{}, nil)

	_, err := c.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Len(t, rec.sessions, 1)

	require.NoError(t, c.Close())
	assert.True(t, rec.sessions[0].closed)

	_, err = c.Fetch(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFailedRestartIsRetriedOnNextFetch(t *testing.T) {
	rec := &recorder{}
	c := New(rec.factory, Options{RestartAfter: 1}, nil)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	rec.fail = true
	assert.Error(t, c.Settle(ctx, models.StatusNotFound))
	_, err := c.Fetch(ctx, "https://example.com")
	assert.Error(t, err)

	rec.fail = false
	_, err = c.Fetch(ctx, "https://example.com")
	assert.NoError(t, err)
	assert.Len(t, rec.sessions, 2)
}

func TestRestartHonoursCancellation(t *testing.T) {
	rec := &recorder{}
	c := New(rec.factory, Options{
		RestartAfter:    1,
		RestartDelayMin: time.Minute,
		RestartDelayMax: time.Minute,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Settle(ctx, models.StatusFetchError)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, c.Restarts())
}

func TestCoolingWaitsBetweenProducts(t *testing.T) {
	rec := &recorder{}
	cooler := ratelimit.NewAdaptive(40*time.Millisecond, 40*time.Millisecond)
	c := New(rec.factory, Options{Cooler: cooler}, nil)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, c.Settle(ctx, models.StatusFoundValid))
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)

	// a page load slower than the cooling window still gets the full pause
	time.Sleep(60 * time.Millisecond)

	start = time.Now()
	require.NoError(t, c.Settle(ctx, models.StatusFoundValid))
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
	assert.Equal(t, StateActive, c.State())
}
