package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/retail-price-sweeper/internal/aggregate"
	"github.com/maltedev/retail-price-sweeper/internal/database"
	"github.com/maltedev/retail-price-sweeper/internal/models"
	"github.com/maltedev/retail-price-sweeper/internal/queue"
	"github.com/maltedev/retail-price-sweeper/internal/retailers"
)

var testCatalog = []models.CatalogEntry{
	{Code: "BFR11PG", Brand: "Britânia"},
	{Code: "AF-15", Brand: "Mondial"},
}

func registry() *retailers.Registry {
	return retailers.NewRegistry([]retailers.Retailer{
		{Key: "magalu", Name: "Magazine Luiza", Column: "Magalu"},
		{Key: "gazin", Name: "Gazin", Column: "Gazin"},
	})
}

type fakeSweeper struct {
	mu      sync.Mutex
	swept   []string
	block   chan struct{}
	started chan string
	fail    map[string]error
}

func (f *fakeSweeper) Sweep(ctx context.Context, ret retailers.Retailer, entries []models.CatalogEntry, onResult func(models.ProductResult)) (*aggregate.Collector, error) {
	f.mu.Lock()
	f.swept = append(f.swept, ret.Key)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- ret.Key
	}
	if err := f.fail[ret.Key]; err != nil {
		return nil, err
	}

	c := aggregate.NewCollector(ret.Key)
	for _, e := range entries {
		if f.block != nil {
			select {
			case <-ctx.Done():
				return c, ctx.Err()
			case <-f.block:
			}
		}
		price := "R$ 99,90"
		r := models.NewProductResult(e.Key(), ret.Key, models.StatusFoundValid, models.StringPtr(e.Code), &price, models.StringPtr("https://x/"+e.Code), true)
		c.Add(r)
		onResult(r)
	}
	return c, nil
}

func (f *fakeSweeper) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.swept...)
}

type fakeStore struct {
	mu       sync.Mutex
	created  []uuid.UUID
	statuses []string
}

func (s *fakeStore) CreateRun(_ context.Context, run database.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, run.ID)
	return nil
}

func (s *fakeStore) UpdateRunStatus(_ context.Context, _ uuid.UUID, status string, _ bool, _ error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	retailers []string
}

func (p *fakePublisher) PublishSweepCompleted(_ context.Context, _ uuid.UUID, c *aggregate.Collector) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retailers = append(p.retailers, c.Retailer())
	return nil
}

func newManager(sw Sweeper, mutate func(*Config)) *Manager {
	cfg := Config{
		Registry: registry(),
		Catalog:  testCatalog,
		Sweeper:  sw,
		Queue:    queue.NewInMemoryQueue(10),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewManager(cfg, nil)
}

func waitForStatus(t *testing.T, m *Manager, id uuid.UUID, want Status) *Run {
	t.Helper()
	var run *Run
	require.Eventually(t, func() bool {
		var err error
		run, err = m.Get(id)
		return err == nil && run.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return run
}

func TestRunCompletes(t *testing.T) {
	sw := &fakeSweeper{}
	store, pub := &fakeStore{}, &fakePublisher{}
	dir := t.TempDir()
	m := newManager(sw, func(c *Config) {
		c.Store = store
		c.Publisher = pub
		c.ExportDir = dir
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.StartWorker(ctx)

	run, err := m.Submit(ctx, Request{})
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, run.Status)
	assert.Equal(t, []string{"magalu", "gazin"}, run.Retailers)
	assert.Equal(t, 4, run.Total)

	done := waitForStatus(t, m, run.ID, StatusCompleted)
	assert.Equal(t, 4, done.Checked)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, []string{"magalu", "gazin"}, sw.keys())
	assert.Equal(t, []string{"magalu", "gazin"}, pub.retailers)
	assert.Equal(t, []uuid.UUID{run.ID}, store.created)
	assert.Equal(t, []string{"running", "completed"}, store.statuses)

	require.NotEmpty(t, done.ExportPath)
	assert.Equal(t, dir, filepath.Dir(done.ExportPath))
	_, err = os.Stat(done.ExportPath)
	assert.NoError(t, err)

	results, err := m.Results(run.ID)
	require.NoError(t, err)
	require.Contains(t, results, "gazin")
	r, ok := results["gazin"].Get("AF-15 Mondial")
	require.True(t, ok)
	assert.Equal(t, "R$ 99,90", models.Deref(r.Preco))
}

func TestSubmitValidates(t *testing.T) {
	m := newManager(&fakeSweeper{}, nil)
	ctx := context.Background()

	_, err := m.Submit(ctx, Request{Retailers: []string{"nope"}})
	assert.ErrorIs(t, err, retailers.ErrUnknownRetailer)

	_, err = m.Submit(ctx, Request{Products: []string{"missing"}})
	assert.ErrorIs(t, err, ErrNoProducts)

	run, err := m.Submit(ctx, Request{Retailers: []string{"gazin"}, Products: []string{"af-15"}})
	require.NoError(t, err)
	assert.Equal(t, 1, run.Total)
}

func TestCancelQueuedRun(t *testing.T) {
	m := newManager(&fakeSweeper{}, nil)
	ctx := context.Background()

	run, err := m.Submit(ctx, Request{})
	require.NoError(t, err)

	cancelled, err := m.Cancel(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = m.Cancel(ctx, run.ID)
	assert.ErrorIs(t, err, ErrRunFinished)

	_, err = m.Cancel(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestCancelRunningRun(t *testing.T) {
	sw := &fakeSweeper{block: make(chan struct{}), started: make(chan string, 2)}
	m := newManager(sw, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.StartWorker(ctx)

	run, err := m.Submit(ctx, Request{})
	require.NoError(t, err)

	assert.Equal(t, "magalu", <-sw.started)
	sw.block <- struct{}{}

	_, err = m.Cancel(ctx, run.ID)
	require.NoError(t, err)

	done := waitForStatus(t, m, run.ID, StatusCancelled)
	assert.Equal(t, 1, done.Checked)
	assert.Equal(t, []string{"magalu"}, sw.keys())

	results, err := m.Results(run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, results["magalu"].Len())
}

func TestFailedRetailerDoesNotStopRun(t *testing.T) {
	sw := &fakeSweeper{fail: map[string]error{"magalu": errors.New("browser did not start")}}
	m := newManager(sw, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.StartWorker(ctx)

	run, err := m.Submit(ctx, Request{})
	require.NoError(t, err)

	done := waitForStatus(t, m, run.ID, StatusFailed)
	assert.Contains(t, done.Error, "browser did not start")
	assert.Equal(t, []string{"magalu", "gazin"}, sw.keys())
	assert.Equal(t, 2, done.Checked)
}

func TestListNewestFirst(t *testing.T) {
	m := newManager(&fakeSweeper{}, nil)
	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := m.Submit(context.Background(), Request{})
	require.NoError(t, err)
	second, err := m.Submit(context.Background(), Request{})
	require.NoError(t, err)

	runs := m.List()
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
}
