package results

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/posture"
	"github.com/banshee-data/posture.report/internal/posture/l3detect"
	"github.com/banshee-data/posture.report/internal/posture/l5summary"
	"github.com/banshee-data/posture.report/internal/testutil"
	"github.com/banshee-data/posture.report/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type memPersister struct {
	mu      sync.Mutex
	reports map[string]l5summary.Report
	saveErr error
}

func newMemPersister() *memPersister {
	return &memPersister{reports: make(map[string]l5summary.Report)}
}

func (m *memPersister) SaveReport(_ context.Context, id string, r l5summary.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.reports[id] = r
	return nil
}

func (m *memPersister) LoadReport(_ context.Context, id string) (l5summary.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return l5summary.Report{}, fmt.Errorf("load %s: %w", id, ErrNotFound)
	}
	return r, nil
}

func (m *memPersister) DeleteReport(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return ErrNotFound
	}
	delete(m.reports, id)
	return nil
}

func newStore(opts ...Option) (*Store, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(epoch)
	return NewStore(30*time.Minute, append([]Option{WithClock(clock)}, opts...)...), clock
}

func ingestSway(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.With(id, func(sess *posture.Session) error {
		return sess.IngestAll(testutil.SwayingFrames(40, 320, 10))
	})
	require.NoError(t, err)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _ := newStore()
	id, err := s.Create(nil)
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.Equal(t, 1, s.Len())

	ingestSway(t, s, id)

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrInFlight)

	info, err := s.Info(id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, info.Status)
	assert.Equal(t, 40, info.Frames)

	r, err := s.Finalize(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Label(l3detect.BodySway).Summary.OccurrenceCount)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	// finalize again returns the same report
	again, err := s.Finalize(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, r, again)

	// writes after completion are rejected
	err = s.With(id, func(*posture.Session) error { return nil })
	assert.ErrorIs(t, err, posture.ErrFinalized)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, id), ErrNotFound)
}

func TestBeginRejectsSecondInFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _ := newStore()
	require.NoError(t, s.Begin("project-1", nil))
	assert.ErrorIs(t, s.Begin("project-1", nil), ErrInFlight)

	_, err := s.Finalize(ctx, "project-1")
	require.NoError(t, err)

	// completed entries may be replaced
	assert.NoError(t, s.Begin("project-1", nil))
}

func TestBeginRejectsBadConfig(t *testing.T) {
	t.Parallel()

	s, _ := newStore()
	zero := 0.0
	cfg := &config.TuningConfig{SamplingRate: &zero}
	assert.ErrorIs(t, s.Begin("x", cfg), posture.ErrInvalidConfig)
	assert.Zero(t, s.Len())
}

func TestFail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _ := newStore()
	require.NoError(t, s.Begin("p", nil))
	s.Fail("p", errors.New("decoder crashed"))

	_, err := s.Get(ctx, "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoder crashed")

	info, err := s.Info("p")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, info.Status)

	// unknown ids are ignored
	s.Fail("missing", errors.New("x"))
}

func TestFailLeavesCompletedEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _ := newStore()
	require.NoError(t, s.Begin("p", nil))
	ingestSway(t, s, "p")
	want, err := s.Finalize(ctx, "p")
	require.NoError(t, err)

	s.Fail("p", errors.New("late"))

	info, err := s.Info("p")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, info.Status)
	got, err := s.Get(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFailWaitsForWriter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _ := newStore()
	require.NoError(t, s.Begin("p", nil))

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.With("p", func(*posture.Session) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	failed := make(chan struct{})
	go func() {
		s.Fail("p", errors.New("decoder crashed"))
		close(failed)
	}()

	select {
	case <-failed:
		t.Fatal("Fail returned while a writer held the session")
	case <-time.After(50 * time.Millisecond):
	}
	info, err := s.Info("p")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, info.Status)

	close(release)
	<-failed

	_, err = s.Finalize(ctx, "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoder crashed")
	info, err = s.Info("p")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, info.Status)
}

func TestFailAndFinalizeAgree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		s, _ := newStore()
		require.NoError(t, s.Begin("p", nil))

		var wg sync.WaitGroup
		var finErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, finErr = s.Finalize(ctx, "p")
		}()
		go func() {
			defer wg.Done()
			s.Fail("p", errors.New("boom"))
		}()
		wg.Wait()

		info, err := s.Info("p")
		require.NoError(t, err)
		if finErr == nil {
			assert.Equal(t, StatusCompleted, info.Status)
		} else {
			assert.Equal(t, StatusFailed, info.Status)
		}
	}
}

func TestUnknownIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _ := newStore()
	_, err := s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Finalize(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.With("nope", func(*posture.Session) error { return nil }), ErrNotFound)
	_, err = s.Info("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestWithSerializesPerKey(t *testing.T) {
	t.Parallel()

	s, _ := newStore()
	require.NoError(t, s.Begin("k", nil))

	frames := testutil.StillFrames(200, 320)
	var next int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := s.With("k", func(sess *posture.Session) error {
					mu.Lock()
					if next >= len(frames) {
						mu.Unlock()
						return nil
					}
					f := frames[next]
					next++
					mu.Unlock()
					_, err := sess.Ingest(f)
					return err
				})
				assert.NoError(t, err)
				mu.Lock()
				done := next >= len(frames)
				mu.Unlock()
				if done {
					return
				}
			}
		}()
	}
	wg.Wait()

	info, err := s.Info("k")
	require.NoError(t, err)
	assert.Equal(t, 200, info.Frames)
}

func TestIndependentSessionsRunInParallel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _ := newStore()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("s%d", i)
		require.NoError(t, s.Begin(id, nil))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.With(id, func(sess *posture.Session) error {
				return sess.IngestAll(testutil.SwayingFrames(40, 320, 10))
			})
		}()
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		r, err := s.Finalize(ctx, fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		assert.Equal(t, 1, r.Summary.TotalEvents)
	}
}

// ---------------------------------------------------------------------------
// Expiry
// ---------------------------------------------------------------------------

func TestSweepExpiresIdleEntries(t *testing.T) {
	t.Parallel()

	s, clock := newStore()
	require.NoError(t, s.Begin("old", nil))
	clock.Advance(20 * time.Minute)
	require.NoError(t, s.Begin("new", nil))

	clock.Advance(11 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	_, err := s.Info("old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Info("new")
	assert.NoError(t, err)
}

func TestWritesRefreshTTL(t *testing.T) {
	t.Parallel()

	s, clock := newStore()
	require.NoError(t, s.Begin("busy", nil))
	clock.Advance(25 * time.Minute)
	require.NoError(t, s.With("busy", func(*posture.Session) error { return nil }))
	clock.Advance(25 * time.Minute)

	assert.Zero(t, s.Sweep())
}

func TestSweepDisabled(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(epoch)
	s := NewStore(0, WithClock(clock))
	require.NoError(t, s.Begin("a", nil))
	clock.Advance(24 * time.Hour)
	assert.Zero(t, s.Sweep())
}

func TestRunSweepsOnTick(t *testing.T) {
	t.Parallel()

	s, clock := newStore()
	require.NoError(t, s.Begin("a", nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Minute)
		close(done)
	}()
	require.Eventually(t, func() bool { return clock.Tickers() == 1 }, time.Second, time.Millisecond)

	clock.Advance(31 * time.Minute)
	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, time.Millisecond)

	cancel()
	<-done
}

// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

func TestPersisterFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	p := newMemPersister()
	s, clock := newStore(WithPersister(p))
	require.NoError(t, s.Begin("keep", nil))
	ingestSway(t, s, "keep")
	want, err := s.Finalize(ctx, "keep")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	require.Equal(t, 1, s.Sweep())

	got, err := s.Get(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Delete(ctx, "keep"))
	_, err = s.Get(ctx, "keep")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistFailureStillCompletes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	p := newMemPersister()
	p.saveErr = errors.New("disk full")
	s, _ := newStore(WithPersister(p))
	require.NoError(t, s.Begin("x", nil))

	_, err := s.Finalize(ctx, "x")
	require.NoError(t, err)
	_, err = s.Get(ctx, "x")
	assert.NoError(t, err)
}
