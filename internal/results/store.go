// Package results is the keyed store for in-flight sessions and completed
// reports. Writes for a key are serialized; reads of completed reports run
// concurrently. Entries expire after a TTL measured from their last write.
package results

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/posture"
	"github.com/banshee-data/posture.report/internal/posture/l5summary"
	"github.com/banshee-data/posture.report/internal/timeutil"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown or expired keys.
	ErrNotFound = errors.New("result not found")

	// ErrInFlight is returned when a key already has a running session, or
	// when a report is requested before the session is finalized.
	ErrInFlight = errors.New("analysis in flight")
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Persister stores completed reports beyond the in-memory TTL.
// *db.DB implements it.
type Persister interface {
	SaveReport(ctx context.Context, id string, r l5summary.Report) error
	LoadReport(ctx context.Context, id string) (l5summary.Report, error)
	DeleteReport(ctx context.Context, id string) error
}

type entry struct {
	write sync.Mutex // held for the duration of every session mutation

	// guarded by Store.mu
	session   *posture.Session
	status    Status
	report    l5summary.Report
	err       error
	frames    int
	createdAt time.Time
	updatedAt time.Time
}

// Info is a read-only snapshot of an entry.
type Info struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Frames    int       `json:"frames"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store holds sessions and reports by key. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	ttl     time.Duration
	clock   timeutil.Clock
	persist Persister
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for TTL bookkeeping.
func WithClock(c timeutil.Clock) Option { return func(s *Store) { s.clock = c } }

// WithPersister saves completed reports and falls back to it on lookups.
func WithPersister(p Persister) Option { return func(s *Store) { s.persist = p } }

// NewStore creates an empty store. A non-positive ttl disables expiry.
func NewStore(ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
		clock:   timeutil.RealClock{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewID returns a fresh session key.
func NewID() string { return uuid.New().String() }

// Begin starts a session under id. It fails with ErrInFlight if id already
// has a running session; a completed or failed entry is replaced.
func (s *Store) Begin(id string, cfg *config.TuningConfig) error {
	sess, err := posture.NewSession(id, cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok && e.status == StatusRunning {
		return fmt.Errorf("%w: %s", ErrInFlight, id)
	}
	now := s.clock.Now()
	s.entries[id] = &entry{session: sess, status: StatusRunning, createdAt: now, updatedAt: now}
	monitoring.Logf("[ResultStore] began session %s", id)
	return nil
}

// Create starts a session under a new random id and returns it.
func (s *Store) Create(cfg *config.TuningConfig) (string, error) {
	id := NewID()
	if err := s.Begin(id, cfg); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// With runs fn against the running session for id. Calls for the same id
// are serialized; fn must not retain the session.
func (s *Store) With(id string, fn func(*posture.Session) error) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.write.Lock()
	defer e.write.Unlock()

	s.mu.RLock()
	sess, status := e.session, e.status
	s.mu.RUnlock()
	if status != StatusRunning || sess == nil {
		return fmt.Errorf("%w: session %s is %s", posture.ErrFinalized, id, status)
	}

	err = fn(sess)

	s.mu.Lock()
	e.frames = sess.Ingested()
	e.updatedAt = s.clock.Now()
	s.mu.Unlock()
	return err
}

// Finalize closes the running session for id, stores its report and, when
// a persister is configured, saves it. Finalizing a completed entry returns
// the stored report.
func (s *Store) Finalize(ctx context.Context, id string) (l5summary.Report, error) {
	e, err := s.lookup(id)
	if err != nil {
		return l5summary.Report{}, err
	}
	e.write.Lock()
	defer e.write.Unlock()

	s.mu.RLock()
	sess, status, report, failure := e.session, e.status, e.report, e.err
	s.mu.RUnlock()
	switch status {
	case StatusCompleted:
		return report, nil
	case StatusFailed:
		return l5summary.Report{}, failure
	}

	report = sess.Finalize()

	s.mu.Lock()
	e.status = StatusCompleted
	e.report = report
	e.session = nil
	e.updatedAt = s.clock.Now()
	s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.SaveReport(ctx, id, report); err != nil {
			monitoring.Logf("[ResultStore] failed to persist %s: %v", id, err)
		}
	}
	monitoring.Logf("[ResultStore] completed %s: %d events", id, report.Summary.TotalEvents)
	return report, nil
}

// Fail marks id as failed with err and drops its session. It waits for
// any in-progress With or Finalize on id, and leaves a completed entry
// untouched.
func (s *Store) Fail(id string, err error) {
	e, lerr := s.lookup(id)
	if lerr != nil {
		return
	}
	e.write.Lock()
	defer e.write.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if e.status == StatusCompleted {
		return
	}
	e.status = StatusFailed
	e.err = fmt.Errorf("analysis failed: %w", err)
	e.session = nil
	e.updatedAt = s.clock.Now()
	monitoring.Logf("[ResultStore] session %s failed: %v", id, err)
}

// Get returns the completed report for id. Running sessions return
// ErrInFlight; unknown ids fall back to the persister before returning
// ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (l5summary.Report, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	var (
		status  Status
		report  l5summary.Report
		failure error
	)
	if ok {
		status, report, failure = e.status, e.report, e.err
	}
	s.mu.RUnlock()

	if !ok {
		if s.persist != nil {
			r, err := s.persist.LoadReport(ctx, id)
			if err == nil {
				return r, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return l5summary.Report{}, err
			}
		}
		return l5summary.Report{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	switch status {
	case StatusRunning:
		return l5summary.Report{}, fmt.Errorf("%w: %s", ErrInFlight, id)
	case StatusFailed:
		return l5summary.Report{}, failure
	}
	return report, nil
}

// Info returns a snapshot of the entry for id.
func (s *Store) Info(id string) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	info := Info{ID: id, Status: e.status, Frames: e.frames, CreatedAt: e.createdAt, UpdatedAt: e.updatedAt}
	if e.err != nil {
		info.Error = e.err.Error()
	}
	return info, nil
}

// Delete removes id from memory and from the persister.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()

	if s.persist != nil {
		err := s.persist.DeleteReport(ctx, id)
		switch {
		case err == nil:
			ok = true
		case !errors.Is(err, ErrNotFound):
			return err
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	monitoring.Logf("[ResultStore] deleted %s", id)
	return nil
}

// Len returns the number of entries held in memory.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep drops entries not written for longer than the TTL and returns how
// many were removed. Persisted reports are left in place.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		if now.Sub(e.updatedAt) > s.ttl {
			delete(s.entries, id)
			removed++
		}
	}
	if removed > 0 {
		monitoring.Logf("[ResultStore] swept %d expired entries", removed)
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	t := s.clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			s.Sweep()
		}
	}
}
