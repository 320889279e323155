// Package scheduler runs periodic system replication checks for the HANA
// instances a serve process watches.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"gitlab.prplanit.com/precisionplanit/sapsteward/hana"
	"gitlab.prplanit.com/precisionplanit/sapsteward/metrics"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Checker is the part of a HANA instance a replication check needs.
type Checker interface {
	SID() string
	Number() string
	SrState(ctx context.Context) (hana.SrState, error)
	SrStatus(ctx context.Context) (*hana.SrStatus, error)
}

// Target is one instance checked on a cron schedule.
type Target struct {
	Instance Checker
	Schedule string
	// Timeout bounds a single check. Zero means no bound.
	Timeout time.Duration
}

// Check outcomes, also used as the status label of sapsteward_check_total.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// CheckResult is the outcome of one replication check.
type CheckResult struct {
	RunID    string    `json:"run_id"`
	SID      string    `json:"sid"`
	Instance string    `json:"instance"`
	State    string    `json:"state,omitempty"`
	SrStatus string    `json:"sr_status,omitempty"`
	Status   string    `json:"status"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

// scheduledTarget tracks the cron entry for a watched instance.
type scheduledTarget struct {
	target  *Target
	checkID cron.EntryID
	last    *CheckResult
}

// Scheduler manages cron-based replication checks for all watched instances.
type Scheduler struct {
	cron    *cron.Cron
	managed map[string]*scheduledTarget // key: "SID/NN"
	mu      sync.RWMutex
	logger  *slog.Logger
}

// NewScheduler creates a scheduler. Schedules accept an optional seconds
// field and descriptors such as "@every 30s".
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser)),
		managed: make(map[string]*scheduledTarget),
		logger:  logger,
	}
}

// Key identifies an instance in the scheduler.
func Key(c Checker) string {
	return strings.ToUpper(c.SID()) + "/" + c.Number()
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Cron scheduler started")
}

// Stop halts the cron scheduler and waits for running checks.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Cron scheduler stopped")
}

// --- Registration ---

// Register adds or updates a watched instance. The cron entry is only
// re-created when the schedule changed.
func (s *Scheduler) Register(t *Target) error {
	key := Key(t.Instance)
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.managed[key]; ok {
		if existing.target.Schedule == t.Schedule {
			existing.target = t
			return nil
		}
		s.deregisterLocked(key)
	}

	entry := &scheduledTarget{target: t}
	id, err := s.cron.AddFunc(t.Schedule, func() { s.runScheduled(key) })
	if err != nil {
		return fmt.Errorf("scheduling replication check for %s (%q): %w", key, t.Schedule, err)
	}
	entry.checkID = id
	s.managed[key] = entry
	s.logger.Info(fmt.Sprintf("Scheduled replication check for %s (%s)", key, t.Schedule))
	return nil
}

// Deregister removes a watched instance.
func (s *Scheduler) Deregister(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deregisterLocked(key)
}

func (s *Scheduler) deregisterLocked(key string) {
	entry, ok := s.managed[key]
	if !ok {
		return
	}
	s.cron.Remove(entry.checkID)
	delete(s.managed, key)
	s.logger.Info(fmt.Sprintf("Deregistered %s from scheduler", key))
}

// ManagedCount returns the number of watched instances.
func (s *Scheduler) ManagedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.managed)
}

// LastResults returns the latest check of every watched instance that has
// run at least once, sorted by key.
func (s *Scheduler) LastResults() []CheckResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.managed))
	for k := range s.managed {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	results := make([]CheckResult, 0, len(keys))
	for _, k := range keys {
		if last := s.managed[k].last; last != nil {
			results = append(results, *last)
		}
	}
	return results
}

// --- Checks ---

// RunAll checks every watched instance once, in key order.
func (s *Scheduler) RunAll(ctx context.Context) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.managed))
	for k := range s.managed {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	slices.Sort(keys)
	for _, k := range keys {
		s.runKey(ctx, k)
	}
}

func (s *Scheduler) runScheduled(key string) {
	s.runKey(context.Background(), key)
}

func (s *Scheduler) runKey(ctx context.Context, key string) {
	s.mu.RLock()
	entry, ok := s.managed[key]
	var t *Target
	if ok {
		t = entry.target
	}
	s.mu.RUnlock()
	if !ok {
		return
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	result := Check(ctx, t.Instance, s.logger)

	s.mu.Lock()
	if entry, ok := s.managed[key]; ok {
		entry.last = result
	}
	s.mu.Unlock()
}

// Check reads the replication role of an instance and, on a primary, the
// replication status, then records both as metrics. A primary is healthy
// only while its status is ACTIVE.
func Check(ctx context.Context, c Checker, logger *slog.Logger) *CheckResult {
	if logger == nil {
		logger = slog.Default()
	}
	result := &CheckResult{
		RunID:    uuid.NewString(),
		SID:      c.SID(),
		Instance: c.Number(),
		Time:     time.Now().UTC(),
	}
	log := logger.With("run_id", result.RunID, "sid", result.SID, "instance", result.Instance)
	log.Info("Starting replication check")

	fail := func(step string, err error) *CheckResult {
		result.Status = StatusError
		result.Error = err.Error()
		log.Error("Replication check failed", "step", step, "error", err)
		metrics.RecordCheck(result.SID, result.Instance, result.Status)
		return result
	}

	state, err := c.SrState(ctx)
	if err != nil {
		return fail("sr_state", err)
	}
	result.State = state.String()
	metrics.RecordReplicationState(result.SID, result.Instance, strings.ToLower(result.State))

	result.Status = StatusHealthy
	if state == hana.SrStatePrimary {
		status, err := c.SrStatus(ctx)
		if err != nil {
			return fail("sr_status", err)
		}
		result.SrStatus = status.Status.String()
		metrics.RecordReplicationStatus(result.SID, result.Instance, int(status.Status))
		if status.Status != hana.SrStatusActive {
			result.Status = StatusDegraded
		}
	}

	log.Info("Replication check completed", "state", result.State, "sr_status", result.SrStatus, "result", result.Status)
	metrics.RecordCheck(result.SID, result.Instance, result.Status)
	return result
}
