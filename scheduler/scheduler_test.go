package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"gitlab.prplanit.com/precisionplanit/sapsteward/hana"
	"gitlab.prplanit.com/precisionplanit/sapsteward/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	sid, inst string
	state     hana.SrState
	stateErr  error
	status    hana.SrStatusReturnCode
	statusErr error
	calls     int
}

func (f *fakeChecker) SID() string    { return f.sid }
func (f *fakeChecker) Number() string { return f.inst }

func (f *fakeChecker) SrState(context.Context) (hana.SrState, error) {
	f.calls++
	return f.state, f.stateErr
}

func (f *fakeChecker) SrStatus(context.Context) (*hana.SrStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &hana.SrStatus{Status: f.status}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		checker    *fakeChecker
		wantStatus string
		wantState  string
		wantSr     string
	}{
		{"disabled", &fakeChecker{sid: "c01", inst: "00", state: hana.SrStateDisabled}, StatusHealthy, "DISABLED", ""},
		{"secondary", &fakeChecker{sid: "c02", inst: "00", state: hana.SrStateSecondary}, StatusHealthy, "SECONDARY", ""},
		{"primary active", &fakeChecker{sid: "c03", inst: "00", state: hana.SrStatePrimary, status: hana.SrStatusActive}, StatusHealthy, "PRIMARY", "ACTIVE"},
		{"primary syncing", &fakeChecker{sid: "c04", inst: "00", state: hana.SrStatePrimary, status: hana.SrStatusSyncing}, StatusDegraded, "PRIMARY", "SYNCING"},
		{"state error", &fakeChecker{sid: "c05", inst: "00", stateErr: errors.New("hdbnsutil failed")}, StatusError, "", ""},
		{"status error", &fakeChecker{sid: "c06", inst: "00", state: hana.SrStatePrimary, statusErr: errors.New("boom")}, StatusError, "PRIMARY", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Check(context.Background(), tt.checker, quietLogger())
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantState, res.State)
			assert.Equal(t, tt.wantSr, res.SrStatus)
			assert.NotEmpty(t, res.RunID)
			assert.Equal(t, float64(1),
				testutil.ToFloat64(metrics.CheckTotal.WithLabelValues(tt.checker.sid, "00", tt.wantStatus)))
		})
	}
}

func TestCheck_RecordsMetrics(t *testing.T) {
	c := &fakeChecker{sid: "m01", inst: "10", state: hana.SrStatePrimary, status: hana.SrStatusActive}
	Check(context.Background(), c, quietLogger())

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SRState.WithLabelValues("m01", "10", "primary")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.SRState.WithLabelValues("m01", "10", "disabled")))
	assert.Equal(t, float64(15), testutil.ToFloat64(metrics.SRStatusCode.WithLabelValues("m01", "10")))
	assert.Positive(t, testutil.ToFloat64(metrics.CheckLastRunTimestamp.WithLabelValues("m01", "10")))
}

func TestCheck_RunIDsAreUnique(t *testing.T) {
	c := &fakeChecker{sid: "u01", inst: "00"}
	a := Check(context.Background(), c, quietLogger())
	b := Check(context.Background(), c, quietLogger())
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRegister(t *testing.T) {
	s := NewScheduler(quietLogger())
	c := &fakeChecker{sid: "prd", inst: "00"}

	require.NoError(t, s.Register(&Target{Instance: c, Schedule: "@every 30s"}))
	assert.Equal(t, 1, s.ManagedCount())
	assert.Len(t, s.cron.Entries(), 1)
	id := s.managed["PRD/00"].checkID

	require.NoError(t, s.Register(&Target{Instance: c, Schedule: "@every 30s"}))
	assert.Equal(t, id, s.managed["PRD/00"].checkID, "same schedule keeps the entry")

	require.NoError(t, s.Register(&Target{Instance: c, Schedule: "0 */5 * * * *"}))
	assert.NotEqual(t, id, s.managed["PRD/00"].checkID)
	assert.Len(t, s.cron.Entries(), 1)

	require.NoError(t, s.Register(&Target{Instance: &fakeChecker{sid: "qas", inst: "10"}, Schedule: "*/5 * * * *"}))
	assert.Equal(t, 2, s.ManagedCount())

	s.Deregister("PRD/00")
	s.Deregister("PRD/00")
	assert.Equal(t, 1, s.ManagedCount())
	assert.Len(t, s.cron.Entries(), 1)
}

func TestRegister_InvalidSchedule(t *testing.T) {
	s := NewScheduler(quietLogger())

	err := s.Register(&Target{Instance: &fakeChecker{sid: "prd", inst: "00"}, Schedule: "every now and then"})
	assert.ErrorContains(t, err, "scheduling replication check for PRD/00")
	assert.Zero(t, s.ManagedCount())
}

func TestRunAll(t *testing.T) {
	s := NewScheduler(quietLogger())
	a := &fakeChecker{sid: "r01", inst: "00", state: hana.SrStateSecondary}
	b := &fakeChecker{sid: "r02", inst: "00", stateErr: errors.New("down")}
	require.NoError(t, s.Register(&Target{Instance: a, Schedule: "@every 1h"}))
	require.NoError(t, s.Register(&Target{Instance: b, Schedule: "@every 1h", Timeout: time.Second}))
	assert.Empty(t, s.LastResults())

	s.RunAll(context.Background())

	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	results := s.LastResults()
	require.Len(t, results, 2)
	assert.Equal(t, "r01", results[0].SID)
	assert.Equal(t, StatusHealthy, results[0].Status)
	assert.Equal(t, StatusError, results[1].Status)
	assert.Equal(t, "down", results[1].Error)
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(quietLogger())
	s.Start()
	s.Stop()
}

