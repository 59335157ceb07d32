package simulator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/friend-location-relay/internal/domain"
	"github.com/couchcryptid/friend-location-relay/internal/observability"
	"github.com/couchcryptid/friend-location-relay/internal/simulator"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type recordingUpdater struct {
	mu      sync.Mutex
	updates []domain.LocationUpdate
	// fail returns the error for the n-th call (0-based), or nil.
	fail func(n int) error
	// after runs once the n-th call has been recorded.
	after func(n int)
}

func (r *recordingUpdater) UpsertLocation(_ context.Context, u domain.LocationUpdate) (domain.LocationRecord, error) {
	r.mu.Lock()
	n := len(r.updates)
	r.updates = append(r.updates, u)
	r.mu.Unlock()

	if r.after != nil {
		r.after(n)
	}
	if r.fail != nil {
		if err := r.fail(n); err != nil {
			return domain.LocationRecord{}, err
		}
	}
	return domain.NewLocationRecord(u), nil
}

func (r *recordingUpdater) calls() []domain.LocationUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.LocationUpdate(nil), r.updates...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSimulator(u domain.LocationUpdater, opts ...simulator.Option) *simulator.Simulator {
	return simulator.New(u, discardLogger(), observability.NewMetricsForTesting(), opts...)
}

// Manila to Quezon City.
func manilaRoute() simulator.Route {
	return simulator.Route{
		EntityID: "sim-1",
		StartLat: 14.5995, StartLon: 120.9842,
		EndLat: 14.6760, EndLon: 121.0437,
		Duration: 60 * time.Second,
	}
}

type result struct {
	report simulator.Report
	err    error
}

// --- tests ---

func TestRun_PublishesEveryStepOnTheFakeClock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clk := clockwork.NewFakeClock()
	start := clk.Now()
	rec := &recordingUpdater{}
	sim := newSimulator(rec, simulator.WithClock(clk))

	done := make(chan result, 1)
	go func() {
		report, err := sim.Run(ctx, manilaRoute())
		done <- result{report, err}
	}()

	for i := 0; i < simulator.DefaultSteps; i++ {
		require.NoError(t, clk.BlockUntilContext(ctx, 1))
		clk.Advance(3 * time.Second)
	}

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, simulator.Report{Attempted: 21, Published: 21}, res.report)
	assert.Equal(t, 60*time.Second, clk.Since(start))

	calls := rec.calls()
	require.Len(t, calls, 21)
	assert.Equal(t, 14.5995, *calls[0].Latitude)
	assert.Equal(t, 120.9842, *calls[0].Longitude)
	assert.Equal(t, 14.6760, *calls[20].Latitude)
	assert.Equal(t, 121.0437, *calls[20].Longitude)

	for _, c := range calls {
		assert.Equal(t, "sim-1", c.EntityID)
		require.NoError(t, c.Validate())
	}
}

func TestRun_HeadingAndSpeed(t *testing.T) {
	rec := &recordingUpdater{}
	sim := newSimulator(rec)

	// Due east, 0.01 degrees per step, 1 second per step.
	_, err := sim.Run(context.Background(), simulator.Route{
		EntityID: "east",
		StartLat: 0, StartLon: 0,
		EndLat: 0, EndLon: 0.04,
		Steps:    4,
		Duration: 4 * time.Millisecond,
	})
	require.NoError(t, err)

	calls := rec.calls()
	require.Len(t, calls, 5)
	for _, c := range calls {
		assert.InDelta(t, 90, *c.Heading, 1e-9)
		assert.Equal(t, 0.0, *c.Latitude)
	}
	// 0.01 deg * 111 km/deg = 1.11 km every 1 ms.
	assert.InDelta(t, 1.11*3600*1000, *calls[0].Speed, 1)
}

func TestRun_ZeroDurationDoesNotWait(t *testing.T) {
	rec := &recordingUpdater{}
	sim := newSimulator(rec, simulator.WithClock(clockwork.NewFakeClock()))

	report, err := sim.Run(context.Background(), simulator.Route{
		EntityID: "instant",
		StartLat: 10, StartLon: 10,
		EndLat: 11, EndLon: 11,
		Steps: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Published)
	// Zero interval means zero speed rather than a division by zero.
	assert.Equal(t, 0.0, *rec.calls()[0].Speed)
}

func TestRun_RealClockTakesAboutTheDuration(t *testing.T) {
	rec := &recordingUpdater{}
	sim := newSimulator(rec)

	route := manilaRoute()
	route.Steps = 4
	route.Duration = 200 * time.Millisecond

	started := time.Now()
	_, err := sim.Run(context.Background(), route)
	elapsed := time.Since(started)

	require.NoError(t, err)
	assert.Len(t, rec.calls(), 5)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestRun_CancelStopsPublishing(t *testing.T) {
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clockwork.NewFakeClock()
	rec := &recordingUpdater{after: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	sim := newSimulator(rec, simulator.WithClock(clk))

	done := make(chan result, 1)
	go func() {
		report, err := sim.Run(ctx, manilaRoute())
		done <- result{report, err}
	}()

	// Release the waits after steps 0 and 1; the cancel lands during step 2.
	for i := 0; i < 2; i++ {
		require.NoError(t, clk.BlockUntilContext(waitCtx, 1))
		clk.Advance(3 * time.Second)
	}

	var res result
	select {
	case res = <-done:
	case <-waitCtx.Done():
		t.Fatal("run did not stop after cancel")
	}
	require.ErrorIs(t, res.err, context.Canceled)
	assert.Equal(t, 3, res.report.Published)
	assert.Len(t, rec.calls(), 3)
}

func TestRun_ContinueOnError(t *testing.T) {
	errBoom := errors.New("boom")
	rec := &recordingUpdater{fail: func(n int) error {
		if n == 2 {
			return errBoom
		}
		return nil
	}}

	var failedSteps []int
	sim := newSimulator(rec, simulator.WithErrorHandler(func(step int, err error) {
		assert.ErrorIs(t, err, errBoom)
		failedSteps = append(failedSteps, step)
	}))

	route := manilaRoute()
	route.Duration = 0

	report, err := sim.Run(context.Background(), route)
	require.NoError(t, err)
	assert.Equal(t, simulator.Report{Attempted: 21, Published: 20, Failed: 1}, report)
	assert.Equal(t, []int{2}, failedSteps)
}

func TestRun_AbortOnError(t *testing.T) {
	errBoom := errors.New("boom")
	rec := &recordingUpdater{fail: func(n int) error {
		if n == 2 {
			return errBoom
		}
		return nil
	}}
	sim := newSimulator(rec, simulator.WithErrorPolicy(simulator.AbortOnError))

	route := manilaRoute()
	route.Duration = 0

	report, err := sim.Run(context.Background(), route)
	require.ErrorIs(t, err, errBoom)

	var stepErr *simulator.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 2, stepErr.Step)
	assert.Equal(t, simulator.Report{Attempted: 3, Published: 2, Failed: 1}, report)
	assert.Len(t, rec.calls(), 3)
}

func TestRun_RejectsBadRoutes(t *testing.T) {
	sim := newSimulator(&recordingUpdater{})

	tests := []struct {
		name  string
		route simulator.Route
	}{
		{"missing friend", simulator.Route{StartLat: 1, EndLat: 2}},
		{"negative steps", simulator.Route{EntityID: "x", Steps: -1}},
		{"negative duration", simulator.Route{EntityID: "x", Duration: -time.Second}},
		{"start out of range", simulator.Route{EntityID: "x", StartLat: 91}},
		{"end out of range", simulator.Route{EntityID: "x", EndLon: 181}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.Run(context.Background(), tt.route)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestWithDefaultSteps(t *testing.T) {
	rec := &recordingUpdater{}
	sim := newSimulator(rec, simulator.WithDefaultSteps(5))

	route := manilaRoute()
	route.Duration = 0
	_, err := sim.Run(context.Background(), route)
	require.NoError(t, err)
	assert.Len(t, rec.calls(), 6)
}
