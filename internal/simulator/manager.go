package simulator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/friend-location-relay/internal/observability"
	"github.com/google/uuid"
)

// Status describes a running simulation.
type Status struct {
	ID        string    `json:"id"`
	EntityID  string    `json:"friendId"`
	Steps     int       `json:"steps"`
	Duration  string    `json:"duration"`
	StartedAt time.Time `json:"startedAt"`
}

type run struct {
	status Status
	cancel context.CancelFunc
}

// Manager runs simulations in the background and lets callers stop them by id.
type Manager struct {
	sim     *Simulator
	logger  *slog.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards runs and closed, and orders wg.Add against Shutdown.
	mu     sync.Mutex
	runs   map[string]*run
	closed bool
	wg     sync.WaitGroup
}

// NewManager creates a Manager around sim.
func NewManager(sim *Simulator, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sim:     sim,
		logger:  logger,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
		runs:    make(map[string]*run),
	}
}

// Start validates r and launches it. The returned id identifies the run for Stop.
func (m *Manager) Start(r Route) (string, error) {
	r, err := m.sim.Normalize(r)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(m.ctx)
	entry := &run{
		status: Status{
			ID:        id,
			EntityID:  r.EntityID,
			Steps:     r.Steps,
			Duration:  r.Duration.String(),
			StartedAt: m.sim.clock.Now().UTC(),
		},
		cancel: cancel,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return "", errors.New("simulation manager is shut down")
	}
	m.runs[id] = entry
	m.wg.Add(1)
	m.metrics.SimulationsActive.Inc()
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer m.finish(id)

		report, err := m.sim.Run(ctx, r)
		switch {
		case errors.Is(err, context.Canceled):
			m.logger.Info("simulation stopped", "id", id, "friend_id", r.EntityID, "published", report.Published)
		case err != nil:
			m.logger.Error("simulation aborted", "id", id, "friend_id", r.EntityID, "error", err)
		}
	}()
	return id, nil
}

// Stop cancels the run with the given id. Unknown or finished ids return false.
func (m *Manager) Stop(id string) bool {
	m.mu.Lock()
	entry, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	entry.cancel()
	return true
}

// Active lists running simulations ordered by start time.
func (m *Manager) Active() []Status {
	m.mu.Lock()
	out := make([]Status, 0, len(m.runs))
	for _, entry := range m.runs {
		out = append(out, entry.status)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Shutdown cancels every run and waits for them to exit or for ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.cancel()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) finish(id string) {
	m.mu.Lock()
	entry, ok := m.runs[id]
	delete(m.runs, id)
	m.mu.Unlock()
	if ok {
		entry.cancel()
		m.metrics.SimulationsActive.Dec()
	}
}
