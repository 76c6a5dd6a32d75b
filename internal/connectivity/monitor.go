// Package connectivity tracks whether the remote service is reachable and
// tells subscribers about genuine online/offline transitions.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/jwalitptl/lifepulse/pkg/logger"
	"github.com/jwalitptl/lifepulse/pkg/metrics"
)

type State string

const (
	Online  State = "online"
	Offline State = "offline"
)

func stateOf(online bool) State {
	if online {
		return Online
	}
	return Offline
}

// Prober answers whether the network currently looks reachable.
type Prober interface {
	Probe(ctx context.Context) bool
}

type ProberFunc func(ctx context.Context) bool

func (f ProberFunc) Probe(ctx context.Context) bool {
	return f(ctx)
}

type Config struct {
	// PollInterval is used by Run when a prober is configured.
	PollInterval time.Duration
}

type Monitor struct {
	prober  Prober
	config  Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	online bool
	subs   map[int]func(State)
	nextID int

	// notifyMu keeps callbacks in the order transitions happened.
	notifyMu sync.Mutex
}

// NewMonitor starts in the initial state. With a prober, the first Run tick
// replaces it with a real reading.
func NewMonitor(initial bool, prober Prober, config Config, log *logger.Logger, m *metrics.Metrics) *Monitor {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}

	mon := &Monitor{
		prober:  prober,
		config:  config,
		logger:  log,
		metrics: m,
		online:  initial,
		subs:    make(map[int]func(State)),
	}
	mon.setGauge(initial)
	return mon
}

func (m *Monitor) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return stateOf(m.online)
}

func (m *Monitor) IsOnline() bool {
	return m.Current() == Online
}

// OnChange registers fn for every future transition. Callbacks run
// synchronously on the goroutine that delivered the signal and must not call
// Set. The returned function unsubscribes.
func (m *Monitor) OnChange(fn func(State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Set delivers a reachability signal. Repeating the current state is ignored.
// It reports whether a transition happened.
func (m *Monitor) Set(online bool) bool {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	state := stateOf(online)
	m.setGauge(online)
	m.metrics.ConnectivityTransitions.WithLabelValues(string(state)).Inc()
	m.logger.Info("Connectivity changed", "state", string(state))

	for _, fn := range subs {
		fn(state)
	}
	return true
}

// Refresh probes once and applies the result.
func (m *Monitor) Refresh(ctx context.Context) State {
	if m.prober == nil {
		return m.Current()
	}
	online := m.prober.Probe(ctx)
	// A probe cut short by shutdown says nothing about the network.
	if ctx.Err() != nil {
		return m.Current()
	}
	m.Set(online)
	return m.Current()
}

// Run polls the prober until ctx is done. Without a prober it only waits,
// leaving Set as the sole signal source.
func (m *Monitor) Run(ctx context.Context) {
	if m.prober == nil {
		<-ctx.Done()
		return
	}

	m.Refresh(ctx)

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh(ctx)
		}
	}
}

func (m *Monitor) setGauge(online bool) {
	if online {
		m.metrics.Online.Set(1)
		return
	}
	m.metrics.Online.Set(0)
}
