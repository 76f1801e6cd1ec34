package netmon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Prober confirms real connectivity against the platform health endpoint
type Prober interface {
	Probe(ctx context.Context) error
}

// StatusListener receives connectivity transition callbacks.
// Callbacks fire on actual transitions only, never on redundant events
type StatusListener interface {
	OnOnline()
	OnOffline()
}

// ListenerFuncs StatusListener adapter for bare functions
type ListenerFuncs struct {
	Online  func()
	Offline func()
}

var _ StatusListener = ListenerFuncs{}

// OnOnline implement StatusListener
func (lf ListenerFuncs) OnOnline() {
	if lf.Online != nil {
		lf.Online()
	}
}

// OnOffline implement StatusListener
func (lf ListenerFuncs) OnOffline() {
	if lf.Offline != nil {
		lf.Offline()
	}
}

// Status snapshot of the monitor state
type Status struct {
	Online      bool      `json:"online"`
	Checking    bool      `json:"checking"`
	LastChecked time.Time `json:"last_checked"`
}

// Monitor tracks connectivity transitions reported by the transport layer.
//
// The monitor is purely event driven: no polling happens while the state is
// stable. A transition to online optimistically flips the flag at once and
// schedules a single verification probe after a settle delay, so rapid
// offline/online flapping coalesces into one probe. A failed probe flips the
// monitor back to offline
type Monitor struct {
	mu          sync.Mutex
	online      bool
	checking    bool
	lastChecked time.Time
	listeners   []StatusListener
	probeTimer  *time.Timer
	closed      bool

	prober       Prober
	settleDelay  time.Duration
	probeTimeout time.Duration
	logger       *zap.Logger
}

// NewMonitor create a Monitor instance, initially online
func NewMonitor(prober Prober, settleDelay time.Duration, logger *zap.Logger) *Monitor {
	if settleDelay <= 0 {
		settleDelay = 500 * time.Millisecond
	}
	return &Monitor{
		online:       true,
		prober:       prober,
		settleDelay:  settleDelay,
		probeTimeout: 5 * time.Second,
		logger:       logger,
	}
}

// Subscribe register a transition listener
func (m *Monitor) Subscribe(l StatusListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// Online current connectivity flag
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Status current monitor snapshot
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Online:      m.online,
		Checking:    m.checking,
		LastChecked: m.lastChecked,
	}
}

// SetOffline record a connectivity loss reported by the transport layer
func (m *Monitor) SetOffline() {
	m.mu.Lock()
	if m.closed || !m.online {
		m.mu.Unlock()
		return
	}
	m.online = false
	m.cancelProbeLocked()
	listeners := m.snapshotListenersLocked()
	m.mu.Unlock()

	m.logger.Info("connectivity lost")
	for _, l := range listeners {
		l.OnOffline()
	}
}

// SetOnline record a connectivity recovery.
// The flag flips optimistically, a verification probe follows after the
// settle delay
func (m *Monitor) SetOnline() {
	m.mu.Lock()
	if m.closed || m.online {
		m.mu.Unlock()
		return
	}
	m.online = true
	m.cancelProbeLocked()
	m.probeTimer = time.AfterFunc(m.settleDelay, m.verify)
	listeners := m.snapshotListenersLocked()
	m.mu.Unlock()

	m.logger.Info("connectivity recovered", zap.Duration("probe_in", m.settleDelay))
	for _, l := range listeners {
		l.OnOnline()
	}
}

// Close stop pending probe timers
func (m *Monitor) Close() {
	m.mu.Lock()
	m.closed = true
	m.cancelProbeLocked()
	m.mu.Unlock()
}

func (m *Monitor) verify() {
	m.mu.Lock()
	if m.closed || !m.online {
		m.mu.Unlock()
		return
	}
	m.checking = true
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.probeTimeout)
	err := m.prober.Probe(ctx)
	cancel()

	m.mu.Lock()
	m.checking = false
	m.lastChecked = time.Now()
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("reconnect probe failed, reverting to offline", zap.Error(err))
		m.SetOffline()
		return
	}
	m.logger.Debug("reconnect probe succeeded")
}

func (m *Monitor) cancelProbeLocked() {
	if m.probeTimer != nil {
		m.probeTimer.Stop()
		m.probeTimer = nil
	}
}

func (m *Monitor) snapshotListenersLocked() []StatusListener {
	listeners := make([]StatusListener, len(m.listeners))
	copy(listeners, m.listeners)
	return listeners
}
