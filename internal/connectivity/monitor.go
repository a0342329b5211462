// Package connectivity tracks whether the remote backend is reachable and
// notifies listeners when that changes.
package connectivity

import (
	"context"
	"sync"
	"time"

	"nutrisync/pkg/logger"
)

// Monitor holds the current reachability flag. It is level-triggered: it
// reacts to the signals it is fed and never retries on its own.
type Monitor struct {
	mu          sync.RWMutex
	online      bool
	onReconnect []func()
	onChange    []func(online bool)
	logger      *logger.Logger
}

// NewMonitor starts from the platform's current state.
func NewMonitor(initial bool, l *logger.Logger) *Monitor {
	return &Monitor{
		online: initial,
		logger: logger.OrNop(l).Named("connectivity"),
	}
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// OnReconnect registers fn to run once per offline→online transition.
func (m *Monitor) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnect = append(m.onReconnect, fn)
}

// OnChange registers fn to run on every transition.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// SetOnline applies a platform "became reachable/unreachable" signal.
// Repeated signals for the current state are ignored. Listeners run on the
// caller's goroutine after the flag is updated.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	reconnect := append([]func(){}, m.onReconnect...)
	change := append([]func(bool){}, m.onChange...)
	m.mu.Unlock()

	if online {
		m.logger.Infow("connectivity restored")
	} else {
		m.logger.Warnw("connectivity lost")
	}

	for _, fn := range change {
		fn(online)
	}
	if online {
		for _, fn := range reconnect {
			fn()
		}
	}
}

// Prober answers "is the backend reachable now".
type Prober interface {
	Ping(ctx context.Context) error
}

// Probe runs a single reachability check bounded by timeout.
func Probe(ctx context.Context, p Prober, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Ping(ctx) == nil
}

// Watch feeds the monitor from periodic probes until ctx is cancelled. It is
// the server-side source of online/offline signals.
func Watch(ctx context.Context, m *Monitor, p Prober, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetOnline(Probe(ctx, p, timeout))
		}
	}
}
