package connectivity

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Monitor mirrors a Source into a send gate and calls onOnline once for every
// offline to online transition.
type Monitor struct {
	online   atomic.Bool
	onOnline func()
	logger   *slog.Logger

	stopOnce    sync.Once
	unsubscribe func()
}

// Start subscribes to src until Stop is called. onOnline may be nil.
func Start(src Source, onOnline func(), logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{onOnline: onOnline, logger: logger}
	m.online.Store(src.Online())
	m.unsubscribe = src.Subscribe(m.handle)
	return m
}

func (m *Monitor) handle(online bool) {
	was := m.online.Swap(online)
	if was == online {
		return
	}
	if !online {
		m.logger.Info("connectivity lost")
		return
	}
	m.logger.Info("connectivity restored")
	if m.onOnline != nil {
		m.onOnline()
	}
}

// Online reports whether new sends may go to the network.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Stop removes the subscription. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
	})
}
