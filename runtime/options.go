package runtime

import "go.uber.org/zap"

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for the manager and the VMs it creates.
// Each VM logs through a child logger tagged with its context address.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}
