package notifier

import "sync/atomic"

// Toggle reports whether notifications are enabled. The setting itself is
// owned by the shell that embeds the monitor.
type Toggle interface {
	Enabled() bool
}

type Switch struct {
	enabled atomic.Bool
}

func NewSwitch(enabled bool) *Switch {
	s := &Switch{}
	s.enabled.Store(enabled)
	return s
}

func (s *Switch) Enabled() bool {
	return s.enabled.Load()
}

func (s *Switch) Set(enabled bool) {
	s.enabled.Store(enabled)
}
