// Package stats defines the best-effort statistics sink. Failures or slow
// sinks must never affect order or deal flow, so every implementation here
// is fire-and-forget.
package stats

import (
	"time"

	"go.uber.org/zap"
)

// Sink records counters, gauges and timings.
type Sink interface {
	IncrementCounter(name string, tags map[string]string)
	UpdateGauge(name string, value float64, tags map[string]string)
	RecordTiming(name string, d time.Duration, tags map[string]string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncrementCounter(string, map[string]string)          {}
func (Nop) UpdateGauge(string, float64, map[string]string)      {}
func (Nop) RecordTiming(string, time.Duration, map[string]string) {}

// LogSink writes metrics to the debug log. Useful in development and as the
// default when no real backend is wired.
type LogSink struct {
	Log *zap.SugaredLogger
}

func (s LogSink) IncrementCounter(name string, tags map[string]string) {
	s.Log.Debugw("counter", "name", name, "tags", tags)
}

func (s LogSink) UpdateGauge(name string, value float64, tags map[string]string) {
	s.Log.Debugw("gauge", "name", name, "value", value, "tags", tags)
}

func (s LogSink) RecordTiming(name string, d time.Duration, tags map[string]string) {
	s.Log.Debugw("timing", "name", name, "ms", d.Milliseconds(), "tags", tags)
}

// OrDefault returns s, or a Nop sink when s is nil.
func OrDefault(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}
