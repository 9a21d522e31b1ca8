package metrics

import "time"

// Labels tag a metric point.
type Labels map[string]string

// Backend receives metric points. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveDuration(name string, d time.Duration, labels Labels)
	Close() error
}

// Nop discards all points.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)            {}
func (Nop) ObserveDuration(string, time.Duration, Labels) {}
func (Nop) Close() error                                  { return nil }
