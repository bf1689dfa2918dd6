package jobqueue

import (
	"math"
	"time"
)

// Backoff is an exponential retry delay policy:
// delay = min(Base × Multiplier^(attempt−1), Max).
type Backoff struct {
	Base       time.Duration `json:"base" yaml:"base"`
	Multiplier float64       `json:"multiplier" yaml:"multiplier"`
	Max        time.Duration `json:"max" yaml:"max"`
}

// DefaultBackoff starts at one second and doubles up to five minutes.
var DefaultBackoff = Backoff{
	Base:       time.Second,
	Multiplier: 2,
	Max:        5 * time.Minute,
}

// Delay returns the wait before the retry that follows failed attempt n (1-indexed).
// A zero Max leaves the delay uncapped; multipliers below 1 are treated as 1.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	attempt = max(attempt, 1)
	mult := max(b.Multiplier, 1)

	d := float64(b.Base) * math.Pow(mult, float64(attempt-1))
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func (b Backoff) validate() bool {
	return b.Base >= 0 && b.Max >= 0 && b.Multiplier >= 0
}

// orDefault returns def for the zero Backoff. Any other policy is taken
// as given, so a zero Max stays uncapped.
func (b Backoff) orDefault(def Backoff) Backoff {
	if b == (Backoff{}) {
		return def
	}
	return b
}
