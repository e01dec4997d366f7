// Package retry provides the bounded backoff schedule shared by list loads.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// stepBackOff yields delays of step, 2*step, 3*step ... up to max retries,
// then stops. The schedule is deterministic; there is no jitter.
type stepBackOff struct {
	step time.Duration
	max  int
	n    int
}

// NewStep returns a backoff that allows max delayed retries with the delay
// before retry n equal to n*step.
func NewStep(step time.Duration, max int) backoff.BackOff {
	return &stepBackOff{step: step, max: max}
}

func (b *stepBackOff) NextBackOff() time.Duration {
	b.n++
	if b.n > b.max {
		return backoff.Stop
	}
	return time.Duration(b.n) * b.step
}

func (b *stepBackOff) Reset() {
	b.n = 0
}
