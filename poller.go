// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package comform

import "time"

// IntervalGenerator produces the successive poll intervals a client's idle
// loop waits through before issuing a keepalive call. Next is called once up
// front and once again each time the previous interval elapses, so a
// generator that varies its return value implements backoff or jitter.
type IntervalGenerator interface {
	Next() time.Duration
}

type constantInterval struct{ d time.Duration }

// ConstantInterval returns an IntervalGenerator that always waits d.
func ConstantInterval(d time.Duration) IntervalGenerator {
	return constantInterval{d}
}

func (c constantInterval) Next() time.Duration { return c.d }

// poller tracks the current target interval and reports whether an observed
// idle duration has reached it.
type poller struct {
	gen     IntervalGenerator
	current time.Duration
}

func newPoller(gen IntervalGenerator) *poller {
	if gen == nil {
		return nil
	}
	return &poller{gen: gen, current: gen.Next()}
}

// isIntervalReached reports whether idle has reached the current interval,
// along with the signed delta (idle - current); a negative delta is how long
// is left to wait.
func (p *poller) isIntervalReached(idle time.Duration) (bool, time.Duration) {
	delta := idle - p.current
	return delta >= 0, delta
}

// advance moves to the next interval value, called after each keepalive.
func (p *poller) advance() {
	p.current = p.gen.Next()
}
