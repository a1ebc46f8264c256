// Package retry decides whether a failed test attempt is re-executed.
package retry

// Outcome is the result of one attempt as seen by the policy.
type Outcome struct {
	Failed bool
	Err    error
}

// Policy is a per-case retry counter bounded by a maximum. A Policy belongs to
// one test case invocation and must not be shared.
type Policy struct {
	max   int
	count int
}

// New returns a policy granting up to max retries. max <= 0 disables retries.
func New(max int) *Policy {
	if max < 0 {
		max = 0
	}
	return &Policy{max: max}
}

// ShouldRetry reports whether another attempt is granted after outcome and
// records the grant. Passing outcomes are never retried. The failure cause is
// not inspected.
func (p *Policy) ShouldRetry(outcome Outcome) bool {
	if !outcome.Failed {
		return false
	}
	if p.count < p.max {
		p.count++
		return true
	}
	return false
}

// Retries is the number of retries granted so far.
func (p *Policy) Retries() int { return p.count }

// Max is the configured bound.
func (p *Policy) Max() int { return p.max }

// Exhausted reports whether no further retries will be granted.
func (p *Policy) Exhausted() bool { return p.count >= p.max }
