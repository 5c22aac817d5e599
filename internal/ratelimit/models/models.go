// Package models holds the rate limiter's limits, keys and results.
package models

import "time"

// EndpointClass groups routes that share a limit.
type EndpointClass string

const (
	ClassRead  EndpointClass = "read"
	ClassWrite EndpointClass = "write"
)

// Limit allows Requests per sliding Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long a rejected caller should wait, at least a second.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d.Round(time.Second)
}

func IPKey(ip string, class EndpointClass) string {
	return "ip:" + string(class) + ":" + ip
}

func CallerKey(accountID string, class EndpointClass) string {
	return "caller:" + string(class) + ":" + accountID
}
