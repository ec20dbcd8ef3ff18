package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Result is what SingleflightGroup.Call returns: the leader's produced
// value plus whether that value was handed to more than one caller.
type Result struct {
	Value     interface{}
	Shared    bool // true if the value went to more than one caller, leader included
	Duration  time.Duration
}

// SingleflightGroup coalesces concurrent calls sharing the same key into
// one execution of fn. It wraps golang.org/x/sync/singleflight.Group,
// which already gives "exactly one in-flight fn per key," with per-caller
// cancellation: a follower's context being cancelled returns
// ErrSingleflightCancelled to that follower without affecting the
// leader's fn or any other follower.
type SingleflightGroup struct {
	group singleflight.Group
}

// NewSingleflightGroup constructs an empty SingleflightGroup.
func NewSingleflightGroup() *SingleflightGroup {
	return &SingleflightGroup{}
}

// Call executes fn for key, sharing the result with any other concurrent
// Call for the same key. A timeout or cancellation on ctx applies only to
// this caller's wait — it never cancels fn itself, whether this caller is
// the leader or a follower.
func (g *SingleflightGroup) Call(ctx context.Context, key ShortKey, fn func() (interface{}, error)) (Result, error) {
	start := time.Now()

	resultCh := g.group.DoChan(string(key), fn)

	select {
	case res := <-resultCh:
		return Result{
			Value:    res.Val,
			Shared:   res.Shared,
			Duration: time.Since(start),
		}, res.Err
	case <-ctx.Done():
		return Result{Duration: time.Since(start)}, ErrSingleflightCancelled
	}
}

// Forget removes a key from the group's bookkeeping before its natural
// completion would, so the next Call for that key starts a fresh leader
// rather than joining a call known to be stale. It removes whichever call
// is current for key, including one started after the caller's own;
// callers already waiting on a forgotten call still receive its result.
func (g *SingleflightGroup) Forget(key ShortKey) {
	g.group.Forget(string(key))
}
