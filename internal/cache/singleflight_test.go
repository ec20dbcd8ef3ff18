package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSingleflightCoalescesConcurrentCalls(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := NewSingleflightGroup()
	var calls int32
	release := make(chan struct{})

	fn := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "value", nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]Result, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			res, err := g.Call(context.Background(), "key", fn)
			results[idx] = res
			errs[idx] = err
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "fn must run exactly once for concurrent identical keys")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "value", results[i].Value)
	}
}

func TestSingleflightFollowerCancellationDoesNotCancelLeader(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := NewSingleflightGroup()
	leaderDone := make(chan struct{})
	started := make(chan struct{})

	fn := func() (interface{}, error) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		close(leaderDone)
		return "ok", nil
	}

	go g.Call(context.Background(), "key", fn)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()
	_, err := g.Call(ctx, "key", fn)
	assert.ErrorIs(t, err, ErrSingleflightCancelled)

	<-leaderDone // leader's fn still completed despite the follower bailing
	time.Sleep(10 * time.Millisecond) // let the leader's Call goroutine return
}

func TestSingleflightDistinctKeysRunIndependently(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := NewSingleflightGroup()
	var calls int32
	fn := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	_, err1 := g.Call(context.Background(), "a", fn)
	_, err2 := g.Call(context.Background(), "b", fn)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
