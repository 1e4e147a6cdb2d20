package query

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarioS1BasicSuccess is spec scenario S1.
func TestScenarioS1BasicSuccess(t *testing.T) {
	ep := NewEndpoint[int, string](func(ctx context.Context, arg int) (string, error) {
		return strconv.Itoa(arg), nil
	})

	o := ep.Use()
	require.NoError(t, o.SetArgAsync(context.Background(), 10))

	data, _ := o.Data()
	assert.Equal(t, "10", data)
	assert.Equal(t, StatusSuccess, o.Status())
	assert.False(t, o.IsLoading())
}

// TestScenarioS2SharedCache is spec scenario S2.
func TestScenarioS2SharedCache(t *testing.T) {
	var calls int32
	ep := NewEndpoint[int, string](func(ctx context.Context, arg int) (string, error) {
		atomic.AddInt32(&calls, 1)
		return strconv.Itoa(arg), nil
	})

	o1 := ep.Use(WithStaleTime[int, string](100 * time.Minute))
	o2 := ep.Use(WithStaleTime[int, string](100 * time.Minute))

	require.NoError(t, o1.SetArgAsync(context.Background(), 10))
	require.NoError(t, o2.SetArgAsync(context.Background(), 10))

	d1, _ := o1.Data()
	d2, _ := o2.Data()
	assert.Equal(t, "10", d1)
	assert.Equal(t, "10", d2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// TestScenarioS3InvalidateSingleVsAll is spec scenario S3.
func TestScenarioS3InvalidateSingleVsAll(t *testing.T) {
	var calls int32
	ep := NewEndpoint[int, string](func(ctx context.Context, arg int) (string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(time.Millisecond)
		return strconv.Itoa(arg), nil
	})

	a := ep.Use()
	b := ep.Use()
	require.NoError(t, a.SetArgAsync(context.Background(), 1))
	require.NoError(t, b.SetArgAsync(context.Background(), 2))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	ep.Invalidate(1)
	// Invalidate starts the refetch asynchronously when observers exist.
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 3 }, time.Second, time.Millisecond)
	assert.True(t, a.IsFetching())
	assert.False(t, b.IsFetching())

	require.Eventually(t, func() bool { return !a.IsFetching() }, time.Second, time.Millisecond)

	ep.InvalidateAll()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 5 }, time.Second, time.Millisecond)
}

// TestScenarioS4CancelResetsToIdle is spec scenario S4.
func TestScenarioS4CancelResetsToIdle(t *testing.T) {
	hang := make(chan struct{})
	ep := NewEndpoint[string, string](func(ctx context.Context, arg string) (string, error) {
		select {
		case <-ctx.Done():
			return "", &CancellationError{Cause: ctx.Err()}
		case <-hang:
			return "late", nil
		}
	})

	o := ep.Use()
	done := make(chan error, 1)
	go func() {
		_, err := o.TriggerAsync(context.Background(), "test")
		done <- err
	}()

	time.Sleep(time.Millisecond)
	o.Cancel()

	select {
	case err := <-done:
		var cancelErr *CancellationError
		assert.ErrorAs(t, err, &cancelErr)
	case <-time.After(time.Second):
		t.Fatal("cancel never unblocked the caller")
	}

	assert.Equal(t, StatusIdle, o.Status())
	assert.NoError(t, o.Err())
	assert.False(t, o.HasData())
	close(hang)
}

// TestScenarioS5KeepLatestResult is spec scenario S5.
func TestScenarioS5KeepLatestResult(t *testing.T) {
	ep := NewEndpoint[string, string](func(ctx context.Context, arg string) (string, error) {
		return arg, nil
	})
	o := ep.Use()
	require.NoError(t, o.SetArgAsync(context.Background(), "default"))

	// Force a second attempt that supersedes the first via cancel+refetch.
	gate := make(chan struct{})
	var attempts int32
	ep2 := NewEndpoint[int, string](func(ctx context.Context, arg int) (string, error) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			<-gate
			return "attempt-0", nil
		}
		return "attempt-1", nil
	})
	o2 := ep2.Use()
	done0 := make(chan error, 1)
	go func() {
		_, err := o2.SetArgAsync(context.Background(), 0)
		done0 <- err
	}()
	time.Sleep(10 * time.Millisecond)

	o2.Cancel()
	_, err := o2.RefetchAsync(context.Background())
	require.NoError(t, err)
	close(gate)
	<-done0

	data, ok := o2.Data()
	require.True(t, ok)
	assert.Equal(t, "attempt-1", data, "attempt 1 must win even though attempt 0 resolves later")
}

// TestScenarioS6UpdateQueryDataScoping is spec scenario S6.
func TestScenarioS6UpdateQueryDataScoping(t *testing.T) {
	ep := NewEndpoint[int, string](func(ctx context.Context, arg int) (string, error) {
		return strconv.Itoa(arg), nil
	})

	o1 := ep.Use()
	o2 := ep.Use()
	require.NoError(t, o1.SetArgAsync(context.Background(), 1))
	require.NoError(t, o2.SetArgAsync(context.Background(), 2))

	ep.UpdateQueryData(1, "updated")

	d1, _ := o1.Data()
	d2, _ := o2.Data()
	assert.Equal(t, "updated", d1)
	assert.Equal(t, "2", d2)
}

// TestPropertyUpdateQueryDataNeverInvokesFunction is testable property 2.
func TestPropertyUpdateQueryDataNeverInvokesFunction(t *testing.T) {
	var calls int32
	ep := NewEndpoint[int, string](func(ctx context.Context, arg int) (string, error) {
		atomic.AddInt32(&calls, 1)
		return strconv.Itoa(arg), nil
	})

	ok := ep.UpdateQueryData(1, "v")
	assert.False(t, ok, "no entry yet exists for arg 1")

	o := ep.Use()
	require.NoError(t, o.SetArgAsync(context.Background(), 1))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	ok = ep.UpdateQueryData(1, "v2")
	assert.True(t, ok)
	data, _ := o.Data()
	assert.Equal(t, "v2", data)
	assert.Equal(t, StatusSuccess, o.Status())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "updateQueryData must not invoke the async function")
}

// TestPropertyInvalidateObserverCounts is testable property 3.
func TestPropertyInvalidateObserverCounts(t *testing.T) {
	var calls int32
	ep := NewEndpoint[int, string](func(ctx context.Context, arg int) (string, error) {
		atomic.AddInt32(&calls, 1)
		return strconv.Itoa(arg), nil
	})

	// Zero observers: prefetch populates the cache but invalidate must
	// not trigger a refetch until a subscription follows.
	ep.Prefetch(context.Background(), 1)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)

	ep.Invalidate(1)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "invalidate with zero observers must not refetch")

	o := ep.Use()
	require.NoError(t, o.SetArgAsync(context.Background(), 1))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "the subscription following invalidation must refetch")
}

// TestPropertyCancelNeverBecomesError is testable property 5.
func TestPropertyCancelNeverBecomesError(t *testing.T) {
	hang := make(chan struct{})
	ep := NewEndpoint[string, string](func(ctx context.Context, arg string) (string, error) {
		<-hang
		return "", errors.New("should never surface")
	})

	o := ep.Use()
	go func() { _, _ = o.TriggerAsync(context.Background(), "x") }()
	time.Sleep(10 * time.Millisecond)
	o.Cancel()
	time.Sleep(10 * time.Millisecond)

	assert.NotEqual(t, StatusError, o.Status())
	assert.Equal(t, StatusIdle, o.Status())
	close(hang)
}
