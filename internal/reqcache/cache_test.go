package reqcache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *countingRecorder) RecordCacheLookup(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

func TestDo_WithoutCacheCallsEveryTime(t *testing.T) {
	var calls int
	fn := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	ctx := context.Background()
	first, err := Do(ctx, "k", nil, fn)
	require.NoError(t, err)
	second, err := Do(ctx, "k", nil, fn)
	require.NoError(t, err)

	require.Equal(t, 1, first)
	require.Equal(t, 2, second)
	require.Equal(t, 0, Invalidate(ctx, TagCart))
}

func TestDo_MemoizesWithinRequest(t *testing.T) {
	recorder := &countingRecorder{}
	ctx := NewContext(context.Background(), New(recorder))

	var calls int
	fn := func(context.Context) ([]string, error) {
		calls++
		return []string{"r1"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Do(ctx, Key("listRegions"), []string{TagRegions}, fn)
		require.NoError(t, err)
		require.Equal(t, []string{"r1"}, got)
	}

	require.Equal(t, 1, calls)
	require.Equal(t, 1, recorder.outcomes[OutcomeMiss])
	require.Equal(t, 2, recorder.outcomes[OutcomeHit])
}

func TestDo_DistinctArgumentsAreDistinctEntries(t *testing.T) {
	ctx := NewContext(context.Background(), New(nil))

	var calls int
	fn := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	_, err := Do(ctx, Key("getRegion", "zw"), nil, fn)
	require.NoError(t, err)
	_, err = Do(ctx, Key("getRegion", "fr"), nil, fn)
	require.NoError(t, err)

	require.Equal(t, 2, calls)
	require.Equal(t, 2, FromContext(ctx).Len())
}

func TestDo_ErrorsAreNotMemoized(t *testing.T) {
	ctx := NewContext(context.Background(), New(nil))

	var calls int
	fn := func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("backend down")
		}
		return 42, nil
	}

	_, err := Do(ctx, "k", nil, fn)
	require.Error(t, err)

	got, err := Do(ctx, "k", nil, fn)
	require.NoError(t, err)
	require.Equal(t, 42, got)
	require.Equal(t, 2, calls)
}

func TestDo_ConcurrentCallersShareInFlightCall(t *testing.T) {
	recorder := &countingRecorder{}
	ctx := NewContext(context.Background(), New(recorder))

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	started := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			v, err := Do(ctx, "shared", nil, fn)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	for i := 0; i < callers; i++ {
		<-started
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		require.Equal(t, "value", v)
	}
}

func TestDo_WaiterHonoursContextCancel(t *testing.T) {
	cache := New(nil)
	ctx := NewContext(context.Background(), cache)

	release := make(chan struct{})
	defer close(release)
	go func() {
		_, _ = Do(ctx, "slow", nil, func(context.Context) (int, error) {
			<-release
			return 1, nil
		})
	}()
	require.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, time.Millisecond)

	waitCtx, cancel := context.WithCancel(ctx)
	cancel()
	_, err := Do(waitCtx, "slow", nil, func(context.Context) (int, error) { return 2, nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestInvalidate_ByTag(t *testing.T) {
	ctx := NewContext(context.Background(), New(nil))

	var cartCalls, regionCalls int
	cartFn := func(context.Context) (int, error) { cartCalls++; return cartCalls, nil }
	regionFn := func(context.Context) (int, error) { regionCalls++; return regionCalls, nil }

	_, _ = Do(ctx, "retrieveCart", []string{TagCart}, cartFn)
	_, _ = Do(ctx, "listRegions", []string{TagRegions}, regionFn)

	require.Equal(t, 1, Invalidate(ctx, TagCart))

	_, _ = Do(ctx, "retrieveCart", []string{TagCart}, cartFn)
	_, _ = Do(ctx, "listRegions", []string{TagRegions}, regionFn)

	require.Equal(t, 2, cartCalls)
	require.Equal(t, 1, regionCalls)
	require.Equal(t, 0, Invalidate(ctx))
}

func TestDo_PanicReleasesWaiters(t *testing.T) {
	ctx := NewContext(context.Background(), New(nil))

	require.Panics(t, func() {
		_, _ = Do(ctx, "boom", nil, func(context.Context) (int, error) { panic("boom") })
	})

	got, err := Do(ctx, "boom", nil, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, got)
}

func TestKey(t *testing.T) {
	require.Equal(t, `getRegion("zw")`, Key("getRegion", "zw"))
	require.Equal(t, `list(1,"a")`, Key("list", 1, "a"))
	require.NotEqual(t, Key("f", []string{"a"}), Key("f", []string{"b"}))
}

func TestMiddleware_FreshCachePerRequest(t *testing.T) {
	var seen []*Cache
	handler := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := FromContext(r.Context())
		require.NotNil(t, c)
		seen = append(seen, c)
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	require.Len(t, seen, 2)
	require.NotSame(t, seen[0], seen[1])
}
