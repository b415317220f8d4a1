package coalesce

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_ConcurrentCallsCoalesceToOneExecution(t *testing.T) {
	c := New(0)
	var calls int32

	fn := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return "resultado", nil
	}

	// 同一キーへN個の並行呼び出し → 実行は1回、全員が同じ結果を受け取る
	const n = 10
	results := make([]any, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := c.Do(context.Background(), "key", fn)
			require.NoError(t, err)
			results[idx] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, "resultado", v)
	}
}

func TestDo_DifferentKeysRunIndependently(t *testing.T) {
	c := New(0)
	var calls int32

	var wg sync.WaitGroup
	for _, key := range []string{"key-a", "key-b"} {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			_, err := c.Do(context.Background(), k, func() (any, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(30 * time.Millisecond)
				return k, nil
			})
			require.NoError(t, err)
		}(key)
	}
	wg.Wait()

	// 別キーは合流しない
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDo_CancelledWaiterDoesNotAffectOthers(t *testing.T) {
	c := New(0)
	var calls int32

	fn := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(80 * time.Millisecond)
		return "ok", nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)

	// 待機を途中で放棄する呼び出し元
	var cancelledErr error
	go func() {
		defer wg.Done()
		_, cancelledErr = c.Do(ctx, "key", fn)
	}()

	// 最後まで待つ呼び出し元
	var survivorVal any
	var survivorErr error
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		survivorVal, survivorErr = c.Do(context.Background(), "key", fn)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	wg.Wait()

	// キャンセルしたのは自分の待機だけ。実行と他の待機者は影響を受けない
	assert.ErrorIs(t, cancelledErr, context.Canceled)
	require.NoError(t, survivorErr)
	assert.Equal(t, "ok", survivorVal)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDebounce_OnlyLastCallFires(t *testing.T) {
	c := New(100 * time.Millisecond)
	var calls int32
	var winner atomic.Value

	makeFn := func(label string) func() (any, error) {
		return func() (any, error) {
			atomic.AddInt32(&calls, 1)
			winner.Store(label)
			return label, nil
		}
	}

	// 静止ウィンドウ内に連続して呼ぶ → 最後の呼び出しだけが実行される
	var wg sync.WaitGroup
	results := make([]any, 3)
	for i, label := range []string{"primero", "segundo", "tercero"} {
		wg.Add(1)
		go func(idx int, l string) {
			defer wg.Done()
			v, err := c.Debounce(context.Background(), "autocomplete:s1", makeFn(l))
			require.NoError(t, err)
			results[idx] = v
		}(i, label)
		time.Sleep(30 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "tercero", winner.Load())

	// 置き換えられた呼び出しも勝った呼び出しの結果を共有する
	for _, v := range results {
		assert.Equal(t, "tercero", v)
	}
}

func TestDebounce_FiresAfterQuietWindow(t *testing.T) {
	window := 80 * time.Millisecond
	c := New(window)

	start := time.Now()
	_, err := c.Debounce(context.Background(), "op", func() (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	// 実行は最後の呼び出しから約ウィンドウ分遅れて発火する
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, window)
	assert.Less(t, elapsed, window+60*time.Millisecond)
}

func TestDebounce_IndependentOperations(t *testing.T) {
	c := New(50 * time.Millisecond)
	var calls int32

	fn := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	var wg sync.WaitGroup
	for _, op := range []string{"autocomplete:s1", "autocomplete:s2"} {
		wg.Add(1)
		go func(o string) {
			defer wg.Done()
			_, err := c.Debounce(context.Background(), o, fn)
			require.NoError(t, err)
		}(op)
	}
	wg.Wait()

	// セッションが違えば互いをデバウンスしない
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDebounce_NewBurstAfterFire(t *testing.T) {
	c := New(40 * time.Millisecond)
	var calls int32

	fn := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	_, err := c.Debounce(context.Background(), "op", fn)
	require.NoError(t, err)
	_, err = c.Debounce(context.Background(), "op", fn)
	require.NoError(t, err)

	// 発火済みのバーストの後の呼び出しは新しいバーストになる
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDebounce_CancelledWaiterDoesNotAffectBurst(t *testing.T) {
	c := New(60 * time.Millisecond)
	var calls int32

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)

	var cancelledErr error
	go func() {
		defer wg.Done()
		_, cancelledErr = c.Debounce(ctx, "op", func() (any, error) {
			atomic.AddInt32(&calls, 1)
			return "a", nil
		})
	}()

	var survivorVal any
	var survivorErr error
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		survivorVal, survivorErr = c.Debounce(context.Background(), "op", func() (any, error) {
			atomic.AddInt32(&calls, 1)
			return "b", nil
		})
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	wg.Wait()

	assert.ErrorIs(t, cancelledErr, context.Canceled)
	require.NoError(t, survivorErr)
	assert.Equal(t, "b", survivorVal)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
