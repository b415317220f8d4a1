package coalesce

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultDebounceWindow デバウンスの静止ウィンドウのデフォルト値
const DefaultDebounceWindow = 300 * time.Millisecond

// Coalescer 同一論理キーへの冗長な呼び出しを抑制する合流器。
// 2つの独立した仕組みを提供する:
//   - Do: 同一キーのin-flight呼び出しへの相乗り（同時重複排除）
//   - Debounce: 静止ウィンドウ内の最後の呼び出しだけを実行（対話入力向け）
//
// どちらも複数の論理呼び出し元からの並行呼び出しに対して安全で、
// 同一キーの上流呼び出しが同時に2つ飛ぶことはない
type Coalescer struct {
	window time.Duration
	group  singleflight.Group

	mu      sync.Mutex
	pending map[string]*debounceCall
}

// debounceCall デバウンス中の1バースト。バースト内の全呼び出し元が
// 同じdoneチャネルを待ち、勝った呼び出しの結果を共有する
type debounceCall struct {
	timer *time.Timer
	fn    func() (any, error)
	done  chan struct{}
	val   any
	err   error
}

// New 新しいCoalescerを生成する。windowが0以下ならデフォルト値を使う
func New(window time.Duration) *Coalescer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Coalescer{
		window:  window,
		pending: make(map[string]*debounceCall),
	}
}

// Do キーKのin-flight呼び出しがあれば相乗りし、なければfnを実行する。
// 同一キーでは同時に1つの実行しか走らず、全員が同じ結果を受け取る。
// ctxのキャンセルは自分の待機だけを打ち切り、実行中のfnと他の待機者には影響しない
func (c *Coalescer) Do(ctx context.Context, key string, fn func() (any, error)) (any, error) {
	ch := c.group.DoChan(key, fn)
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Debounce 操作名opに対し、静止ウィンドウ内の最後の呼び出しだけを実行する。
// 置き換えられた呼び出しはエラーにならず、勝った呼び出しの結果を共有する。
// fnは呼び出し元のコンテキストから切り離されて実行される（個々の呼び出し元の
// キャンセルは自分の待機だけを打ち切る）
func (c *Coalescer) Debounce(ctx context.Context, op string, fn func() (any, error)) (any, error) {
	c.mu.Lock()
	call, ok := c.pending[op]
	if ok && call.timer.Stop() {
		// まだ発火していない → fnを差し替えてタイマーを巻き直す
		call.fn = fn
		call.timer.Reset(c.window)
	} else {
		call = &debounceCall{
			fn:   fn,
			done: make(chan struct{}),
		}
		c.pending[op] = call
		fired := call
		call.timer = time.AfterFunc(c.window, func() {
			c.fire(op, fired)
		})
	}
	c.mu.Unlock()

	select {
	case <-call.done:
		return call.val, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fire ウィンドウ満了時に勝ち残ったfnを実行し、バースト全員に結果を配る
func (c *Coalescer) fire(op string, call *debounceCall) {
	c.mu.Lock()
	if c.pending[op] == call {
		delete(c.pending, op)
	}
	fn := call.fn
	c.mu.Unlock()

	call.val, call.err = fn()
	close(call.done)
}
