package cache

import (
	"container/list"
	"sync"
	"time"
)

// Category キャッシュの区分。区分ごとに独立したTTLと容量の方針を持ち、
// キー空間も区分単位で分離される
type Category string

const (
	CategoryAutocomplete   Category = "autocomplete"
	CategoryPlaceDetails   Category = "place_details"
	CategoryGeocoding      Category = "geocoding"
	CategoryDirections     Category = "directions"
	CategoryNearbySearch   Category = "nearby_search"
	CategoryDistanceMatrix Category = "distance_matrix"
)

// CategoryPolicy 区分ごとのTTLと容量上限
type CategoryPolicy struct {
	TTL        time.Duration
	MaxEntries int
}

// DefaultPolicies 各区分のデフォルト方針を返す。
// オートコンプリート・ジオコーディングは短命（分単位）、
// 場所詳細は場所の同一性がほぼ変わらないため長め（数十分）
func DefaultPolicies() map[Category]CategoryPolicy {
	return map[Category]CategoryPolicy{
		CategoryAutocomplete:   {TTL: 5 * time.Minute, MaxEntries: 512},
		CategoryPlaceDetails:   {TTL: 30 * time.Minute, MaxEntries: 1024},
		CategoryGeocoding:      {TTL: 10 * time.Minute, MaxEntries: 512},
		CategoryDirections:     {TTL: 10 * time.Minute, MaxEntries: 256},
		CategoryNearbySearch:   {TTL: 10 * time.Minute, MaxEntries: 256},
		CategoryDistanceMatrix: {TTL: 5 * time.Minute, MaxEntries: 128},
	}
}

// Stats 区分ごとの統計スナップショット（ダッシュボード用。正しさには関与しない）
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

// entry キャッシュエントリ。TTLを過ぎたエントリは物理的に残っていても
// 論理的には不在として扱う
type entry struct {
	key      string
	value    any
	storedAt time.Time
	ttl      time.Duration
	elem     *list.Element
}

// bucket 区分単位の格納領域。ロックは区分ごとに独立しているため、
// ある区分への書き込みが別区分の読み取りをブロックすることはない
type bucket struct {
	mu      sync.Mutex
	policy  CategoryPolicy
	entries map[string]*entry
	order   *list.List // 先頭 = 最も最近Setされたエントリ
	hits    uint64
	misses  uint64
}

// TTLCache 区分ごとのTTL・容量方針を持つ有効期限付きキー値ストア。
// TTLは区分から解決され、呼び出し側が方針を迂回することはできない。
// I/Oは一切行わない
type TTLCache struct {
	buckets map[Category]*bucket

	// now はテストで時計を差し替えるためのフック
	now func() time.Time

	janitorStop chan struct{}
	closeOnce   sync.Once
}

// NewTTLCache 新しいTTLCacheを生成する。policiesがnilの場合はデフォルト方針を使う。
// 渡された方針はデフォルトにマージされ、全区分が必ず初期化される
func NewTTLCache(policies map[Category]CategoryPolicy) *TTLCache {
	merged := DefaultPolicies()
	for category, policy := range policies {
		merged[category] = policy
	}

	buckets := make(map[Category]*bucket, len(merged))
	for category, policy := range merged {
		buckets[category] = &bucket{
			policy:  policy,
			entries: make(map[string]*entry),
			order:   list.New(),
		}
	}

	return &TTLCache{
		buckets:     buckets,
		now:         time.Now,
		janitorStop: make(chan struct{}),
	}
}

// Get キーに対応する値を取得する。不在・期限切れのどちらもmissとして扱い、
// 期限切れエントリはアクセス時に遅延削除される
func (c *TTLCache) Get(category Category, key string) (any, bool) {
	b, ok := c.buckets[category]
	if !ok {
		return nil, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ent, ok := b.entries[key]
	if !ok {
		b.misses++
		return nil, false
	}

	if c.now().Sub(ent.storedAt) >= ent.ttl {
		// 期限切れ → 遅延削除してmiss扱い
		b.order.Remove(ent.elem)
		delete(b.entries, key)
		b.misses++
		return nil, false
	}

	b.hits++
	return ent.value, true
}

// Set キーに値を格納する。既存エントリは無条件に上書きされ、
// storedAtは現在時刻で打ち直される。容量超過時はSetが最も古いエントリから追い出す
func (c *TTLCache) Set(category Category, key string, value any) {
	b, ok := c.buckets[category]
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if ent, ok := b.entries[key]; ok {
		ent.value = value
		ent.storedAt = c.now()
		b.order.MoveToFront(ent.elem)
		return
	}

	ent := &entry{
		key:      key,
		value:    value,
		storedAt: c.now(),
		ttl:      b.policy.TTL,
	}
	ent.elem = b.order.PushFront(ent)
	b.entries[key] = ent

	// 容量超過 → Setが最も古い（最後尾の）エントリを追い出す
	for b.policy.MaxEntries > 0 && len(b.entries) > b.policy.MaxEntries {
		oldest := b.order.Back()
		if oldest == nil {
			break
		}
		victim := b.order.Remove(oldest).(*entry)
		delete(b.entries, victim.key)
	}
}

// Clear 全区分のエントリを明示的に破棄する。統計カウンタは維持される
func (c *TTLCache) Clear() {
	for _, b := range c.buckets {
		b.mu.Lock()
		b.entries = make(map[string]*entry)
		b.order.Init()
		b.mu.Unlock()
	}
}

// Stats 区分ごとのヒット数・ミス数・現在サイズのスナップショットを返す
func (c *TTLCache) Stats() map[Category]Stats {
	stats := make(map[Category]Stats, len(c.buckets))
	for category, b := range c.buckets {
		b.mu.Lock()
		stats[category] = Stats{Hits: b.hits, Misses: b.misses, Size: len(b.entries)}
		b.mu.Unlock()
	}
	return stats
}

// StartJanitor 期限切れエントリを定期的に掃除するバックグラウンドスイープを開始する。
// Getの遅延削除だけでも正しさは保たれるため、スイープは任意
func (c *TTLCache) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweep()
			case <-c.janitorStop:
				return
			}
		}
	}()
}

// sweep 全区分を走査して期限切れエントリを物理削除する
func (c *TTLCache) sweep() {
	for _, b := range c.buckets {
		b.mu.Lock()
		now := c.now()
		for key, ent := range b.entries {
			if now.Sub(ent.storedAt) >= ent.ttl {
				b.order.Remove(ent.elem)
				delete(b.entries, key)
			}
		}
		b.mu.Unlock()
	}
}

// Close ジャニターを停止する。複数回呼んでも安全
func (c *TTLCache) Close() {
	c.closeOnce.Do(func() {
		close(c.janitorStop)
	})
}
