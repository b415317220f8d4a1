package service

import (
	"context"
	"log"
	"time"

	"Rumbo-App/internal/cache"
	"Rumbo-App/internal/coalesce"
	"Rumbo-App/internal/domain/model"
	"Rumbo-App/internal/domain/repository"
)

// DistanceMatrixBatcher 複数起点×複数終点の距離行列をバッチ単位でキャッシュする。
// バッチは丸ごと1エントリとして扱い、過去のバッチの部分集合から新しい
// リクエストに答えることはしない（バッチは単一の呼び出し元がまとめて
// 要求するのが普通であるための、意図した単純化）
type DistanceMatrixBatcher interface {
	// GetOrCompute キャッシュがあれば保存済みの行列全体を返し、
	// なければプロバイダにバッチ全体を1回だけ問い合わせて原子的に保存する
	GetOrCompute(ctx context.Context, origins, destinations []model.LatLng) (*model.Matrix, error)
}

// distanceMatrixBatcherImpl DistanceMatrixBatcherの実装
type distanceMatrixBatcherImpl struct {
	provider        repository.MapsProvider
	ttlCache        *cache.TTLCache
	coalescer       *coalesce.Coalescer
	upstreamTimeout time.Duration
}

// NewDistanceMatrixBatcher 新しいDistanceMatrixBatcherインスタンスを作成する
func NewDistanceMatrixBatcher(provider repository.MapsProvider, ttlCache *cache.TTLCache, coalescer *coalesce.Coalescer, upstreamTimeout time.Duration) DistanceMatrixBatcher {
	if upstreamTimeout <= 0 {
		upstreamTimeout = 10 * time.Second
	}
	return &distanceMatrixBatcherImpl{
		provider:        provider,
		ttlCache:        ttlCache,
		coalescer:       coalescer,
		upstreamTimeout: upstreamTimeout,
	}
}

// GetOrCompute 距離行列を取得する。行・列の順序は意味を持つため正規化時も保存される
func (b *distanceMatrixBatcherImpl) GetOrCompute(ctx context.Context, origins, destinations []model.LatLng) (*model.Matrix, error) {
	key, err := cache.MatrixKey(origins, destinations)
	if err != nil {
		log.Printf("🚨 距離行列キーの導出に失敗: %v", err)
		return nil, err
	}

	if v, ok := b.ttlCache.Get(cache.CategoryDistanceMatrix, key); ok {
		if matrix, ok := v.(*model.Matrix); ok {
			return matrix, nil
		}
	}

	v, err := b.coalescer.Do(ctx, key, func() (any, error) {
		// 実行は呼び出し元のコンテキストから切り離す。相乗りした待機者の
		// 1人がキャンセルしても共有中の呼び出しは続行される
		callCtx, cancel := context.WithTimeout(context.Background(), b.upstreamTimeout)
		defer cancel()

		matrix, err := b.provider.Matrix(callCtx, origins, destinations)
		if err != nil {
			// 失敗はキャッシュしない
			return nil, err
		}

		// バッチ全体を原子的に保存する
		b.ttlCache.Set(cache.CategoryDistanceMatrix, key, matrix)
		return matrix, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Matrix), nil
}
