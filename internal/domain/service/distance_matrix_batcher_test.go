package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Rumbo-App/internal/cache"
	"Rumbo-App/internal/coalesce"
	"Rumbo-App/internal/domain/model"
)

// fakeMatrixProvider repository.MapsProviderのテスト用フェイク（行列のみ使用）
type fakeMatrixProvider struct {
	matrixCalls int32
	matrixErr   error
	delay       time.Duration
}

func (f *fakeMatrixProvider) Suggest(ctx context.Context, input, locale, countryFilter string) ([]model.Suggestion, error) {
	return nil, nil
}

func (f *fakeMatrixProvider) Details(ctx context.Context, placeRef string) (*model.PlaceDetails, error) {
	return nil, nil
}

func (f *fakeMatrixProvider) ReverseGeocode(ctx context.Context, location model.LatLng) (string, error) {
	return "", nil
}

func (f *fakeMatrixProvider) Matrix(ctx context.Context, origins, destinations []model.LatLng) (*model.Matrix, error) {
	atomic.AddInt32(&f.matrixCalls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.matrixErr != nil {
		return nil, f.matrixErr
	}

	rows := make([][]model.DistanceDuration, len(origins))
	for i := range origins {
		cells := make([]model.DistanceDuration, len(destinations))
		for j := range destinations {
			cells[j] = model.DistanceDuration{DistanceMeters: (i + 1) * (j + 1) * 1000, DurationSeconds: 60}
		}
		rows[i] = cells
	}
	return &model.Matrix{Origins: origins, Destinations: destinations, Rows: rows}, nil
}

var (
	pointA = model.LatLng{Lat: 3.4516, Lng: -76.5320}
	pointB = model.LatLng{Lat: 3.4600, Lng: -76.5200}
	pointX = model.LatLng{Lat: 3.4700, Lng: -76.5100}
	pointY = model.LatLng{Lat: 3.4800, Lng: -76.5000}
)

func newTestBatcher(provider *fakeMatrixProvider) DistanceMatrixBatcher {
	return NewDistanceMatrixBatcher(provider, cache.NewTTLCache(nil), coalesce.New(0), 5*time.Second)
}

func TestGetOrCompute_CachesWholeBatch(t *testing.T) {
	provider := &fakeMatrixProvider{}
	batcher := newTestBatcher(provider)

	first, err := batcher.GetOrCompute(context.Background(), []model.LatLng{pointA, pointB}, []model.LatLng{pointX, pointY})
	require.NoError(t, err)
	require.Len(t, first.Rows, 2)
	require.Len(t, first.Rows[0], 2)

	second, err := batcher.GetOrCompute(context.Background(), []model.LatLng{pointA, pointB}, []model.LatLng{pointX, pointY})
	require.NoError(t, err)

	// 2回目はキャッシュから返り、上流呼び出しは増えない
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.matrixCalls))
	assert.Equal(t, first, second)
}

func TestGetOrCompute_BatchesNeverPartiallySatisfyEachOther(t *testing.T) {
	provider := &fakeMatrixProvider{}
	batcher := newTestBatcher(provider)

	_, err := batcher.GetOrCompute(context.Background(), []model.LatLng{pointA, pointB}, []model.LatLng{pointX, pointY})
	require.NoError(t, err)

	// 部分集合のバッチは過去のバッチからは答えられず、新しい上流呼び出しになる
	_, err = batcher.GetOrCompute(context.Background(), []model.LatLng{pointA}, []model.LatLng{pointX, pointY})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&provider.matrixCalls))
}

func TestGetOrCompute_ConcurrentRequestsCoalesce(t *testing.T) {
	provider := &fakeMatrixProvider{delay: 40 * time.Millisecond}
	batcher := newTestBatcher(provider)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := batcher.GetOrCompute(context.Background(), []model.LatLng{pointA}, []model.LatLng{pointX})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	// 同一バッチの並行リクエストは1回の上流呼び出しに合流する
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.matrixCalls))
}

func TestGetOrCompute_ErrorsAreNotCached(t *testing.T) {
	provider := &fakeMatrixProvider{
		matrixErr: model.NewUpstreamError(model.UpstreamTransient, "matrix", "上流障害", nil),
	}
	batcher := newTestBatcher(provider)

	_, err := batcher.GetOrCompute(context.Background(), []model.LatLng{pointA}, []model.LatLng{pointX})
	assert.True(t, model.IsTransient(err))

	// 失敗はキャッシュされないため、回復後は再度上流に到達する
	provider.matrixErr = nil
	matrix, err := batcher.GetOrCompute(context.Background(), []model.LatLng{pointA}, []model.LatLng{pointX})
	require.NoError(t, err)
	assert.NotNil(t, matrix)
	assert.Equal(t, int32(2), atomic.LoadInt32(&provider.matrixCalls))
}

func TestGetOrCompute_InvalidCoordinates(t *testing.T) {
	provider := &fakeMatrixProvider{}
	batcher := newTestBatcher(provider)

	_, err := batcher.GetOrCompute(context.Background(), []model.LatLng{{Lat: 999, Lng: 0}}, []model.LatLng{pointX})
	require.Error(t, err)

	// キー導出の失敗は上流に到達しない
	assert.Equal(t, int32(0), atomic.LoadInt32(&provider.matrixCalls))
}
