package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"Rumbo-App/internal/cache"
	"Rumbo-App/internal/coalesce"
	"Rumbo-App/internal/domain/model"
	"Rumbo-App/internal/domain/repository"
	"Rumbo-App/internal/domain/service"
)

// MapsConfig 最適化済み地図検索の設定
type MapsConfig struct {
	// UpstreamTimeout 上流呼び出し1回あたりのタイムアウト。
	// タイムアウトした呼び出しは一時的失敗となり、キャッシュには入らない
	UpstreamTimeout time.Duration

	// Locale 検索に使う言語コード
	Locale string

	// CountryFilter 検索対象を絞る国コード
	CountryFilter string
}

// DefaultMapsConfig デフォルト設定を返す
func DefaultMapsConfig() *MapsConfig {
	return &MapsConfig{
		UpstreamTimeout: 10 * time.Second,
		Locale:          "es",
		CountryFilter:   "co",
	}
}

// MapsUseCase UI層が利用する地図検索のユースケース。
// すべての操作は合流器 → キャッシュ → プロバイダの順に通過し、
// 課金対象の呼び出しを最小化する
type MapsUseCase interface {
	// SuggestPlaces オートコンプリート。同一セッションの連続入力は
	// デバウンスされ、静止ウィンドウ内の最後の入力だけが上流に届く
	SuggestPlaces(ctx context.Context, input, sessionID string) ([]model.Suggestion, error)

	// NewAutocompleteSession デバウンス単位となるセッションIDを発行する
	NewAutocompleteSession() string

	// GetPlaceDetails 場所参照IDから完全な場所情報を取得する
	GetPlaceDetails(ctx context.Context, placeRef string) (*model.PlaceDetails, error)

	// ReverseGeocode 座標から住所文字列を取得する。同一グリッドセル内の
	// 座標はキャッシュ上等価として扱われる
	ReverseGeocode(ctx context.Context, location model.LatLng) (string, error)

	// SearchNearby カテゴリ絞り込み付きの近隣検索（合成）
	SearchNearby(ctx context.Context, req *model.NearbySearchRequest) ([]model.NearbyResult, error)

	// DistanceMatrix 距離行列のバッチ取得
	DistanceMatrix(ctx context.Context, origins, destinations []model.LatLng) (*model.Matrix, error)

	// CacheStats 区分ごとのキャッシュ統計スナップショット（診断用）
	CacheStats() map[cache.Category]cache.Stats
}

// mapsUseCaseImpl MapsUseCaseの実装
type mapsUseCaseImpl struct {
	provider    repository.MapsProvider
	ttlCache    *cache.TTLCache
	coalescer   *coalesce.Coalescer
	batcher     service.DistanceMatrixBatcher
	synthesizer service.NearbySynthesizer
	config      *MapsConfig
}

// NewMapsUseCase 新しいMapsUseCaseインスタンスを作成する。
// 依存はすべて明示的に注入され、パッケージレベルの可変状態は持たない
func NewMapsUseCase(
	provider repository.MapsProvider,
	ttlCache *cache.TTLCache,
	coalescer *coalesce.Coalescer,
	regions service.RegionPhraseResolver,
	config *MapsConfig,
) MapsUseCase {
	if config == nil {
		config = DefaultMapsConfig()
	}

	u := &mapsUseCaseImpl{
		provider:  provider,
		ttlCache:  ttlCache,
		coalescer: coalescer,
		config:    config,
	}
	u.batcher = service.NewDistanceMatrixBatcher(provider, ttlCache, coalescer, config.UpstreamTimeout)

	// 合成層はキャッシュ・合流器を通過した操作しか見えない
	u.synthesizer = service.NewNearbySynthesizer(placeSearcherAdapter{u}, regions)
	return u
}

// SuggestPlaces オートコンプリートを実行する
func (u *mapsUseCaseImpl) SuggestPlaces(ctx context.Context, input, sessionID string) ([]model.Suggestion, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = "default"
	}

	// セッションごとに独立した操作名でデバウンスする。
	// 別々の利用者の入力が互いをデバウンスすることはない
	op := fmt.Sprintf("autocomplete:%s", sessionID)
	v, err := u.coalescer.Debounce(ctx, op, func() (any, error) {
		// 発火した実行はバースト全員に共有されるため、呼び出し元から切り離す
		return u.suggestCached(context.Background(), input)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Suggestion), nil
}

// NewAutocompleteSession デバウンス単位のセッションIDを発行する
func (u *mapsUseCaseImpl) NewAutocompleteSession() string {
	return uuid.New().String()
}

// suggestCached キャッシュ → 合流器 → プロバイダの順でテキスト検索を解決する。
// デバウンスは通らないため、合成層のフレーズ展開にも使える。
// ctxのキャンセルは自分の待機だけを打ち切り、共有中の実行には影響しない
func (u *mapsUseCaseImpl) suggestCached(ctx context.Context, input string) ([]model.Suggestion, error) {
	key := cache.TextKey(cache.CategoryAutocomplete, input)

	if v, ok := u.ttlCache.Get(cache.CategoryAutocomplete, key); ok {
		if suggestions, ok := v.([]model.Suggestion); ok {
			return suggestions, nil
		}
	}

	v, err := u.coalescer.Do(ctx, key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.Background(), u.config.UpstreamTimeout)
		defer cancel()

		suggestions, err := u.provider.Suggest(callCtx, input, u.config.Locale, u.config.CountryFilter)
		if err != nil {
			// エラーは決してキャッシュしない
			return nil, err
		}
		u.ttlCache.Set(cache.CategoryAutocomplete, key, suggestions)
		return suggestions, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Suggestion), nil
}

// GetPlaceDetails 場所詳細を取得する
func (u *mapsUseCaseImpl) GetPlaceDetails(ctx context.Context, placeRef string) (*model.PlaceDetails, error) {
	key, err := cache.PlaceRefKey(placeRef)
	if err != nil {
		return nil, model.NewUpstreamError(model.UpstreamInvalidInput, "details", "場所参照IDが空です", err)
	}

	if v, ok := u.ttlCache.Get(cache.CategoryPlaceDetails, key); ok {
		if details, ok := v.(*model.PlaceDetails); ok {
			return details, nil
		}
	}

	v, err := u.coalescer.Do(ctx, key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.Background(), u.config.UpstreamTimeout)
		defer cancel()

		details, err := u.provider.Details(callCtx, placeRef)
		if err != nil {
			return nil, err
		}
		u.ttlCache.Set(cache.CategoryPlaceDetails, key, details)
		return details, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.PlaceDetails), nil
}

// ReverseGeocode 座標から住所を取得する
func (u *mapsUseCaseImpl) ReverseGeocode(ctx context.Context, location model.LatLng) (string, error) {
	if !location.InRange() {
		return "", model.NewUpstreamError(model.UpstreamInvalidInput, "reverse_geocode",
			fmt.Sprintf("不正な座標です: lat=%v, lng=%v", location.Lat, location.Lng), nil)
	}

	key, err := cache.GeoKey(cache.CategoryGeocoding, location)
	if err != nil {
		// 範囲チェック後の導出失敗はプログラミングエラー
		log.Printf("🚨 ジオグリッドキーの導出に失敗: %v", err)
		return "", err
	}

	if v, ok := u.ttlCache.Get(cache.CategoryGeocoding, key); ok {
		if address, ok := v.(string); ok {
			return address, nil
		}
	}

	v, err := u.coalescer.Do(ctx, key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.Background(), u.config.UpstreamTimeout)
		defer cancel()

		address, err := u.provider.ReverseGeocode(callCtx, location)
		if err != nil {
			return nil, err
		}
		u.ttlCache.Set(cache.CategoryGeocoding, key, address)
		return address, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SearchNearby 近隣検索を実行する。合成結果そのものもグリッドセル単位でキャッシュされる
func (u *mapsUseCaseImpl) SearchNearby(ctx context.Context, req *model.NearbySearchRequest) ([]model.NearbyResult, error) {
	if req == nil || !req.Location.InRange() {
		return nil, model.NewUpstreamError(model.UpstreamInvalidInput, "search_nearby", "不正な座標です", nil)
	}

	geoKey, err := cache.GeoKey(cache.CategoryNearbySearch, req.Location)
	if err != nil {
		log.Printf("🚨 ジオグリッドキーの導出に失敗: %v", err)
		return nil, err
	}
	key := fmt.Sprintf("%s:%s:r%g:l%d", geoKey, req.Category, req.RadiusKm, req.Limit)

	if v, ok := u.ttlCache.Get(cache.CategoryNearbySearch, key); ok {
		if results, ok := v.([]model.NearbyResult); ok {
			return results, nil
		}
	}

	results, err := u.synthesizer.SearchNearby(ctx, req)
	if err != nil {
		return nil, err
	}

	// 番兵のみの結果は上流障害の軟着陸の可能性があるためキャッシュしない。
	// 正当な0件でも内側のsuggest/detailsキャッシュが効くので再合成は安い
	if len(results) > 1 {
		u.ttlCache.Set(cache.CategoryNearbySearch, key, results)
	}
	return results, nil
}

// DistanceMatrix 距離行列を取得する
func (u *mapsUseCaseImpl) DistanceMatrix(ctx context.Context, origins, destinations []model.LatLng) (*model.Matrix, error) {
	if len(origins) == 0 || len(destinations) == 0 {
		return nil, model.NewUpstreamError(model.UpstreamInvalidInput, "matrix", "起点・終点リストが空です", nil)
	}
	for _, p := range append(append([]model.LatLng{}, origins...), destinations...) {
		if !p.InRange() {
			return nil, model.NewUpstreamError(model.UpstreamInvalidInput, "matrix",
				fmt.Sprintf("不正な座標です: lat=%v, lng=%v", p.Lat, p.Lng), nil)
		}
	}
	return u.batcher.GetOrCompute(ctx, origins, destinations)
}

// CacheStats 区分ごとの統計を返す
func (u *mapsUseCaseImpl) CacheStats() map[cache.Category]cache.Stats {
	return u.ttlCache.Stats()
}

// validateInput 空クエリをキャッシュ・ネットワークに触れる前に拒否する
func validateInput(input string) error {
	if input == "" {
		return model.NewUpstreamError(model.UpstreamInvalidInput, "suggest", "検索テキストが空です", nil)
	}
	return nil
}

// placeSearcherAdapter 合成層に渡す、キャッシュ・合流器通過済みの検索窓口。
// デバウンスは対話入力専用のため、ここでは通さない
type placeSearcherAdapter struct {
	u *mapsUseCaseImpl
}

func (a placeSearcherAdapter) SuggestPlaces(ctx context.Context, input string) ([]model.Suggestion, error) {
	return a.u.suggestCached(ctx, input)
}

func (a placeSearcherAdapter) GetPlaceDetails(ctx context.Context, placeRef string) (*model.PlaceDetails, error) {
	return a.u.GetPlaceDetails(ctx, placeRef)
}
