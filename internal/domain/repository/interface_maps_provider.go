package repository

import (
	"context"

	"Rumbo-App/internal/domain/model"
)

// MapsProvider 従量課金の地図プロバイダへの4つのプリミティブ操作。
// ネットワーク（課金対象の呼び出し）に触れてよいのはこの実装だけで、
// キャッシュもリトライも一切持たない純粋な境界。
// 各操作は失敗時にmodel.UpstreamErrorを返す
type MapsProvider interface {
	// Suggest 自由テキスト検索。半径の概念は持たない
	Suggest(ctx context.Context, input, locale, countryFilter string) ([]model.Suggestion, error)

	// Details 場所参照IDを住所・座標付きの完全な情報に解決する
	Details(ctx context.Context, placeRef string) (*model.PlaceDetails, error)

	// ReverseGeocode 座標から住所文字列を取得する
	ReverseGeocode(ctx context.Context, location model.LatLng) (string, error)

	// Matrix 複数起点×複数終点の距離・所要時間行列を取得する
	Matrix(ctx context.Context, origins, destinations []model.LatLng) (*model.Matrix, error)
}
