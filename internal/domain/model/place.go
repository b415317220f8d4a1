package model

import "math"

// LatLng 緯度経度を表す基本的な型（検索・距離計算で使用）
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// InRange 緯度経度が有効な範囲に収まっているかチェック（NaNも拒否）
func (l LatLng) InRange() bool {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lng) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Suggestion オートコンプリートが返す軽量な場所候補
type Suggestion struct {
	PlaceRef    string   `json:"place_ref"`             // プロバイダの場所参照ID
	Name        string   `json:"name"`                  // 表示名
	Description string   `json:"description"`           // 補足の説明文（住所など）
	Types       []string `json:"types,omitempty"`       // プロバイダのタイプタグ
}

// PlaceCandidate 検索途中の、まだ重複排除されていないヒット
type PlaceCandidate struct {
	ExternalID   string   `json:"external_id"`
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	Location     LatLng   `json:"location"`
	CategoryTags []string `json:"category_tags"`
	SourceQuery  string   `json:"source_query"` // この候補を拾った検索フレーズ
}

// PlaceDetails 参照IDを解決した完全な場所情報
type PlaceDetails struct {
	PlaceRef string   `json:"place_ref"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Location LatLng   `json:"location"`
	Types    []string `json:"types,omitempty"`
}

// NearbyResult 重複排除・距離フィルタ・距離ソート済みの最終レコード
type NearbyResult struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Address        string        `json:"address"`
	Location       LatLng        `json:"location"`
	Category       PlaceCategory `json:"category"`
	DistanceKm     float64       `json:"distance_km"`
	IsSentinelNone bool          `json:"is_sentinel_none"`
}

// NoneSelectedResult 「未選択」を表す番兵レコードを返す。
// 検索結果の有無にかかわらず常にリストの先頭に置かれる。
func NoneSelectedResult() NearbyResult {
	return NearbyResult{
		ID:             "none",
		Name:           GetCategoryDisplayName(CategoryNone),
		Category:       CategoryNone,
		IsSentinelNone: true,
	}
}

// NearbySearchRequest 近隣検索のリクエスト
type NearbySearchRequest struct {
	Location LatLng        `json:"location"`
	RadiusKm float64       `json:"radius_km"`
	Category PlaceCategory `json:"category"`
	Limit    int           `json:"limit"`
}

// DistanceDuration 距離行列の1セル（距離と所要時間）。
// Unreachableは経路が存在しないペアを表し、距離・所要時間は0のまま意味を持たない
type DistanceDuration struct {
	DistanceMeters  int  `json:"distance_meters"`
	DurationSeconds int  `json:"duration_seconds"`
	Unreachable     bool `json:"unreachable,omitempty"`
}

// Matrix 起点×終点の距離行列。Rowsは起点順×終点順で並ぶ
type Matrix struct {
	Origins      []LatLng             `json:"origins"`
	Destinations []LatLng             `json:"destinations"`
	Rows         [][]DistanceDuration `json:"rows"`
}
