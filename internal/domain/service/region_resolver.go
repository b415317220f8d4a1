package service

import (
	"github.com/paulmach/orb"

	"Rumbo-App/internal/domain/model"
)

// RegionPhraseResolver 座標が既知の都市圏に入っているかを判定し、
// 地域形フレーズに埋め込む都市名を返す。テーブルは差し替え可能で、
// デフォルトの境界ボックスはあくまで初期値にすぎない
type RegionPhraseResolver interface {
	// ResolveCity 座標が既知の地域に含まれる場合、その都市名とtrueを返す
	ResolveCity(location model.LatLng) (string, bool)
}

// BoundingBoxRegion 都市名と境界ボックスの組
type BoundingBoxRegion struct {
	City  string
	Bound orb.Bound
}

// DefaultRegions デフォルトの地域テーブルを返す（コロンビアの2都市圏）
func DefaultRegions() []BoundingBoxRegion {
	return []BoundingBoxRegion{
		{
			City: "Cali",
			Bound: orb.Bound{
				Min: orb.Point{-76.60, 3.30},
				Max: orb.Point{-76.44, 3.56},
			},
		},
		{
			City: "Bogotá",
			Bound: orb.Bound{
				Min: orb.Point{-74.24, 4.45},
				Max: orb.Point{-73.98, 4.84},
			},
		},
	}
}

// BoundingBoxRegionResolver 境界ボックスの包含判定によるRegionPhraseResolverの実装
type BoundingBoxRegionResolver struct {
	regions []BoundingBoxRegion
}

// NewBoundingBoxRegionResolver 新しいリゾルバを生成する。
// regionsがnilの場合はデフォルトテーブルを使う
func NewBoundingBoxRegionResolver(regions []BoundingBoxRegion) *BoundingBoxRegionResolver {
	if regions == nil {
		regions = DefaultRegions()
	}
	return &BoundingBoxRegionResolver{regions: regions}
}

// ResolveCity 座標を含む最初の地域の都市名を返す。どの地域にも含まれなければfalse
func (r *BoundingBoxRegionResolver) ResolveCity(location model.LatLng) (string, bool) {
	point := orb.Point{location.Lng, location.Lat}
	for _, region := range r.regions {
		if region.Bound.Contains(point) {
			return region.City, true
		}
	}
	return "", false
}
