package repository

import (
	"context"

	"Rumbo-App/internal/domain/model"
)

// PlaceSearcher 近隣検索の合成が利用する検索操作。
// 実装はキャッシュと合流器を通過した上でプロバイダに到達するため、
// 合成層が課金対象の呼び出しを直接行うことはない
type PlaceSearcher interface {
	// SuggestPlaces テキスト検索（キャッシュ・in-flight重複排除済み）
	SuggestPlaces(ctx context.Context, input string) ([]model.Suggestion, error)

	// GetPlaceDetails 場所詳細の解決（キャッシュ・in-flight重複排除済み）
	GetPlaceDetails(ctx context.Context, placeRef string) (*model.PlaceDetails, error)
}
