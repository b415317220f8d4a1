package service

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"Rumbo-App/internal/domain/model"
	"Rumbo-App/internal/domain/repository"
)

const (
	// maxPhrasesPerSearch 1回の近隣検索で使う検索フレーズの上限
	maxPhrasesPerSearch = 3

	// maxCandidatesPerPhrase フレーズごとに採用する候補数の上限（コスト抑制）
	maxCandidatesPerPhrase = 5

	// defaultNearbyLimit limit未指定時の結果件数
	defaultNearbyLimit = 10
)

// NearbySynthesizer 半径検索を持たないプリミティブ（テキスト検索＋詳細解決）から
// 「(lat,lng)の半径X km以内・カテゴリ絞り込み」の近隣検索を合成するサービス。
// プロバイダのネイティブ近隣検索はコスト上の理由で意図的に使わない
type NearbySynthesizer interface {
	// SearchNearby 距離フィルタ・距離昇順ソート済みの結果を返す。
	// 先頭には常に「未選択」番兵が付き、上流の全面障害でもエラーにはならない
	SearchNearby(ctx context.Context, req *model.NearbySearchRequest) ([]model.NearbyResult, error)

	// ClassifyCandidate 取得済み候補のタイプタグから内部カテゴリを推論する
	ClassifyCandidate(candidate *model.PlaceCandidate) model.PlaceCategory
}

// nearbySynthesizerImpl NearbySynthesizerの実装
type nearbySynthesizerImpl struct {
	searcher repository.PlaceSearcher
	regions  RegionPhraseResolver
}

// NewNearbySynthesizer 新しいNearbySynthesizerインスタンスを作成する
func NewNearbySynthesizer(searcher repository.PlaceSearcher, regions RegionPhraseResolver) NearbySynthesizer {
	if regions == nil {
		regions = NewBoundingBoxRegionResolver(nil)
	}
	return &nearbySynthesizerImpl{
		searcher: searcher,
		regions:  regions,
	}
}

// SearchNearby 近隣検索を合成する。
// 1. カテゴリから地域対応の検索フレーズを導出
// 2. フレーズごとにテキスト検索（上限付き）
// 3. 場所参照IDで重複排除（先勝ち）
// 4. 候補ごとに詳細解決して座標を取得（失敗はドロップ）
// 5. 大円距離で半径フィルタ
// 6. 距離昇順ソート・件数切り詰め
// 7. 番兵を先頭に付与
func (s *nearbySynthesizerImpl) SearchNearby(ctx context.Context, req *model.NearbySearchRequest) ([]model.NearbyResult, error) {
	if req == nil {
		return nil, model.NewUpstreamError(model.UpstreamInvalidInput, "search_nearby", "リクエストがnilです", nil)
	}
	if !req.Location.InRange() {
		return nil, model.NewUpstreamError(model.UpstreamInvalidInput, "search_nearby",
			fmt.Sprintf("不正な座標です: lat=%v, lng=%v", req.Location.Lat, req.Location.Lng), nil)
	}
	if req.RadiusKm <= 0 {
		return nil, model.NewUpstreamError(model.UpstreamInvalidInput, "search_nearby", "半径は正の値が必要です", nil)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultNearbyLimit
	}

	sentinel := model.NoneSelectedResult()

	// 「検索不要」カテゴリはフレーズ導出から距離フィルタまでを丸ごと省略する
	if !req.Category.LookupNeeded() {
		return []model.NearbyResult{sentinel}, nil
	}

	phrases := s.buildPhrases(req.Category, req.Location)
	if len(phrases) == 0 {
		// 未知カテゴリ → 番兵のみ。エラーではない
		return []model.NearbyResult{sentinel}, nil
	}

	// フレーズごとに検索し、場所参照IDで重複排除（先勝ち）
	seen := make(map[string]bool)
	var candidates []model.PlaceCandidate
	failedPhrases := 0
	for _, phrase := range phrases {
		// 呼び出し元が待機を放棄した場合は部分的な結果を合成せず中断する
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		suggestions, err := s.searcher.SuggestPlaces(ctx, phrase)
		if err != nil {
			// 1つのフレーズの失敗で検索全体を中断しない
			log.Printf("⚠️ 近隣検索フレーズ失敗 (%q): %v", phrase, err)
			failedPhrases++
			continue
		}
		if len(suggestions) > maxCandidatesPerPhrase {
			suggestions = suggestions[:maxCandidatesPerPhrase]
		}
		for _, suggestion := range suggestions {
			if suggestion.PlaceRef == "" || seen[suggestion.PlaceRef] {
				continue
			}
			seen[suggestion.PlaceRef] = true
			candidates = append(candidates, model.PlaceCandidate{
				ExternalID:   suggestion.PlaceRef,
				Name:         suggestion.Name,
				CategoryTags: suggestion.Types,
				SourceQuery:  phrase,
			})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failedPhrases == len(phrases) {
		// 全フレーズ失敗 → 番兵のみに軟着陸させる。近隣検索の喪失は致命傷ではない
		log.Printf("⚠️ 近隣検索の全フレーズが失敗しました (カテゴリ: %s)", req.Category)
		return []model.NearbyResult{sentinel}, nil
	}

	// 詳細解決 → 距離フィルタ
	queryPoint := orb.Point{req.Location.Lng, req.Location.Lat}
	var results []model.NearbyResult
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		details, err := s.searcher.GetPlaceDetails(ctx, candidate.ExternalID)
		if err != nil {
			log.Printf("⚠️ 候補の詳細解決に失敗 (%s): %v", candidate.ExternalID, err)
			continue
		}

		candidatePoint := orb.Point{details.Location.Lng, details.Location.Lat}
		distanceKm := geo.DistanceHaversine(queryPoint, candidatePoint) / 1000.0
		if distanceKm > req.RadiusKm {
			continue
		}

		results = append(results, model.NearbyResult{
			ID:         details.PlaceRef,
			Name:       details.Name,
			Address:    details.Address,
			Location:   details.Location,
			Category:   req.Category,
			DistanceKm: distanceKm,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})
	if len(results) > limit {
		results = results[:limit]
	}

	// 番兵は検索結果の有無にかかわらず常に先頭
	return append([]model.NearbyResult{sentinel}, results...), nil
}

// buildPhrases カテゴリと座標から検索フレーズを1〜3個導出する。
// 座標が既知の地域に含まれる場合は都市名入りの地域形を優先し、
// 含まれない場合は汎用形だけに落とす
func (s *nearbySynthesizerImpl) buildPhrases(category model.PlaceCategory, location model.LatLng) []string {
	table, ok := model.GetCategoryPhrases(category)
	if !ok {
		return nil
	}

	var phrases []string
	if city, inRegion := s.regions.ResolveCity(location); inRegion {
		for _, template := range table.Regional {
			phrases = append(phrases, fmt.Sprintf(template, city))
		}
	}
	phrases = append(phrases, table.Generic...)

	if len(phrases) > maxPhrasesPerSearch {
		phrases = phrases[:maxPhrasesPerSearch]
	}
	return phrases
}

// ClassifyCandidate タイプタグの優先順位表で内部カテゴリを推論する。
// 未対応タグは汎用の「user_proposed」に落ち、番兵カテゴリには決してならない
func (s *nearbySynthesizerImpl) ClassifyCandidate(candidate *model.PlaceCandidate) model.PlaceCategory {
	if candidate == nil {
		return model.CategoryUserProposed
	}
	return model.InferCategory(candidate.CategoryTags)
}
