package handler

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"Rumbo-App/internal/cache"
	"Rumbo-App/internal/domain/model"
	"Rumbo-App/internal/usecase"
)

// MapsHandler は地図検索APIのハンドラー
type MapsHandler struct {
	mapsUseCase usecase.MapsUseCase
}

// NewMapsHandler は新しいMapsHandlerインスタンスを作成
func NewMapsHandler(mapsUseCase usecase.MapsUseCase) *MapsHandler {
	return &MapsHandler{
		mapsUseCase: mapsUseCase,
	}
}

// RegisterRoutes は地図検索APIのルーティングを登録する
func (h *MapsHandler) RegisterRoutes(router *gin.Engine) {
	maps := router.Group("/maps")
	{
		maps.GET("/suggest", h.GetSuggestions)
		maps.POST("/autocomplete/session", h.PostAutocompleteSession)
		maps.GET("/places/:place_ref", h.GetPlaceDetails)
		maps.GET("/geocode/reverse", h.GetReverseGeocode)
		maps.POST("/nearby", h.PostNearbySearch)
		maps.POST("/distance-matrix", h.PostDistanceMatrix)
		maps.GET("/categories", h.GetCategories)
		maps.GET("/cache/stats", h.GetCacheStats)
	}
}

// GetSuggestions はオートコンプリート候補を返すエンドポイント
// GET /maps/suggest?input=...&session=...
func (h *MapsHandler) GetSuggestions(c *gin.Context) {
	input := c.Query("input")
	if input == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "inputパラメータは必須です",
		})
		return
	}

	suggestions, err := h.mapsUseCase.SuggestPlaces(c.Request.Context(), input, c.Query("session"))
	if err != nil {
		h.respondUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// PostAutocompleteSession はデバウンス単位のセッションIDを発行するエンドポイント
// POST /maps/autocomplete/session
func (h *MapsHandler) PostAutocompleteSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"session_id": h.mapsUseCase.NewAutocompleteSession()})
}

// GetPlaceDetails は場所詳細を返すエンドポイント
// GET /maps/places/:place_ref
func (h *MapsHandler) GetPlaceDetails(c *gin.Context) {
	placeRef := c.Param("place_ref")

	details, err := h.mapsUseCase.GetPlaceDetails(c.Request.Context(), placeRef)
	if err != nil {
		h.respondUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, details)
}

// GetReverseGeocode は座標から住所を返すエンドポイント
// GET /maps/geocode/reverse?lat=...&lng=...
func (h *MapsHandler) GetReverseGeocode(c *gin.Context) {
	location, err := parseLatLng(c.Query("lat"), c.Query("lng"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "緯度経度の形式が正しくありません",
			"details": err.Error(),
		})
		return
	}

	address, err := h.mapsUseCase.ReverseGeocode(c.Request.Context(), location)
	if err != nil {
		h.respondUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"address": address})
}

// PostNearbySearch は近隣検索を行うエンドポイント。
// 上流の全面障害でも番兵のみの200を返し、エラーにはしない
// POST /maps/nearby
func (h *MapsHandler) PostNearbySearch(c *gin.Context) {
	var req model.NearbySearchRequest

	// リクエストボディのバインド
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "リクエストの形式が正しくありません",
			"details": err.Error(),
		})
		return
	}

	// バリデーション（キャッシュ・ネットワークに触れる前に拒否する）
	if !req.Location.InRange() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "緯度経度が有効な範囲にありません",
		})
		return
	}
	if req.RadiusKm <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "radius_kmは正の値が必要です",
		})
		return
	}

	results, err := h.mapsUseCase.SearchNearby(c.Request.Context(), &req)
	if err != nil {
		h.respondUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// distanceMatrixRequest 距離行列リクエストのボディ
type distanceMatrixRequest struct {
	Origins      []model.LatLng `json:"origins"`
	Destinations []model.LatLng `json:"destinations"`
}

// PostDistanceMatrix は距離行列をバッチ取得するエンドポイント
// POST /maps/distance-matrix
func (h *MapsHandler) PostDistanceMatrix(c *gin.Context) {
	var req distanceMatrixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "リクエストの形式が正しくありません",
			"details": err.Error(),
		})
		return
	}

	if len(req.Origins) == 0 || len(req.Destinations) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "originsとdestinationsは必須です",
		})
		return
	}

	matrix, err := h.mapsUseCase.DistanceMatrix(c.Request.Context(), req.Origins, req.Destinations)
	if err != nil {
		h.respondUpstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, matrix)
}

// categoryEntry カテゴリ一覧の1件
type categoryEntry struct {
	ID   model.PlaceCategory `json:"id"`
	Name string              `json:"name"`
}

// GetCategories は近隣検索で指定できるカテゴリの一覧を表示名付きで返すエンドポイント
// GET /maps/categories
func (h *MapsHandler) GetCategories(c *gin.Context) {
	categories := model.GetAllSearchableCategories()
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	entries := make([]categoryEntry, 0, len(categories))
	for _, category := range categories {
		entries = append(entries, categoryEntry{
			ID:   category,
			Name: model.GetCategoryDisplayName(category),
		})
	}

	c.JSON(http.StatusOK, gin.H{"categories": entries})
}

// GetCacheStats はキャッシュ統計を返すエンドポイント（ダッシュボード用の診断情報）。
// 区分ごとのスナップショットに加え、プロセス全体の合計も返す
// GET /maps/cache/stats
func (h *MapsHandler) GetCacheStats(c *gin.Context) {
	categories := h.mapsUseCase.CacheStats()

	var totals cache.Stats
	for _, stats := range categories {
		totals.Hits += stats.Hits
		totals.Misses += stats.Misses
		totals.Size += stats.Size
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories, "totals": totals})
}

// respondUpstreamError はエラー分類をHTTPステータスへ対応付けて返す
func (h *MapsHandler) respondUpstreamError(c *gin.Context, err error) {
	switch {
	case model.IsInvalidInput(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "入力が正しくありません", "details": err.Error()})
	case model.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "該当するデータがありません"})
	case model.IsRateLimited(err):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "上流のレート制限に到達しました"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "上流の呼び出しに失敗しました", "details": err.Error()})
	}
}

// parseLatLng はクエリパラメータの緯度経度を解析する
func parseLatLng(latStr, lngStr string) (model.LatLng, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return model.LatLng{}, err
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return model.LatLng{}, err
	}
	return model.LatLng{Lat: lat, Lng: lng}, nil
}
