package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Rumbo-App/internal/domain/model"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api"

// GoogleMapsProvider はGoogle Maps APIを使用した地図プロバイダの実装。
// キャッシュ・リトライは上位層の責務であり、ここでは行わない
type GoogleMapsProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGoogleMapsProvider は新しいプロバイダを生成する
func NewGoogleMapsProvider(apiKey string) *GoogleMapsProvider {
	return &GoogleMapsProvider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Suggest はPlace Autocomplete APIで自由テキスト検索を行う。
// 候補0件（ZERO_RESULTS）は空リストとして返し、エラーにはしない
func (g *GoogleMapsProvider) Suggest(ctx context.Context, input, locale, countryFilter string) ([]model.Suggestion, error) {
	params := url.Values{}
	params.Set("input", input)
	if locale != "" {
		params.Set("language", locale)
	}
	if countryFilter != "" {
		params.Set("components", "country:"+countryFilter)
	}
	params.Set("key", g.apiKey)

	var apiResp autocompleteResponse
	if err := g.getJSON(ctx, "suggest", "/place/autocomplete/json", params, &apiResp); err != nil {
		return nil, err
	}

	if apiResp.Status == "ZERO_RESULTS" {
		return []model.Suggestion{}, nil
	}
	if err := apiStatusToError("suggest", apiResp.Status, apiResp.ErrorMessage); err != nil {
		return nil, err
	}

	suggestions := make([]model.Suggestion, 0, len(apiResp.Predictions))
	for _, p := range apiResp.Predictions {
		suggestions = append(suggestions, model.Suggestion{
			PlaceRef:    p.PlaceID,
			Name:        p.displayName(),
			Description: p.Description,
			Types:       p.Types,
		})
	}
	return suggestions, nil
}

// Details はPlace Details APIで場所参照IDを完全な情報に解決する
func (g *GoogleMapsProvider) Details(ctx context.Context, placeRef string) (*model.PlaceDetails, error) {
	params := url.Values{}
	params.Set("place_id", placeRef)
	params.Set("fields", "place_id,name,formatted_address,vicinity,geometry,types")
	params.Set("key", g.apiKey)

	var apiResp detailsResponse
	if err := g.getJSON(ctx, "details", "/place/details/json", params, &apiResp); err != nil {
		return nil, err
	}
	if err := apiStatusToError("details", apiResp.Status, apiResp.ErrorMessage); err != nil {
		return nil, err
	}

	result := apiResp.Result
	return &model.PlaceDetails{
		PlaceRef: result.PlaceID,
		Name:     result.Name,
		Address:  result.address(),
		Location: model.LatLng{
			Lat: result.Geometry.Location.Lat,
			Lng: result.Geometry.Location.Lng,
		},
		Types: result.Types,
	}, nil
}

// ReverseGeocode はGeocoding APIで座標から住所文字列を取得する
func (g *GoogleMapsProvider) ReverseGeocode(ctx context.Context, location model.LatLng) (string, error) {
	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%f,%f", location.Lat, location.Lng))
	params.Set("key", g.apiKey)

	var apiResp geocodeResponse
	if err := g.getJSON(ctx, "reverse_geocode", "/geocode/json", params, &apiResp); err != nil {
		return "", err
	}
	if err := apiStatusToError("reverse_geocode", apiResp.Status, apiResp.ErrorMessage); err != nil {
		return "", err
	}

	if len(apiResp.Results) == 0 {
		return "", model.NewUpstreamError(model.UpstreamNotFound, "reverse_geocode",
			"有効な住所が返されませんでした", nil)
	}
	return apiResp.Results[0].FormattedAddress, nil
}

// Matrix はDistance Matrix APIで距離・所要時間の行列を取得する。
// バッチ全体を1回の呼び出しで取得し、行列の行・列順は入力順を保つ
func (g *GoogleMapsProvider) Matrix(ctx context.Context, origins, destinations []model.LatLng) (*model.Matrix, error) {
	params := url.Values{}
	params.Set("origins", joinCoordinates(origins))
	params.Set("destinations", joinCoordinates(destinations))
	params.Set("key", g.apiKey)

	var apiResp matrixResponse
	if err := g.getJSON(ctx, "matrix", "/distancematrix/json", params, &apiResp); err != nil {
		return nil, err
	}
	if err := apiStatusToError("matrix", apiResp.Status, apiResp.ErrorMessage); err != nil {
		return nil, err
	}

	if len(apiResp.Rows) != len(origins) {
		return nil, model.NewUpstreamError(model.UpstreamTransient, "matrix",
			fmt.Sprintf("行数が起点数と一致しません: %d != %d", len(apiResp.Rows), len(origins)), nil)
	}

	rows := make([][]model.DistanceDuration, len(apiResp.Rows))
	for i, row := range apiResp.Rows {
		cells := make([]model.DistanceDuration, len(row.Elements))
		for j, element := range row.Elements {
			if element.Status != "OK" {
				// 到達不能なペアを0m・0秒のもっともらしい値として偽装しない
				cells[j] = model.DistanceDuration{Unreachable: true}
				continue
			}
			cells[j] = model.DistanceDuration{
				DistanceMeters:  element.Distance.Value,
				DurationSeconds: element.Duration.Value,
			}
		}
		rows[i] = cells
	}

	return &model.Matrix{
		Origins:      origins,
		Destinations: destinations,
		Rows:         rows,
	}, nil
}

// getJSON はHTTPリクエストを作成・実行し、JSONレスポンスをパースする
func (g *GoogleMapsProvider) getJSON(ctx context.Context, op, path string, params url.Values, out any) error {
	reqURL := fmt.Sprintf("%s%s?%s", g.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return model.NewUpstreamError(model.UpstreamInvalidInput, op, "リクエストの作成に失敗", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		// タイムアウト・ネットワーク障害はすべて一時的失敗として扱う
		if errors.Is(err, context.DeadlineExceeded) {
			return model.NewUpstreamError(model.UpstreamTransient, op, "呼び出しがタイムアウトしました", err)
		}
		return model.NewUpstreamError(model.UpstreamTransient, op, "APIリクエストに失敗", err)
	}
	defer resp.Body.Close()

	if err := httpStatusToError(op, resp.StatusCode); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return model.NewUpstreamError(model.UpstreamTransient, op, "JSONのパースに失敗", err)
	}
	return nil
}

// httpStatusToError はHTTPステータスコードをエラー分類へ対応付ける
func httpStatusToError(op string, statusCode int) error {
	switch {
	case statusCode == http.StatusOK:
		return nil
	case statusCode == http.StatusTooManyRequests:
		return model.NewUpstreamError(model.UpstreamRateLimited, op,
			fmt.Sprintf("レート制限に到達: HTTP %d", statusCode), nil)
	case statusCode >= 500:
		return model.NewUpstreamError(model.UpstreamTransient, op,
			fmt.Sprintf("APIからエラーステータスが返されました: HTTP %d", statusCode), nil)
	default:
		return model.NewUpstreamError(model.UpstreamInvalidInput, op,
			fmt.Sprintf("APIからエラーステータスが返されました: HTTP %d", statusCode), nil)
	}
}

// apiStatusToError はGoogle Maps APIのステータス文字列をエラー分類へ対応付ける
func apiStatusToError(op, status, errorMessage string) error {
	switch status {
	case "OK":
		return nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return model.NewUpstreamError(model.UpstreamNotFound, op, "該当するデータがありません", nil)
	case "OVER_QUERY_LIMIT", "RESOURCE_EXHAUSTED":
		return model.NewUpstreamError(model.UpstreamRateLimited, op, "クエリ上限に到達しました", nil)
	case "INVALID_REQUEST", "REQUEST_DENIED":
		return model.NewUpstreamError(model.UpstreamInvalidInput, op,
			fmt.Sprintf("リクエストが拒否されました: %s", errorMessage), nil)
	default:
		return model.NewUpstreamError(model.UpstreamTransient, op,
			fmt.Sprintf("APIステータス: %s %s", status, errorMessage), nil)
	}
}

// joinCoordinates は座標リストをAPIのパイプ区切り形式に変換する
func joinCoordinates(points []model.LatLng) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%f,%f", p.Lat, p.Lng)
	}
	return strings.Join(parts, "|")
}

// --- Google Maps APIのレスポンスをパースするための構造体 ---

type autocompleteResponse struct {
	Predictions  []prediction `json:"predictions"`
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

type prediction struct {
	PlaceID              string               `json:"place_id"`
	Description          string               `json:"description"`
	Types                []string             `json:"types"`
	StructuredFormatting structuredFormatting `json:"structured_formatting"`
}

// displayName は候補の表示名を優先順で解決する:
// 1. structured_formatting.main_text 2. description
func (p prediction) displayName() string {
	if p.StructuredFormatting.MainText != "" {
		return p.StructuredFormatting.MainText
	}
	return p.Description
}

type structuredFormatting struct {
	MainText string `json:"main_text"`
}

type detailsResponse struct {
	Result       placeResult `json:"result"`
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

type placeResult struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Vicinity         string   `json:"vicinity"`
	Geometry         geometry `json:"geometry"`
	Types            []string `json:"types"`
}

// address は住所を優先順で解決する: 1. formatted_address 2. vicinity
func (r placeResult) address() string {
	if r.FormattedAddress != "" {
		return r.FormattedAddress
	}
	return r.Vicinity
}

type geometry struct {
	Location coordinates `json:"location"`
}

type coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type geocodeResponse struct {
	Results      []geocodeResult `json:"results"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

type geocodeResult struct {
	FormattedAddress string `json:"formatted_address"`
}

type matrixResponse struct {
	Rows         []matrixRow `json:"rows"`
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

type matrixRow struct {
	Elements []matrixElement `json:"elements"`
}

type matrixElement struct {
	Distance valueField `json:"distance"`
	Duration valueField `json:"duration"`
	Status   string     `json:"status"`
}

type valueField struct {
	Value int `json:"value"`
}
