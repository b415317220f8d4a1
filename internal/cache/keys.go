package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"Rumbo-App/internal/domain/model"
)

// GridCellSizeDeg ジオグリッドのセル1辺の大きさ（度）。約1.1kmに相当する。
// セルを小さくすると精度は上がるがヒット率が下がるトレードオフがあり、
// 調整はこの定数1箇所で行う
const GridCellSizeDeg = 0.01

// TextKey 自由テキスト入力からキーを導出する（オートコンプリート・経路複合文字列用）。
// 前後空白の除去・小文字化・連続空白の畳み込みで正規化する
func TextKey(category Category, text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.Join(strings.Fields(normalized), " ")
	return fmt.Sprintf("%s:%s", category, normalized)
}

// PlaceRefKey プロバイダの不透明な場所参照IDをそのままキーに使う（場所詳細用）。
// 同じ場所はどの経路で発見されても1エントリに収束する、最も効率の良い戦略
func PlaceRefKey(placeRef string) (string, error) {
	ref := strings.TrimSpace(placeRef)
	if ref == "" {
		return "", model.NewKeyError("場所参照IDが空です")
	}
	return fmt.Sprintf("%s:%s", CategoryPlaceDetails, ref), nil
}

// GeoKey 緯度経度をグリッドセルに量子化してキーを導出する（逆ジオコーディング用）。
// 同一セル内の2点はキャッシュ上は等価として扱われる
func GeoKey(category Category, location model.LatLng) (string, error) {
	if err := validateCoordinate(location); err != nil {
		return "", err
	}
	cellLat, cellLng := geoCell(location)
	return fmt.Sprintf("%s:gc:%d:%d", category, cellLat, cellLng), nil
}

// geoCell 緯度経度を固定サイズグリッドのセル番号に量子化する。
// セル境界は入力の精度だけで決まる決定的な関数
func geoCell(location model.LatLng) (int, int) {
	cellLat := int(math.Floor(location.Lat / GridCellSizeDeg))
	cellLng := int(math.Floor(location.Lng / GridCellSizeDeg))
	return cellLat, cellLng
}

// MatrixKey 起点リストと終点リストの正準表現からバッチキーを導出する（距離行列用）。
// 同じリストを同じ順序で渡せば必ず同じキーになる。順序は意味を持つため並べ替えない
func MatrixKey(origins, destinations []model.LatLng) (string, error) {
	if len(origins) == 0 || len(destinations) == 0 {
		return "", model.NewKeyError("起点・終点リストが空です")
	}

	var b strings.Builder
	if err := writePoints(&b, origins); err != nil {
		return "", err
	}
	b.WriteByte('|')
	if err := writePoints(&b, destinations); err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s:%s", CategoryDistanceMatrix, hex.EncodeToString(sum[:16])), nil
}

// writePoints 座標リストを固定精度で直列化する。再直列化しても同一表現になる
func writePoints(b *strings.Builder, points []model.LatLng) error {
	for i, p := range points {
		if err := validateCoordinate(p); err != nil {
			return err
		}
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.FormatFloat(p.Lat, 'f', 6, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Lng, 'f', 6, 64))
	}
	return nil
}

// validateCoordinate 不正な座標（NaN・範囲外）をKeyErrorで弾く。
// 正当なキーと衝突しうるキーを黙って生成してはならない
func validateCoordinate(location model.LatLng) error {
	if !location.InRange() {
		return model.NewKeyError(
			fmt.Sprintf("不正な座標です: lat=%v, lng=%v", location.Lat, location.Lng))
	}
	return nil
}
