package model

// PlaceCategory アプリ内部で扱う場所カテゴリ
type PlaceCategory string

// CategoryConstants アプリケーションで使用するカテゴリの定数
const (
	// CategoryNone は「未選択」番兵専用のカテゴリ。検索フレーズを持たない
	CategoryNone PlaceCategory = "none"

	// CategoryUserProposed はタグから推論できなかった場合の汎用カテゴリ
	CategoryUserProposed PlaceCategory = "user_proposed"

	CategoryMall        PlaceCategory = "mall"
	CategoryAirport     PlaceCategory = "airport"
	CategoryHospital    PlaceCategory = "hospital"
	CategoryHotel       PlaceCategory = "hotel"
	CategoryRestaurant  PlaceCategory = "restaurant"
	CategoryPark        PlaceCategory = "park"
	CategoryUniversity  PlaceCategory = "university"
	CategorySupermarket PlaceCategory = "supermarket"
	CategoryGasStation  PlaceCategory = "gas_station"
)

// LookupNeeded このカテゴリで上流検索を行う必要があるかどうか。
// CategoryNone は番兵専用なので一切の検索を省略する
func (c PlaceCategory) LookupNeeded() bool {
	return c != CategoryNone
}

// CategoryPhrases カテゴリごとの検索フレーズ。
// Generic はそのまま使える汎用形、Regional は %s に都市名を埋め込む地域形
type CategoryPhrases struct {
	Generic  []string
	Regional []string
}

// categoryPhraseTable カテゴリ → 検索フレーズ候補のマッピング（スペイン語圏向け）
var categoryPhraseTable = map[PlaceCategory]CategoryPhrases{
	CategoryMall: {
		Generic:  []string{"centro comercial"},
		Regional: []string{"centro comercial en %s"},
	},
	CategoryAirport: {
		Generic:  []string{"aeropuerto"},
		Regional: []string{"aeropuerto de %s"},
	},
	CategoryHospital: {
		Generic:  []string{"hospital", "clinica"},
		Regional: []string{"hospital en %s"},
	},
	CategoryHotel: {
		Generic:  []string{"hotel"},
		Regional: []string{"hotel en %s"},
	},
	CategoryRestaurant: {
		Generic:  []string{"restaurante"},
		Regional: []string{"restaurante en %s"},
	},
	CategoryPark: {
		Generic:  []string{"parque"},
		Regional: []string{"parque en %s"},
	},
	CategoryUniversity: {
		Generic:  []string{"universidad"},
		Regional: []string{"universidad en %s"},
	},
	CategorySupermarket: {
		Generic:  []string{"supermercado"},
		Regional: []string{"supermercado en %s"},
	},
	CategoryGasStation: {
		Generic:  []string{"estacion de gasolina", "bomba de gasolina"},
		Regional: []string{"gasolinera en %s"},
	},
}

// GetCategoryPhrases カテゴリの検索フレーズ候補を取得する。
// 未知のカテゴリは ok=false を返し、呼び出し側は番兵のみの結果に落とす
func GetCategoryPhrases(category PlaceCategory) (CategoryPhrases, bool) {
	phrases, ok := categoryPhraseTable[category]
	return phrases, ok
}

// CategoryDisplayNameMap カテゴリIDから表示名（スペイン語）へのマッピング
var CategoryDisplayNameMap = map[PlaceCategory]string{
	CategoryNone:         "Ninguno",
	CategoryUserProposed: "Otro lugar",
	CategoryMall:         "Centro comercial",
	CategoryAirport:      "Aeropuerto",
	CategoryHospital:     "Hospital",
	CategoryHotel:        "Hotel",
	CategoryRestaurant:   "Restaurante",
	CategoryPark:         "Parque",
	CategoryUniversity:   "Universidad",
	CategorySupermarket:  "Supermercado",
	CategoryGasStation:   "Gasolinera",
}

// GetCategoryDisplayName カテゴリIDから表示名を取得する
func GetCategoryDisplayName(category PlaceCategory) string {
	if name, ok := CategoryDisplayNameMap[category]; ok {
		return name
	}
	return string(category) // デフォルトはそのまま返す
}

// categoryInference プロバイダのタイプタグ → 内部カテゴリの対応（優先度順）。
// 上にある行ほど優先される。複数タグを持つ場所は最初に一致した行で決まる
var categoryInference = []struct {
	Tag      string
	Category PlaceCategory
}{
	{"airport", CategoryAirport},
	{"hospital", CategoryHospital},
	{"shopping_mall", CategoryMall},
	{"university", CategoryUniversity},
	{"lodging", CategoryHotel},
	{"supermarket", CategorySupermarket},
	{"grocery_or_supermarket", CategorySupermarket},
	{"gas_station", CategoryGasStation},
	{"park", CategoryPark},
	{"restaurant", CategoryRestaurant},
	{"food", CategoryRestaurant},
}

// InferCategory プロバイダのタイプタグ列から内部カテゴリを推論する。
// どの行にも一致しない場合は CategoryUserProposed に落ちる。
// CategoryNone（番兵専用）には決して推論されない
func InferCategory(tags []string) PlaceCategory {
	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[tag] = true
	}

	for _, rule := range categoryInference {
		if tagSet[rule.Tag] {
			return rule.Category
		}
	}
	return CategoryUserProposed
}

// GetAllSearchableCategories 検索フレーズを持つ全カテゴリの一覧を取得する
func GetAllSearchableCategories() []PlaceCategory {
	categories := make([]PlaceCategory, 0, len(categoryPhraseTable))
	for category := range categoryPhraseTable {
		categories = append(categories, category)
	}
	return categories
}
