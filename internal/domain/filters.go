package domain

import (
	"fmt"
	"slices"
)

// Well-known upstream filter keys.
const (
	FilterSort       = "sort"
	FilterOrder      = "order"
	FilterAcceptance = "acceptance"
	FilterIndustry   = "industry"
	FilterEmployees  = "target_number_of_employees"
	FilterArea       = "target_area_search"
)

const (
	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

var SortFields = []string{
	"acceptance_end_datetime",
	"acceptance_start_datetime",
	"created_date",
}

var Industries = []string{
	"農業、林業", "漁業", "鉱業、採石業、砂利採取業", "建設業", "製造業",
	"電気・ガス・熱供給・水道業", "情報通信業", "運輸業、郵便業", "卸売業、小売業",
	"金融業、保険業", "不動産業、物品賃貸業", "学術研究、専門・技術サービス業",
	"宿泊業、飲食サービス業", "生活関連サービス業、娯楽業", "教育、学習支援業",
	"医療、福祉", "複合サービス事業", "サービス業（他に分類されないもの）",
}

var EmployeeRanges = []string{
	"従業員数の制約なし", "5名以下", "20名以下",
	"50名以下", "100名以下", "300名以下", "900名以下", "901名以上",
}

var Areas = []string{
	"全国", "北海道地方", "東北地方", "関東・甲信越地方",
	"東海・北陸地方", "近畿地方", "中国地方", "四国地方", "九州・沖縄地方",
}

// ValidateFilters checks the values of well-known keys. Unknown keys pass
// through untouched since the upstream owns its schema.
func ValidateFilters(filters map[string]string) error {
	for k, v := range filters {
		var allowed []string
		switch k {
		case FilterSort:
			allowed = SortFields
		case FilterOrder:
			allowed = []string{OrderAsc, OrderDesc}
		case FilterAcceptance:
			allowed = []string{"0", "1"}
		case FilterIndustry:
			allowed = Industries
		case FilterEmployees:
			allowed = EmployeeRanges
		case FilterArea:
			allowed = Areas
		default:
			continue
		}
		if !slices.Contains(allowed, v) {
			return fmt.Errorf("%w: %s=%q", ErrInvalidFilter, k, v)
		}
	}
	return nil
}
