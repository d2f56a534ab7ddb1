package telegram

import (
	"strings"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
)

// short names accepted in chat for the upstream filter keys
var filterAliases = map[string]string{
	"industry":   domain.FilterIndustry,
	"業種":         domain.FilterIndustry,
	"employees":  domain.FilterEmployees,
	"従業員数":       domain.FilterEmployees,
	"area":       domain.FilterArea,
	"地域":         domain.FilterArea,
	"sort":       domain.FilterSort,
	"order":      domain.FilterOrder,
	"acceptance": domain.FilterAcceptance,
}

// ParseSearchArgs splits "IT 導入 area=全国 order=desc" into the keyword
// "IT 導入" and its filters. Tokens of the form key=value are filters; the
// rest, in order, make up the keyword.
func ParseSearchArgs(text string) (keyword string, filters map[string]string) {
	var words []string
	for _, tok := range strings.Fields(text) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok || key == "" {
			words = append(words, tok)
			continue
		}
		if filters == nil {
			filters = make(map[string]string)
		}
		key = canonicalFilterKey(key)
		filters[key] = canonicalFilterValue(key, value)
	}
	return strings.Join(words, " "), filters
}

func canonicalFilterKey(key string) string {
	if k, ok := filterAliases[strings.ToLower(key)]; ok {
		return k
	}
	return key
}

func canonicalFilterValue(key, value string) string {
	switch key {
	case domain.FilterOrder:
		return strings.ToUpper(value)
	case domain.FilterAcceptance:
		switch strings.ToLower(value) {
		case "true", "yes", "on":
			return "1"
		case "false", "no", "off", "all":
			return "0"
		}
	}
	return value
}

func normalizeSpaces(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
