package telegram

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
	"github.com/kitbuilder587/jgrants-search/internal/format"
	"github.com/kitbuilder587/jgrants-search/internal/stats"
)

const (
	MaxMessageLength = 4096 // Telegram limit
	MaxShownRecords  = 10
	maxTitleRunes    = 80
)

func FormatSearchResult(query domain.SearchQuery, res *domain.SearchResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔍 <b>「%s」の検索結果: %s件</b>\n",
		html.EscapeString(query.Keyword()),
		format.Number(res.TotalCount),
	))
	if filters := formatFilters(query); filters != "" {
		sb.WriteString(filters)
		sb.WriteString("\n")
	}

	if len(res.Records) == 0 {
		sb.WriteString("\n検索条件に一致する補助金が見つかりませんでした。")
		return sb.String()
	}

	shown := res.Records
	if len(shown) > MaxShownRecords {
		shown = shown[:MaxShownRecords]
	}
	for i, r := range shown {
		sb.WriteString("\n")
		sb.WriteString(FormatRecord(i+1, r))
	}

	if rest := res.TotalCount - len(shown); rest > 0 {
		sb.WriteString(fmt.Sprintf("\nほか%s件。キーワードや条件を絞り込んでください。", format.Number(rest)))
	}
	return sb.String()
}

func FormatRecord(n int, r domain.Record) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%d. %s</b>\n", n, html.EscapeString(truncateRunes(format.Title(r), maxTitleRunes))))
	sb.WriteString(fmt.Sprintf("受付期間: %s\n", format.Period(r)))
	sb.WriteString(fmt.Sprintf("補助上限額: %s\n", html.EscapeString(format.Yen(r, format.FieldMaxLimit))))
	if area := r.String(format.FieldArea); area != "" {
		sb.WriteString(fmt.Sprintf("対象地域: %s\n", html.EscapeString(area)))
	}
	if industry := r.String(format.FieldIndustry); industry != "" {
		sb.WriteString(fmt.Sprintf("対象業種: %s\n", html.EscapeString(industry)))
	}
	if u := format.DetailURL(r); u != "" {
		sb.WriteString(fmt.Sprintf("<a href=\"%s\">詳細を見る</a>\n", html.EscapeString(u)))
	}
	return sb.String()
}

func FormatOverview(query domain.SearchQuery, ov stats.Overview) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 <b>「%s」の統計情報</b>\n", html.EscapeString(query.Keyword())))
	sb.WriteString(fmt.Sprintf("総件数: %s件（集計対象 %s件）\n\n",
		format.Number(ov.TotalCount), format.Number(ov.Analyzed)))

	sb.WriteString("<b>締切期間別</b>\n")
	sb.WriteString(fmt.Sprintf("今月: %d件\n来月: %d件\n再来月以降: %d件\n\n",
		ov.ByDeadline.ThisMonth, ov.ByDeadline.NextMonth, ov.ByDeadline.AfterNextMonth))

	sb.WriteString("<b>金額規模別</b>\n")
	sb.WriteString(fmt.Sprintf("100万円以下: %d件\n1000万円以下: %d件\n1億円以下: %d件\n1億円超: %d件\n",
		ov.ByAmount.Under1M, ov.ByAmount.Under10M, ov.ByAmount.Under100M, ov.ByAmount.Over100M))

	if len(ov.Urgent) > 0 {
		sb.WriteString("\n⚠️ <b>緊急締切案件（14日以内）</b>\n")
		for _, u := range ov.Urgent {
			sb.WriteString(fmt.Sprintf("• %s - 残り%d日 (ID: %s)\n",
				html.EscapeString(truncateRunes(u.Title, maxTitleRunes)), u.DaysLeft, html.EscapeString(u.ID)))
		}
	}
	return sb.String()
}

// FormatDebug is the footer shown to chats that turned on /debug.
func FormatDebug(res *domain.SearchResult) string {
	return fmt.Sprintf("<code>attempts=%d cache=%t records=%d total=%d</code>",
		res.Attempts, res.FromCache, len(res.Records), res.TotalCount)
}

func FormatErrorDebug(err error) string {
	var cerr *domain.ClientError
	if !errors.As(err, &cerr) {
		return fmt.Sprintf("<code>%s</code>", html.EscapeString(err.Error()))
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<code>kind=%s", cerr.Kind))
	if cerr.StatusCode != 0 {
		sb.WriteString(fmt.Sprintf(" status=%d", cerr.StatusCode))
	}
	if cerr.Attempts != 0 {
		sb.WriteString(fmt.Sprintf(" attempts=%d", cerr.Attempts))
	}
	if cerr.Message != "" {
		sb.WriteString("\nmessage: " + html.EscapeString(cerr.Message))
	}
	if cerr.Err != nil {
		sb.WriteString("\ncause: " + html.EscapeString(cerr.Err.Error()))
	}
	sb.WriteString("</code>")
	return sb.String()
}

func formatFilters(query domain.SearchQuery) string {
	filters := query.Filters()
	if len(filters) == 0 {
		return ""
	}
	// query.String renders filters in key order after the keyword
	s := strings.TrimPrefix(query.String(), query.Keyword())
	return "<i>条件:" + html.EscapeString(s) + "</i>"
}

// SplitMessage cuts text into chunks of at most maxLen bytes, preferring
// line or word boundaries outside HTML tags and never splitting a rune.
func SplitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var messages []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			messages = append(messages, text)
			break
		}

		splitPoint := findSafeSplitPoint(text, maxLen)
		if splitPoint <= 0 || splitPoint > len(text) {
			splitPoint = runeBoundary(text, maxLen)
		}

		messages = append(messages, text[:splitPoint])
		text = text[splitPoint:]
	}

	return messages
}

func findSafeSplitPoint(text string, maxLen int) int {
	// whitespace outside of a tag
	for i := maxLen - 1; i > maxLen/2; i-- {
		if i >= len(text) {
			continue
		}
		if isInsideHTMLTag(text, i) {
			continue
		}

		if text[i] == '\n' || text[i] == ' ' {
			return i + 1
		}
	}

	// inside a tag: cut right after it closes
	if maxLen < len(text) && isInsideHTMLTag(text, maxLen) {
		for i := maxLen; i < len(text); i++ {
			if text[i] == '>' {
				for j := i + 1; j < len(text) && j < i+50; j++ {
					if text[j] == '\n' || text[j] == ' ' {
						return j + 1
					}
				}
				return i + 1
			}
		}
	}

	for i := maxLen - 1; i > 0; i-- {
		if text[i] == ' ' || text[i] == '\n' {
			return i + 1
		}
	}

	// Japanese text often has no spaces at all
	return runeBoundary(text, maxLen)
}

// runeBoundary moves n back to the start of the rune it points into.
func runeBoundary(text string, n int) int {
	if n >= len(text) {
		return len(text)
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return n
}

func isInsideHTMLTag(text string, pos int) bool {
	if pos >= len(text) || pos < 0 {
		return false
	}
	for i := pos; i >= 0; i-- {
		if text[i] == '>' {
			return false
		}
		if text[i] == '<' {
			return true
		}
	}
	return false
}

func truncateRunes(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxRunes-1]) + "…"
}
