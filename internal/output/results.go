package output

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
	"github.com/kitbuilder587/jgrants-search/internal/format"
	"github.com/kitbuilder587/jgrants-search/internal/stats"
)

const maxTitleWidth = 48

// SearchResult prints up to limit records as a table. A limit <= 0 prints
// every record.
func (p *Printer) SearchResult(query domain.SearchQuery, res *domain.SearchResult, limit int) error {
	p.Header(fmt.Sprintf("「%s」の検索結果: %s件", query.Keyword(), format.Number(res.TotalCount)))
	if s := filterSummary(query); s != "" {
		p.Print("%s", p.Dim("条件: "+s))
	}

	if len(res.Records) == 0 {
		p.Print("検索条件に一致する補助金が見つかりませんでした。")
		return nil
	}

	shown := res.Records
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	table := NewTable(p.out, []string{"#", "ID", "タイトル", "受付終了", "補助上限額", "対象地域"})
	for i, r := range shown {
		table.AddRow(
			fmt.Sprint(i+1),
			r.ID(),
			truncateWidth(format.Title(r), maxTitleWidth),
			p.deadline(r),
			format.Yen(r, format.FieldMaxLimit),
			format.Text(r, format.FieldArea),
		)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render results: %w", err)
	}

	if rest := res.TotalCount - len(shown); rest > 0 {
		p.Print("ほか%s件", format.Number(rest))
	}
	return nil
}

// deadline highlights records closing within stats.UrgentWithin.
func (p *Printer) deadline(r domain.Record) string {
	text := format.Date(r, format.FieldEnd)
	end, ok := r.Time(format.FieldEnd)
	if !ok {
		return text
	}
	left := end.Sub(p.now())
	switch {
	case left < 0:
		return p.Dim(text)
	case left <= stats.UrgentWithin:
		return p.paint(color.FgRed, color.Bold).Sprint(text)
	default:
		return text
	}
}

func (p *Printer) Overview(query domain.SearchQuery, ov stats.Overview) error {
	p.Header(fmt.Sprintf("「%s」の統計情報", query.Keyword()))
	p.Print("総件数: %s件（集計対象 %s件）", format.Number(ov.TotalCount), format.Number(ov.Analyzed))

	p.Print("")
	table := NewTable(p.out, []string{"締切期間別", "件数"})
	table.AddRow("今月", fmt.Sprint(ov.ByDeadline.ThisMonth))
	table.AddRow("来月", fmt.Sprint(ov.ByDeadline.NextMonth))
	table.AddRow("再来月以降", fmt.Sprint(ov.ByDeadline.AfterNextMonth))
	if err := table.Render(); err != nil {
		return fmt.Errorf("render deadlines: %w", err)
	}

	p.Print("")
	table = NewTable(p.out, []string{"金額規模別", "件数"})
	table.AddRow("100万円以下", fmt.Sprint(ov.ByAmount.Under1M))
	table.AddRow("1000万円以下", fmt.Sprint(ov.ByAmount.Under10M))
	table.AddRow("1億円以下", fmt.Sprint(ov.ByAmount.Under100M))
	table.AddRow("1億円超", fmt.Sprint(ov.ByAmount.Over100M))
	if err := table.Render(); err != nil {
		return fmt.Errorf("render amounts: %w", err)
	}

	if len(ov.Urgent) == 0 {
		return nil
	}
	p.Print("")
	p.Print("%s", p.paint(color.FgRed, color.Bold).Sprint("緊急締切案件（14日以内）"))
	table = NewTable(p.out, []string{"ID", "タイトル", "締切", "残り日数"})
	for _, u := range ov.Urgent {
		table.AddRow(
			u.ID,
			truncateWidth(u.Title, maxTitleWidth),
			u.Deadline.In(format.JST).Format(format.DateLayout),
			fmt.Sprintf("%d日", u.DaysLeft),
		)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render urgent: %w", err)
	}
	return nil
}

// Debug prints call metadata to stderr so stdout stays parseable.
func (p *Printer) Debug(res *domain.SearchResult) {
	fmt.Fprintln(p.err, p.Dim(fmt.Sprintf("attempts=%d cache=%t records=%d total=%d",
		res.Attempts, res.FromCache, len(res.Records), res.TotalCount)))
}

func filterSummary(query domain.SearchQuery) string {
	if len(query.Filters()) == 0 {
		return ""
	}
	s := strings.TrimPrefix(query.String(), query.Keyword()+" ")
	return strings.Trim(s, "[]")
}
