// Package format renders subsidy record fields for people: dates in JST
// and amounts in yen.
package format

import (
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
)

const (
	NotSet     = "未設定"
	Untitled   = "無題"
	DateLayout = "2006年01月02日 15:04"

	FieldStart    = "acceptance_start_datetime"
	FieldEnd      = "acceptance_end_datetime"
	FieldMaxLimit = "subsidy_max_limit"
	FieldArea     = "target_area_search"
	FieldIndustry = "target_industry"
	FieldEmployee = "target_number_of_employees"

	// detail page on the public portal, keyed by record id
	PortalURL = "https://www.jgrants-portal.go.jp/subsidy/"
)

var (
	JST     = time.FixedZone("JST", 9*60*60)
	printer = message.NewPrinter(language.Japanese)
)

// Date formats key in JST. Missing values become NotSet; values that do not
// parse are returned unchanged.
func Date(r domain.Record, key string) string {
	raw := r.String(key)
	if raw == "" {
		return NotSet
	}
	t, ok := r.Time(key)
	if !ok {
		return raw
	}
	return t.In(JST).Format(DateLayout)
}

// Period is "start 〜 end".
func Period(r domain.Record) string {
	return Date(r, FieldStart) + " 〜 " + Date(r, FieldEnd)
}

// Yen formats key as a rounded yen amount with thousands separators.
func Yen(r domain.Record, key string) string {
	raw := r.String(key)
	if raw == "" {
		return NotSet
	}
	v, ok := r.Float(key)
	if !ok {
		return raw
	}
	return YenAmount(v)
}

func YenAmount(v float64) string {
	return printer.Sprintf("¥%d", int64(math.Round(v)))
}

func Number(n int) string {
	return printer.Sprintf("%d", n)
}

func Title(r domain.Record) string {
	if t := r.Title(); t != "" {
		return t
	}
	return Untitled
}

// Text returns key or NotSet.
func Text(r domain.Record, key string) string {
	if s := r.String(key); s != "" {
		return s
	}
	return NotSet
}

func DetailURL(r domain.Record) string {
	if id := r.ID(); id != "" {
		return PortalURL + id
	}
	return ""
}
