package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
	"github.com/kitbuilder587/jgrants-search/internal/output"
)

// queryFlags are shared by search and stats.
type queryFlags struct {
	industry   string
	employees  string
	area       string
	sort       string
	order      string
	all        bool
	filters    []string
	timeout    time.Duration
	maxRetries int
	insecure   bool
	jsonOutput bool
}

func (f *queryFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.industry, "industry", "", "target industry, e.g. 製造業")
	fs.StringVar(&f.employees, "employees", "", "employee range, e.g. 20名以下")
	fs.StringVar(&f.area, "area", "", "target area, e.g. 全国")
	fs.StringVar(&f.sort, "sort", "", "sort field (acceptance_end_datetime, acceptance_start_datetime, created_date)")
	fs.StringVar(&f.order, "order", "", "sort order: asc or desc")
	fs.BoolVar(&f.all, "all", false, "include subsidies that are no longer accepting applications")
	fs.StringArrayVar(&f.filters, "filter", nil, "extra upstream parameter as key=value (repeatable)")
	fs.DurationVar(&f.timeout, "timeout", 0, "per-attempt timeout (default from JGRANTS_TIMEOUT_SEC)")
	fs.IntVar(&f.maxRetries, "max-retries", 0, "retries after the first attempt, 0-10 (default from JGRANTS_MAX_RETRIES)")
	fs.BoolVar(&f.insecure, "insecure", false, "skip TLS certificate verification")
	fs.BoolVar(&f.jsonOutput, "json", false, "output as JSON")
}

// query builds a validated query from the positional keyword words and
// the filter flags. Failures are validation ClientErrors.
func (f *queryFlags) query(args []string) (domain.SearchQuery, error) {
	filters := make(map[string]string)
	for _, kv := range f.filters {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return domain.SearchQuery{}, domain.NewValidationError(
				fmt.Errorf("%w: --filter %q is not key=value", domain.ErrInvalidFilter, kv))
		}
		filters[k] = v
	}
	set := func(key, value string) {
		if value != "" {
			filters[key] = value
		}
	}
	set(domain.FilterIndustry, f.industry)
	set(domain.FilterEmployees, f.employees)
	set(domain.FilterArea, f.area)
	set(domain.FilterSort, f.sort)
	set(domain.FilterOrder, strings.ToUpper(f.order))
	if f.all {
		filters[domain.FilterAcceptance] = "0"
	}

	if err := domain.ValidateFilters(filters); err != nil {
		return domain.SearchQuery{}, domain.NewValidationError(err)
	}
	return domain.NewSearchQuery(strings.Join(args, " "), filters)
}

// applyOverrides copies explicitly set flags onto the loaded config and
// validates the result again.
func (f *queryFlags) applyOverrides(fs *pflag.FlagSet) error {
	if fs.Changed("timeout") {
		cfg.Upstream.Timeout = f.timeout
	}
	if fs.Changed("max-retries") {
		cfg.Upstream.MaxRetries = f.maxRetries
	}
	if fs.Changed("insecure") {
		cfg.Upstream.InsecureSkipVerify = f.insecure
	}
	if err := cfg.Validate(); err != nil {
		return &output.CLIError{
			Summary:  "invalid flag value",
			Detail:   err.Error(),
			ExitCode: output.ExitUsageError,
			Err:      err,
		}
	}
	return nil
}

type searchOutput struct {
	Keyword    string            `json:"keyword"`
	Filters    map[string]string `json:"filters,omitempty"`
	TotalCount int               `json:"total_count"`
	Records    []domain.Record   `json:"records"`
}

var (
	searchOpts queryFlags
	searchMax  int
)

var searchCmd = &cobra.Command{
	Use:   "search <keyword>...",
	Short: "Search subsidies by keyword",
	Long: `Search the Jグランツ subsidy catalogue.

The keyword must be at least 2 characters. By default only subsidies that
are currently accepting applications are returned, sorted by deadline.

Examples:
  jgrants search IT導入
  jgrants search 事業 承継 --area 近畿地方 --employees 20名以下
  jgrants search ものづくり --sort created_date --order desc --json
  jgrants search 省エネ --filter use_purpose=設備整備・IT導入をしたい`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchOpts.register(searchCmd.Flags())
	searchCmd.Flags().IntVarP(&searchMax, "limit", "n", 20, "records to show in the table, 0 for all")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query, err := searchOpts.query(args)
	if err != nil {
		return output.FromSearchError(err)
	}
	if err := searchOpts.applyOverrides(cmd.Flags()); err != nil {
		return err
	}

	svc, stop := newSearchService(cfg, logger, nil)
	defer stop()

	res, err := svc.Search(cmd.Context(), query)
	if err != nil {
		return output.FromSearchError(err)
	}

	if debug {
		printer.Debug(res)
	}
	if searchOpts.jsonOutput {
		return printer.JSON(searchOutput{
			Keyword:    query.Keyword(),
			Filters:    query.Filters(),
			TotalCount: res.TotalCount,
			Records:    res.Records,
		})
	}
	return printer.SearchResult(query, res, searchMax)
}
