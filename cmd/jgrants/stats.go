package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kitbuilder587/jgrants-search/internal/output"
	"github.com/kitbuilder587/jgrants-search/internal/stats"
)

var statsOpts queryFlags

var statsCmd = &cobra.Command{
	Use:   "stats <keyword>...",
	Short: "Summarize deadlines and amounts for a keyword",
	Long: `Run one search and summarize the returned records: deadlines this month,
next month and later, maximum amounts by size, and calls closing within
14 days.

Examples:
  jgrants stats ものづくり
  jgrants stats 省エネ --area 全国 --json`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsOpts.register(statsCmd.Flags())
}

func runStats(cmd *cobra.Command, args []string) error {
	query, err := statsOpts.query(args)
	if err != nil {
		return output.FromSearchError(err)
	}
	if err := statsOpts.applyOverrides(cmd.Flags()); err != nil {
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
	ov := stats.Compute(res, time.Now())
	if statsOpts.jsonOutput {
		return printer.JSON(ov)
	}
	return printer.Overview(query, ov)
}
