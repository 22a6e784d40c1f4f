package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rename-cli/internal/config"
	"github.com/sells-group/rename-cli/internal/model"
	"github.com/sells-group/rename-cli/internal/pipeline"
	"github.com/sells-group/rename-cli/internal/roster"
	"github.com/sells-group/rename-cli/internal/search"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a company list for trade-name changes",
	Long:  "Reads company names from a CSV or XLSX file, researches each one and writes one result row per input row, in input order.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")
		limit, _ := cmd.Flags().GetInt("limit")

		outFormat, err := roster.ParseFormat(format, output)
		if err != nil {
			return err
		}
		if err := applyCheckFlags(cmd, cfg); err != nil {
			return err
		}

		names, err := roster.ReadNames(input)
		if err != nil {
			return err
		}
		names = applyLimit(names, limit)
		if len(names) == 0 {
			return eris.Errorf("no company names found in %s", input)
		}

		env, err := initResearch(ctx, cfg, "check")
		if err != nil {
			return err
		}
		defer env.Close()

		outcomes, sum := env.Pipeline.Batch(ctx, names)
		if err := roster.WriteFile(output, outFormat, records(outcomes)); err != nil {
			return err
		}

		printSummary(cmd.ErrOrStderr(), sum, output)
		if ctx.Err() != nil {
			return eris.New("check interrupted; rerun to resume from the cache")
		}
		return nil
	},
}

// applyCheckFlags overrides configuration from command-line flags.
func applyCheckFlags(cmd *cobra.Command, c *config.Config) error {
	if cmd.Flags().Changed("concurrency") {
		n, _ := cmd.Flags().GetInt("concurrency")
		c.Batch.MaxConcurrentCompanies = n
	}
	if fixture, _ := cmd.Flags().GetString("offline"); fixture != "" {
		c.Search.Provider = search.BackendOffline
		c.Search.OfflineFixture = fixture
	}
	if noFetch, _ := cmd.Flags().GetBool("no-fetch"); noFetch {
		c.Fetch.Enabled = false
	}
	return nil
}

// applyLimit keeps the first limit names; limit <= 0 keeps all.
func applyLimit(names []string, limit int) []string {
	if limit > 0 && len(names) > limit {
		return names[:limit]
	}
	return names
}

func records(outcomes []pipeline.Outcome) []model.CompanyRecord {
	out := make([]model.CompanyRecord, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Record
	}
	return out
}

func printSummary(w io.Writer, sum pipeline.Summary, output string) {
	_, _ = fmt.Fprintf(w, "run %s: %d companies in %s\n", sum.RunID, sum.Total, sum.Elapsed.Round(1e9))
	_, _ = fmt.Fprintf(w, "  changed:      %d\n", sum.Changed)
	_, _ = fmt.Fprintf(w, "  unchanged:    %d\n", sum.Unchanged)
	_, _ = fmt.Fprintf(w, "  needs review: %d\n", sum.NeedsReview)
	_, _ = fmt.Fprintf(w, "  duplicates:   %d\n", sum.Duplicates)
	_, _ = fmt.Fprintf(w, "  failed:       %d\n", sum.Failed)
	_, _ = fmt.Fprintf(w, "  cache hits:   %d\n", sum.CacheHits)
	_, _ = fmt.Fprintf(w, "results written to %s\n", output)
	if sum.Failed > 0 {
		zap.L().Warn("some companies failed; invalidate with `cache invalidate --status failed` and rerun",
			zap.Int("failed", sum.Failed))
	}
}

func init() {
	checkCmd.Flags().StringP("input", "i", "", "company list (CSV or XLSX)")
	checkCmd.Flags().StringP("output", "o", "rename_results.xlsx", "result file")
	checkCmd.Flags().String("format", "", "output format: csv, xlsx or json (default from --output extension)")
	checkCmd.Flags().Int("concurrency", 0, "companies researched in parallel (default from config)")
	checkCmd.Flags().Int("limit", 0, "process at most this many names (0 = all)")
	checkCmd.Flags().String("offline", "", "answer searches from a JSON fixture instead of the network")
	checkCmd.Flags().Bool("no-fetch", false, "decide from search snippets only")
	_ = checkCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(checkCmd)
}
