package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/rename-cli/internal/cache"
	"github.com/sells-group/rename-cli/internal/model"
	"github.com/sells-group/rename-cli/internal/roster"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and invalidate cached company records",
}

// -- cache list --

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		owner, err := openCache(ctx, cfg)
		if err != nil {
			return err
		}
		defer owner.Close() //nolint:errcheck

		all, err := owner.All(ctx)
		if err != nil {
			return eris.Wrap(err, "cache list")
		}

		status, _ := cmd.Flags().GetString("status")
		asJSON, _ := cmd.Flags().GetBool("json")
		keys := filterByStatus(all, model.Status(status))

		if asJSON {
			sel := make(map[string]model.CompanyRecord, len(keys))
			for _, k := range keys {
				sel[k] = all[k]
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(sel)
		}
		formatRecords(cmd.OutOrStdout(), keys, all)
		return nil
	},
}

// -- cache get --

var cacheGetCmd = &cobra.Command{
	Use:   "get <company-name>",
	Short: "Show the cached record for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, err := initEngine(cfg)
		if err != nil {
			return err
		}
		owner, err := openCache(ctx, cfg)
		if err != nil {
			return err
		}
		defer owner.Close() //nolint:errcheck

		key := eng.Normalizer.Normalize(args[0])
		rec, err := owner.Get(ctx, key)
		if err != nil {
			return eris.Wrap(err, "cache get")
		}
		if rec == nil {
			return eris.Errorf("no cached record for %q (key %q)", args[0], key)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(rec)
	},
}

// -- cache invalidate --

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate [company-name...]",
	Short: "Remove cached records so the next check researches them again",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		status, _ := cmd.Flags().GetString("status")
		if len(args) == 0 && status == "" {
			return eris.New("give company names or --status")
		}

		eng, err := initEngine(cfg)
		if err != nil {
			return err
		}
		owner, err := openCache(ctx, cfg)
		if err != nil {
			return err
		}
		defer owner.Close() //nolint:errcheck

		keys := make([]string, 0, len(args))
		for _, a := range args {
			keys = append(keys, eng.Normalizer.Normalize(a))
		}
		if status != "" {
			all, err := owner.All(ctx)
			if err != nil {
				return eris.Wrap(err, "cache invalidate")
			}
			keys = append(keys, filterByStatus(all, model.Status(status))...)
		}

		for _, k := range keys {
			if err := owner.Delete(ctx, k); err != nil {
				return eris.Wrapf(err, "cache invalidate %q", k)
			}
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "invalidated %d record(s)\n", len(keys))
		return nil
	},
}

// -- cache import --

var cacheImportCmd = &cobra.Command{
	Use:   "import <cache.json>",
	Short: "Copy records from a JSON cache file into the configured backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		src, err := cache.OpenJSON(args[0])
		if err != nil {
			return err
		}
		recs, err := src.All(ctx)
		if err != nil {
			return eris.Wrap(err, "cache import: read source")
		}

		dst, err := cache.Open(ctx, cacheOptions(cfg))
		if err != nil {
			return eris.Wrap(err, "open cache")
		}
		defer dst.Close() //nolint:errcheck

		n, err := cache.Import(ctx, dst, recs)
		if err != nil {
			return eris.Wrap(err, "cache import")
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "imported %d of %d record(s) into %s cache\n", n, len(recs), cfg.Cache.Backend)
		return nil
	},
}

// filterByStatus returns the sorted keys of records with status; an empty
// status selects every record.
func filterByStatus(all map[string]model.CompanyRecord, status model.Status) []string {
	keys := make([]string, 0, len(all))
	for k, rec := range all {
		if status == "" || rec.Status == status {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// formatRecords writes a table of the records under keys.
func formatRecords(out io.Writer, keys []string, all map[string]model.CompanyRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tSTATUS\tNEW_NAME\tDATE\tREASON")
	for _, k := range keys {
		rec := all[k]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", k, roster.StatusLabel(rec.Status), rec.NewName, rec.ChangeDate, rec.ChangeReason)
	}
	_ = w.Flush()
}

func init() {
	cacheListCmd.Flags().String("status", "", "only records with this status (changed, unchanged, needs_review, failed)")
	cacheListCmd.Flags().Bool("json", false, "print records as JSON")
	cacheInvalidateCmd.Flags().String("status", "", "invalidate every record with this status, e.g. failed")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheGetCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheCmd.AddCommand(cacheImportCmd)
	rootCmd.AddCommand(cacheCmd)
}
