package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/rename-cli/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the active rule table",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and compile the active rule table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tbl, err := rules.Load(cfg.Rules.Path)
		if err != nil {
			return err
		}
		src := cfg.Rules.Path
		if src == "" {
			src = "built-in"
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "rules %s (%s): ok\n", tbl.Version, src)
		return nil
	},
}

var rulesDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the active rule table as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tbl, err := rules.Load(cfg.Rules.Path)
		if err != nil {
			return err
		}
		out, err := tbl.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesDumpCmd)
	rootCmd.AddCommand(rulesCmd)
}
