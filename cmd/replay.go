package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/rename-cli/internal/extract"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay extraction regression fixtures against the active rules",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("fixtures")
		fixtures, err := extract.LoadFixtures(path)
		if err != nil {
			return err
		}
		eng, err := initEngine(cfg)
		if err != nil {
			return err
		}

		mismatches := eng.Extractor.Replay(fixtures)
		printMismatches(cmd.OutOrStdout(), mismatches)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d/%d fixtures pass (rules %s)\n",
			len(fixtures)-len(mismatches), len(fixtures), eng.Rules.Version)
		if len(mismatches) > 0 {
			return eris.Errorf("%d fixture(s) failed", len(mismatches))
		}
		return nil
	},
}

func printMismatches(w io.Writer, ms []extract.Mismatch) {
	for _, m := range ms {
		_, _ = fmt.Fprintf(w, "FAIL %s\n", m.Fixture.Name)
		_, _ = fmt.Fprintf(w, "  want: name=%q date=%q reason=%q\n",
			m.Fixture.Want.NewName, m.Fixture.Want.ChangeDate, m.Fixture.Want.ChangeReason)
		_, _ = fmt.Fprintf(w, "  got:  name=%q date=%q reason=%q\n",
			m.Got.NewName, m.Got.ChangeDate, m.Got.ChangeReason)
	}
}

func init() {
	replayCmd.Flags().String("fixtures", "internal/extract/testdata/regression.yaml", "YAML fixture file")
	rootCmd.AddCommand(replayCmd)
}
