package main

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run fact extraction on a text and show every rule attempt",
	Long:  "Reads a press-release text from --text or stdin and prints the extraction trace for the company named by --old as JSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		old, _ := cmd.Flags().GetString("old")
		text, _ := cmd.Flags().GetString("text")
		if text == "" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return eris.Wrap(err, "read stdin")
			}
			text = string(data)
		}
		if strings.TrimSpace(text) == "" {
			return eris.New("no text given; use --text or pipe it on stdin")
		}

		eng, err := initEngine(cfg)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(eng.Extractor.Explain(text, old))
	},
}

func init() {
	extractCmd.Flags().String("old", "", "current company name")
	extractCmd.Flags().String("text", "", "text to extract from (default stdin)")
	_ = extractCmd.MarkFlagRequired("old")
	rootCmd.AddCommand(extractCmd)
}
