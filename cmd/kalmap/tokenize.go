package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kalmap/internal/diagfmt"
	"kalmap/internal/driver"
)

const defaultMaxDiagnostics = 100

var tokenizeCmd = &cobra.Command{
	Use:   "tokenize [flags] [file.k]",
	Short: "Print the tokens of a source file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTokenize,
}

func init() {
	tokenizeCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

// outputFormat reads --format and accepts only pretty or json.
func outputFormat(cmd *cobra.Command) (string, error) {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return "", err
	}
	switch format {
	case "pretty", "json":
		return format, nil
	}
	return "", fmt.Errorf("unknown format %q", format)
}

// loadUnit reads the file argument, or stdin for none or "-".
func loadUnit(cmd *cobra.Command, args []string) (*driver.Unit, error) {
	limit, err := cmd.Flags().GetInt("max-diagnostics")
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMaxDiagnostics
	}
	if len(args) == 0 || args[0] == "-" {
		return driver.LoadReader("<stdin>", cmd.InOrStdin(), limit)
	}
	return driver.LoadFile(args[0], limit)
}

func runTokenize(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	u, err := loadUnit(cmd, args)
	if err != nil {
		return err
	}
	toks := u.Tokens()

	// токены в stdout, диагностика в stderr
	if u.Bag.Len() > 0 {
		diagfmt.Pretty(cmd.ErrOrStderr(), u.Bag, u.FileSet, diagfmt.PrettyOpts{
			Color:   useColor(cmd, os.Stderr),
			Context: 2,
		})
	}
	if format == "json" {
		return diagfmt.FormatTokensJSON(cmd.OutOrStdout(), toks)
	}
	return diagfmt.FormatTokensPretty(cmd.OutOrStdout(), toks, u.FileSet)
}
