package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kalmap/internal/diagfmt"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [file.k]",
	Short: "Compile a source file without running it",
	Long: `Check parses and compiles every definition and top-level expression,
verifies the resulting module and reports diagnostics. Nothing is executed
and no device is touched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "diagnostics format (pretty|json)")
	checkCmd.Flags().Bool("positions", true, "include line and column in json output")
	checkCmd.Flags().Bool("relative", false, "print paths relative to the working directory")
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	positions, err := cmd.Flags().GetBool("positions")
	if err != nil {
		return err
	}
	relative, err := cmd.Flags().GetBool("relative")
	if err != nil {
		return err
	}
	u, err := loadUnit(cmd, args)
	if err != nil {
		return err
	}
	res, err := u.Check()
	if err != nil {
		return err
	}

	mode, base := diagfmt.PathModeAuto, ""
	if relative {
		mode = diagfmt.PathModeRelative
		if base, err = os.Getwd(); err != nil {
			return err
		}
	}
	u.Bag.Sort()

	if format == "json" {
		err = diagfmt.JSON(cmd.OutOrStdout(), u.Bag, u.FileSet, diagfmt.JSONOpts{
			IncludePositions: positions,
			IncludeNotes:     true,
			PathMode:         mode,
			BaseDir:          base,
		})
	} else {
		diagfmt.Pretty(cmd.ErrOrStderr(), u.Bag, u.FileSet, diagfmt.PrettyOpts{
			Color:     useColor(cmd, os.Stderr),
			Context:   1,
			PathMode:  mode,
			BaseDir:   base,
			ShowNotes: true,
		})
		fmt.Fprintf(cmd.OutOrStdout(), "%d definitions, %d externs, %d expressions\n",
			res.Definitions, res.Externs, res.Expressions)
	}
	if err != nil {
		return err
	}
	if u.Bag.HasErrors() {
		return exitError{code: 1}
	}
	return nil
}
