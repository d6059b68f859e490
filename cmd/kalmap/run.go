package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"kalmap/internal/driver"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Compile and run a Kaleidoscope program",
	Long: `Run reads top-level definitions, externs and expressions from file, or
from stdin when file is omitted or "-", and evaluates them one by one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProgram,
}

func init() {
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("dump-ir", false, "print every function as it is compiled")
	cmd.Flags().Bool("dump-module", false, "print the whole module at end of input")
	cmd.Flags().String("emit-ll", "", "write the module as LLVM IR to this file at end of input")
}

func runProgram(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	cleanupTrace, err := setupTracing(cmd, cfg.Trace)
	if err != nil {
		return err
	}
	defer cleanupTrace()

	in, name, fromStdin := io.Reader(os.Stdin), "<stdin>", true
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in, name, fromStdin = f, args[0], false
	}

	pf := cmd.Root().PersistentFlags()
	quiet, _ := pf.GetBool("quiet")
	timings, _ := pf.GetBool("timings")
	dumpIR, _ := cmd.Flags().GetBool("dump-ir")
	dumpModule, _ := cmd.Flags().GetBool("dump-module")
	emitLL, _ := cmd.Flags().GetString("emit-ll")

	session, err := driver.NewSession(driver.Options{
		Config:     cfg,
		Stdout:     cmd.OutOrStdout(),
		Stderr:     cmd.ErrOrStderr(),
		Prompt:     !quiet && fromStdin && driver.IsInteractive(os.Stdin),
		Color:      useColor(cmd, os.Stderr),
		DumpIR:     dumpIR,
		DumpModule: dumpModule,
		EmitLL:     emitLL,
		Timings:    timings,
	})
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	res, err := session.Run(cmd.Context(), name, in)
	if err != nil {
		return err
	}
	if res.Fatal != nil {
		return exitError{code: 1}
	}
	return nil
}
