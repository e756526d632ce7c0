package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/customer-import/internal/core"
	"github.com/JonMunkholm/customer-import/internal/database"
	"github.com/spf13/cobra"
)

func newTemplateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the blank import workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" || output == "-" {
				return core.WriteTemplate(cmd.OutOrStdout())
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := core.WriteTemplate(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "template written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", core.TemplateFileName, `Output file ("-" for stdout)`)
	return cmd
}

type validateOptions struct {
	offline bool
	json    bool
}

func newValidateCmd() *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Parse and validate a workbook without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := chooseBackend(cmd, opts.offline)
			if err != nil {
				return err
			}
			defer b.close()

			f, err := os.Open(args[0])
			if err != nil {
				return withCode(exitUsage, err)
			}
			defer f.Close()

			_, report, err := b.service().Analyze(cmd.Context(), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				writeReport(out, report)
			}

			if !report.CanImport {
				return withCode(exitBlocked, core.ErrImportBlocked)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Validate against empty storage instead of the database")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the report as JSON")
	return cmd
}

type runOptions struct {
	actor  string
	dryRun bool
	json   bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Validate and import a workbook",
		Long: `Validate and import a workbook.

Nothing is written when any row has an ERROR issue. With --dry-run the
import is applied to an in-memory copy of the database instead; rows with
errors are skipped so the summary shows what the rest would do.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			opts.actor = strings.TrimSpace(opts.actor)
			if opts.actor == "" {
				return withCode(exitUsage, core.ErrActorRequired)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.actor, "actor", os.Getenv("IMPORT_ACTOR"), "Operator id recorded in the audit log (default $IMPORT_ACTOR)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Apply to an in-memory copy of the database")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the report and summary as JSON")
	return cmd
}

func runImport(cmd *cobra.Command, path string, opts runOptions) error {
	ctx := cmd.Context()

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.close()

	f, err := os.Open(path)
	if err != nil {
		return withCode(exitUsage, err)
	}
	defer f.Close()

	svc := b.service()
	logger := slog.Default().With("file", filepath.Base(path), "actor_id", opts.actor, "dry_run", opts.dryRun)
	logger.Info("import requested")

	var (
		report  *core.ValidationReport
		summary core.ImportSummary
	)
	if opts.dryRun {
		report, summary, err = svc.DryRun(ctx, opts.actor, f)
	} else {
		report, summary, err = svc.Run(ctx, opts.actor, f)
	}

	out := cmd.OutOrStdout()
	if opts.json {
		if jerr := writeJSON(out, runResult{Report: report, Summary: summary, DryRun: opts.dryRun}); jerr != nil {
			return jerr
		}
	} else {
		if report != nil {
			writeReport(out, report)
		}
		if summary.BatchID != "" {
			writeSummary(out, summary, opts.dryRun)
		}
	}

	switch {
	case errors.Is(err, core.ErrImportBlocked):
		return withCode(exitBlocked, err)
	case err != nil:
		return err
	}
	return nil
}

type runResult struct {
	Report  *core.ValidationReport `json:"report"`
	Summary core.ImportSummary     `json:"summary"`
	DryRun  bool                   `json:"dryRun"`
}

func newMigrateCmd() *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the import tables and audit log if they are missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				_, err := io.WriteString(cmd.OutOrStdout(), database.Schema())
				return err
			}

			_, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.EnsureSchema(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the schema instead of applying it")
	return cmd
}

func chooseBackend(cmd *cobra.Command, offline bool) (*backend, error) {
	if offline {
		return offlineBackend(), nil
	}
	return openBackend(cmd.Context())
}
