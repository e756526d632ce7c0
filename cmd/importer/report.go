package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/JonMunkholm/customer-import/internal/core"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeReport prints per-sheet counts followed by every issue.
func writeReport(w io.Writer, report *core.ValidationReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	for _, sheet := range report.Sheets() {
		fmt.Fprintf(tw, "%s:\t%d read\t%d valid\t%d with warnings\t%d with errors\n",
			sheet.Sheet, sheet.RowsRead, sheet.RowsValid, sheet.RowsWithWarnings, sheet.RowsWithErrors)
	}
	tw.Flush()

	for _, sheet := range report.Sheets() {
		if len(sheet.Issues) == 0 {
			continue
		}
		fmt.Fprintln(w)
		for _, issue := range sheet.Issues {
			field := issue.Field
			if field == "" {
				field = "-"
			}
			fmt.Fprintf(tw, "%s\trow %d\t%s\t%s\t%s\n",
				issue.Sheet, issue.RowNumber, issue.Severity, field, issue.Message)
		}
		tw.Flush()
	}

	fmt.Fprintln(w)
	if report.CanImport {
		fmt.Fprintln(w, "import allowed: yes")
	} else {
		fmt.Fprintln(w, "import allowed: no (fix the ERROR rows and try again)")
	}
}

func writeSummary(w io.Writer, s core.ImportSummary, dryRun bool) {
	title := "import summary"
	if dryRun {
		title = "dry run summary (nothing was written)"
	}
	fmt.Fprintf(w, "\n%s, batch %s\n", title, s.BatchID)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "customers\t%d created\t%d updated\t%d deleted\n",
		s.CustomersCreated, s.CustomersUpdated, s.CustomersDeleted)
	fmt.Fprintf(tw, "contacts\t%d created\t%d updated\t%d deleted\n",
		s.ContactsCreated, s.ContactsUpdated, s.ContactsDeleted)
	fmt.Fprintf(tw, "payer links\t%d created\t%d updated\t%d deleted\n",
		s.PayerLinksCreated, s.PayerLinksUpdated, s.PayerLinksDeleted)
	fmt.Fprintf(tw, "contact links\t%d created\n", s.ContactLinksCreated)
	fmt.Fprintf(tw, "teacher assignments\t%d created\n", s.TeacherAssignmentsCreated)
	fmt.Fprintf(tw, "rows skipped\t%d\n", s.RowsSkipped)
	if s.AuditFailures > 0 {
		fmt.Fprintf(tw, "audit failures\t%d\n", s.AuditFailures)
	}
	tw.Flush()

	for _, o := range s.Outcomes {
		if o.Status == core.RowApplied {
			continue
		}
		fmt.Fprintf(w, "  %s row %d %s: %s\n", o.Sheet, o.RowNumber, o.Status, o.Reason)
	}
	if s.Error != "" {
		fmt.Fprintf(w, "stopped early: %s\n", s.Error)
	}
}
