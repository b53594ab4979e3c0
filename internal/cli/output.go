package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matthewdavidson09/onboard-sync/internal/audit"
	"github.com/matthewdavidson09/onboard-sync/internal/hrsync"
	"github.com/matthewdavidson09/onboard-sync/internal/schedule"
	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSyncResults(w io.Writer, format string, mode hrsync.Mode, results []hrsync.SyncResult, runErr error) error {
	summary := hrsync.Summarize(results)
	if format == "json" {
		out := struct {
			Mode    hrsync.Mode         `json:"mode"`
			Summary hrsync.Summary      `json:"summary"`
			Results []hrsync.SyncResult `json:"results"`
			Error   string              `json:"error,omitempty"`
		}{Mode: mode, Summary: summary, Results: results}
		if runErr != nil {
			out.Error = runErr.Error()
		}
		return printJSON(w, out)
	}

	table := newTable(w, "EMPLOYEE", "NAME", "ACTION", "CHANGES", "ERROR")
	for _, r := range results {
		table.Append([]string{r.EmployeeID, r.DisplayName, string(r.Action), r.Diff.String(), r.Error})
	}
	table.Render()
	_, err := fmt.Fprintf(w, "\n%s: %d employee(s), %d updated, %d would update, %d skipped, %d failed\n",
		mode, summary.Total, summary.Updated, summary.WouldUpdate, summary.Skipped, summary.Failed)
	return err
}

func printSchedule(w io.Writer, format string, state schedule.State) error {
	if format == "json" {
		return printJSON(w, state)
	}
	table := newTable(w, "ENABLED", "FREQUENCY", "NEXT RUN", "LAST RUN")
	table.Append([]string{fmt.Sprintf("%t", state.Enabled), string(state.Frequency), formatOptionalTime(state.NextRun), formatOptionalTime(state.LastRun)})
	table.Render()
	return nil
}

func printAuditEvents(w io.Writer, format string, events []audit.Event) error {
	if format == "json" {
		return printJSON(w, events)
	}
	table := newTable(w, "TIME", "EMPLOYEE", "ACTION", "STATUS", "BY", "MESSAGE")
	for _, e := range events {
		table.Append([]string{e.Timestamp.UTC().Format(time.RFC3339), e.EmployeeID, e.ActionType, e.Status, e.PerformedBy, e.Message})
	}
	table.Render()
	return nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
