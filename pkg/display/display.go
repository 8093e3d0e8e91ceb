package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"

	"github.com/kabkimd/userprov/pkg/copytree"
	"github.com/kabkimd/userprov/pkg/migrate"
	"github.com/kabkimd/userprov/pkg/types"
	"github.com/kabkimd/userprov/pkg/ui/styles"
)

// Status indicators
const (
	SuccessIndicator = "✓"
	ErrorIndicator   = "✗"
	DryRunNotice     = "DRY RUN MODE - No changes were made"
)

// Configure sets up colour handling for output written to w.
func Configure(w io.Writer) {
	styles.ConfigureColor(w)
	if !styles.ColorEnabled(w) {
		pterm.DisableColor()
	}
}

// RenderSummary renders a provisioning summary as a header, one table row
// per user and a totals line.
func RenderSummary(s *types.ProvisionSummary) string {
	var out strings.Builder

	header := "Provisioned users"
	if s.DryRun {
		header += " (dry run)"
	}
	out.WriteString(styles.Render("Header", header) + "\n")

	if len(s.Users) == 0 {
		out.WriteString(styles.Render("Muted", fmt.Sprintf("No users listed; %s is ready.", s.BaseOutputDir)) + "\n")
		return out.String()
	}

	data := pterm.TableData{{"", "User", "Destination", "Files", "Size"}}
	for _, u := range s.Users {
		indicator := styles.Render("Success", SuccessIndicator)
		if u.Failed() {
			indicator = styles.Render("Error", ErrorIndicator)
		}
		data = append(data, []string{
			indicator,
			styles.Render("User", u.Username),
			styles.Render("Path", u.Destination),
			strconv.Itoa(u.FilesCopied),
			humanize.Bytes(uint64(u.BytesCopied)),
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		// Fall back to plain rows
		for _, row := range data[1:] {
			table += strings.Join(row, "  ") + "\n"
		}
	}
	out.WriteString(strings.TrimRight(table, "\n") + "\n")

	failed := len(s.FailedUsers())
	totals := fmt.Sprintf("%d users, %d files, %s", len(s.Users), s.TotalFiles(), humanize.Bytes(uint64(s.TotalBytes())))
	if failed > 0 {
		totals += styles.Render("Error", fmt.Sprintf(", %d failed", failed))
	}
	out.WriteString(styles.Render("Muted", totals) + "\n")

	for _, u := range s.FailedUsers() {
		out.WriteString(styles.Render("Error", fmt.Sprintf("  %s %s: %s", ErrorIndicator, u.Username, u.Error)) + "\n")
	}

	if s.DryRun {
		out.WriteString("\n" + DryRunNotice + "\n")
	}
	return out.String()
}

// RenderEvent renders one copy event as `<action> <destination>`.
func RenderEvent(username string, ev copytree.Event) string {
	action := fmt.Sprintf("%-9s", ev.Action)
	dest := ev.Destination
	if ev.IsDir {
		dest += "/"
	}

	style := "Muted"
	switch ev.Action {
	case copytree.ActionCreate:
		style = "Success"
	case copytree.ActionOverwrite, copytree.ActionSkip:
		style = "Warning"
	}
	return fmt.Sprintf("  %s %s %s", styles.Render(style, action), styles.Render("User", username), styles.Render("Path", dest))
}

// RenderMigration renders a migration result.
func RenderMigration(r migrate.Result) string {
	var out strings.Builder

	out.WriteString(styles.Render("Header", "Migrated users") + "\n")
	out.WriteString(fmt.Sprintf("Found %d users, upserted %d", r.Total, r.Upserted))
	if len(r.Failures) > 0 {
		out.WriteString(styles.Render("Error", fmt.Sprintf(", %d failed", len(r.Failures))))
	}
	out.WriteString("\n")

	for _, f := range r.Failures {
		out.WriteString(styles.Render("Error", fmt.Sprintf("  %s %s: %v", ErrorIndicator, f.Username, f.Err)) + "\n")
	}
	return out.String()
}
