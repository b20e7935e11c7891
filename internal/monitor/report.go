package monitor

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/scylladb/termtables"

	"github.com/snadboy/homelab-scripts/internal/util"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

// Print writes the service table and the issue and action lists.
func (r *Report) Print(w io.Writer) {
	view := termtables.CreateTable()
	view.AddHeaders("Service", "Status", "Version", "Notes")
	for _, st := range r.Services {
		status := okStyle.Render("OK")
		if !st.Reachable {
			status = failStyle.Render("UNREACHABLE")
		} else if len(st.Issues) > 0 {
			status = failStyle.Render(fmt.Sprintf("%d ISSUES", len(st.Issues)))
		}
		view.AddRow(st.Name, status, st.Version, util.Truncate(strings.Join(st.Issues, "; "), 60))
	}
	fmt.Fprintln(w, view.Render())

	if r.Healthy() {
		fmt.Fprintln(w, okStyle.Render("All services healthy!"))
	} else {
		fmt.Fprintln(w, "Issues found:")
		for _, issue := range r.Issues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	}
	if len(r.Actions) > 0 {
		fmt.Fprintln(w, "Actions taken:")
		for _, action := range r.Actions {
			fmt.Fprintf(w, "  - %s\n", action)
		}
	}
	if r.DryRun {
		fmt.Fprintln(w, dimStyle.Render("(dry run: no notifications sent, no state saved)"))
	}
}
