// Package samples holds small demo jobs used to check that the scheduler, the network and the
// terminal output of a host work.
package samples

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

const ruleWidth = 60

var (
	heading = color.New(color.Bold)
	success = color.New(color.FgGreen, color.Bold)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)
	dim = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

func banner(w io.Writer, title string, width int) {
	rule := strings.Repeat("=", width)
	fmt.Fprintln(w, rule)
	heading.Fprintln(w, title)
	fmt.Fprintln(w, rule)
}

func section(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
}
