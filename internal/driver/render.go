package driver

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"smelt/internal/asm"
	"smelt/internal/diag"
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	infoColor = color.New(color.FgCyan)

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// RenderResult writes one input's diagnostics and, on success, its listing.
func RenderResult(w io.Writer, res *Result, colorize bool) error {
	color.NoColor = !colorize

	for _, d := range res.Diags.Items() {
		var c *color.Color
		switch d.Severity {
		case diag.SevError:
			c = errColor
		case diag.SevWarning:
			c = warnColor
		default:
			c = infoColor
		}
		fmt.Fprintf(w, "%s %s[%s]: %s\n", res.Path, c.Sprint(d.Severity), d.Code, d.Message)
	}
	if res.Listing == nil {
		return nil
	}
	return asm.WriteListing(w, res.Listing)
}

// RenderSummary writes a closing card over all compiled inputs.
func RenderSummary(w io.Writer, results []*Result, colorize bool) {
	ok, failed, items := 0, 0, 0
	for _, res := range results {
		if res.Failed() {
			failed++
			continue
		}
		ok++
		items += len(res.Listing.Items())
	}
	body := fmt.Sprintf("compiled %d  failed %d  instructions %d", ok, failed, items)
	if colorize {
		fmt.Fprintln(w, summaryStyle.Render(body))
		return
	}
	fmt.Fprintln(w, body)
}
