package app

import (
	"fmt"
	"strings"

	"github.com/gookit/color"
	"github.com/specialistvlad/resgraph/internal/diag"
	"github.com/specialistvlad/resgraph/internal/reconcile"
)

var (
	styleOK      = color.New(color.FgGreen)
	styleWarning = color.New(color.FgYellow)
	styleError   = color.New(color.FgRed, color.OpBold)
	styleMuted   = color.New(color.FgGray)
)

func (a *App) paint(s color.Style, text string) string {
	if a.config.NoColor {
		return text
	}
	return s.Sprint(text)
}

// printReport writes a human readable pass summary to the app output.
func (a *App) printReport(rep *reconcile.Report) {
	if rep == nil {
		return
	}
	var sb strings.Builder

	status := a.paint(styleOK, "ok")
	switch {
	case rep.Diagnostics.HasErrors():
		status = a.paint(styleError, "errors")
	case len(rep.Diagnostics) > 0:
		status = a.paint(styleWarning, "warnings")
	}
	fmt.Fprintf(&sb, "pass %d [%s]: %d added, %d replaced, %d removed, %d failed, %d live\n",
		rep.Pass, status, len(rep.Added), len(rep.Replaced), len(rep.Removed), len(rep.Failed), a.Live().Len())

	if len(rep.Retained) > 0 {
		fmt.Fprintf(&sb, "  %s %s\n", a.paint(styleMuted, "retained:"), strings.Join(rep.Retained, ", "))
	}
	for _, d := range rep.Diagnostics {
		label := a.paint(styleWarning, "warning")
		if d.Severity == diag.SeverityError {
			label = a.paint(styleError, "error")
		}
		fmt.Fprintf(&sb, "  %s %v\n", label, d.Err)
	}
	fmt.Fprint(a.outW, sb.String())
}
