package anicaerr

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Reporter renders Errors to the CLI with the same caret-styled, colorized
// format the front-end commands use for asm-file and config parse failures.
type Reporter struct {
	out io.Writer
}

func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// Report writes a single formatted diagnostic. Fatal errors are printed in
// red with a category line; recoverable errors (only ever reported when a
// caller explicitly chooses to surface one, e.g. --check-config dry runs)
// print in yellow.
func (r *Reporter) Report(err *Error) {
	fmt.Fprint(r.out, r.Format(err))
}

func (r *Reporter) Format(err *Error) string {
	var b strings.Builder

	levelColor := color.New(color.FgRed, color.Bold).SprintFunc()
	if err.Recoverable() {
		levelColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	dim := color.New(color.Faint).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	b.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(string(err.Kind)), err.Code, bold(err.Message)))

	if desc := Describe(err.Code); desc != "" {
		b.WriteString(fmt.Sprintf("  %s %s\n", dim("="), dim(desc)))
	}

	if err.Location.Line > 0 {
		b.WriteString(fmt.Sprintf("  %s %s:%d:%d\n", dim("-->"), err.Location.File, err.Location.Line, err.Location.Column))
		if err.Location.Column > 0 {
			caret := strings.Repeat(" ", err.Location.Column-1) + "^"
			b.WriteString(fmt.Sprintf("      %s\n", color.New(color.FgRed, color.Bold).Sprint(caret)))
		}
	}

	for _, note := range err.Notes {
		noteColor := color.New(color.FgBlue).SprintFunc()
		b.WriteString(fmt.Sprintf("  %s %s\n", noteColor("note:"), note))
	}

	if err.Cause != nil {
		b.WriteString(fmt.Sprintf("  %s %s\n", dim("caused by:"), err.Cause.Error()))
	}

	return b.String()
}
