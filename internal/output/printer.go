// Package output renders search results and errors for the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "auto", "":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q: must be auto, always, or never", s)
	}
}

// ResolveColors decides whether to emit ANSI colors. Auto honours NO_COLOR
// and TERM=dumb, then falls back to whether stdout is a terminal.
func ResolveColors(mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false
		}
		if os.Getenv("TERM") == "dumb" {
			return false
		}
		return !color.NoColor
	}
}

type PrinterOptions struct {
	Out       io.Writer
	Err       io.Writer
	ColorMode ColorMode

	// optional, defaults to time.Now; used for deadline highlighting
	Clock func() time.Time
}

type Printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
	now       func() time.Time
}

func NewPrinter(opts PrinterOptions) *Printer {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Printer{
		out:       opts.Out,
		err:       opts.Err,
		useColors: ResolveColors(opts.ColorMode),
		now:       opts.Clock,
	}
}

// paint returns a color whose output does not depend on the package-level
// color.NoColor switch.
func (p *Printer) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.useColors {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (p *Printer) Print(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *Printer) Header(title string) {
	underline := strings.Repeat("─", runewidth.StringWidth(title))
	p.paint(color.Bold).Fprintf(p.out, "%s\n", title)
	p.paint(color.Faint).Fprintf(p.out, "%s\n", underline)
}

func (p *Printer) Warning(format string, args ...any) {
	if p.useColors {
		p.paint(color.FgYellow).Fprintf(p.err, "⚠ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.err, "[WARN] "+format+"\n", args...)
}

func (p *Printer) Bold(text string) string {
	return p.paint(color.Bold).Sprint(text)
}

func (p *Printer) Dim(text string) string {
	return p.paint(color.Faint).Sprint(text)
}

// JSON writes v indented to stdout.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// truncateWidth cuts s to at most w terminal columns.
func truncateWidth(s string, w int) string {
	return runewidth.Truncate(s, w, "…")
}
