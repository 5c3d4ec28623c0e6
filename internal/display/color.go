package display

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// UseColor reports whether w is a terminal that should receive color.
// NO_COLOR disables color everywhere.
func UseColor(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type palette struct {
	enabled bool
}

func (p palette) paint(attr color.Attribute, s string) string {
	if !p.enabled {
		return s
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

func (p palette) bold(s string) string   { return p.paint(color.Bold, s) }
func (p palette) green(s string) string  { return p.paint(color.FgGreen, s) }
func (p palette) yellow(s string) string { return p.paint(color.FgYellow, s) }
func (p palette) red(s string) string    { return p.paint(color.FgRed, s) }
func (p palette) cyan(s string) string   { return p.paint(color.FgCyan, s) }
