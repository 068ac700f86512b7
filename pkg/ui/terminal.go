package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// ASCII logo for the application
const ASCIILogo = `
   ___  _ __  _   _ ___  __| | |
  / _ \| '_ \| | | / __|/ _' | |
 | (_) | |_) | |_| \__ \ (_| | |
  \___/| .__/ \__,_|___/\__,_|_|
       |_|   bilibili opus downloader
`

var (
	cyan    = lipgloss.Color("#00FFFF")
	magenta = lipgloss.Color("#FF00FF")
	green   = lipgloss.Color("#39FF14")
	yellow  = lipgloss.Color("#FFFF00")
	red     = lipgloss.Color("#FF3030")
	dim     = lipgloss.Color("#808080")
)

// Color functions for terminal output
var (
	Cyan    = render(lipgloss.NewStyle().Foreground(cyan))
	Yellow  = render(lipgloss.NewStyle().Foreground(yellow))
	Red     = render(lipgloss.NewStyle().Foreground(red).Bold(true))
	Green   = render(lipgloss.NewStyle().Foreground(green))
	Magenta = render(lipgloss.NewStyle().Foreground(magenta))
	Dim     = render(lipgloss.NewStyle().Foreground(dim).Faint(true))
)

func render(style lipgloss.Style) func(string) string {
	return func(text string) string {
		return style.Render(text)
	}
}

var (
	outMu sync.Mutex
	out   io.Writer = os.Stdout
	quiet bool
)

// SetOutput redirects all terminal output. Nil restores stdout.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	out = w
}

// SetQuietMode suppresses everything but errors
func SetQuietMode(q bool) {
	outMu.Lock()
	defer outMu.Unlock()
	quiet = q
}

// IsQuietMode reports whether quiet mode is on
func IsQuietMode() bool {
	outMu.Lock()
	defer outMu.Unlock()
	return quiet
}

func printf(force bool, format string, args ...interface{}) {
	outMu.Lock()
	defer outMu.Unlock()
	if quiet && !force {
		return
	}
	fmt.Fprintf(out, format, args...)
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	printf(false, "%s\n", Cyan(ASCIILogo))
}

// PrintError prints an error message in red. It is shown in quiet mode too.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprint(args[0])
	}
	printf(true, "%s\n", Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printf(false, "%s\n", Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	printf(false, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprint(args[0])
	}
	printf(false, "%s\n", Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	printf(false, "%s\n", Magenta(msg))
}
