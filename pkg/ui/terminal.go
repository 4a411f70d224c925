package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
)

// ASCIILogo is printed at the top of interactive commands.
const ASCIILogo = `
    ╔═══════════════════════════════════════════════════════════╗
    ║ ███████╗███╗   ██╗██████╗ ██╗ ██████╗██╗  ██╗███████╗██████╗ ║
    ║ ██╔════╝████╗  ██║██╔══██╗██║██╔════╝██║  ██║██╔════╝██╔══██╗║
    ║ █████╗  ██╔██╗ ██║██████╔╝██║██║     ███████║█████╗  ██████╔╝║
    ║ ██╔══╝  ██║╚██╗██║██╔══██╗██║██║     ██╔══██║██╔══╝  ██╔══██╗║
    ║ ███████╗██║ ╚████║██║  ██║██║╚██████╗██║  ██║███████╗██║  ██║║
    ║ ╚══════╝╚═╝  ╚═══╝╚═╝  ╚═╝╚═╝ ╚═════╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝║
    ║          AIRTABLE / LINKEDIN PROFILE ENRICHMENT           ║
    ╚═══════════════════════════════════════════════════════════╝
`

// Output is where the Print helpers write.
var Output io.Writer = os.Stdout

var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(format string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(format, text)
	}
}

func PrintLogo() {
	fmt.Fprint(Output, Cyan(ASCIILogo))
}

// PrintError prints msg in red, followed by err when given.
func PrintError(msg string, err error) {
	if err != nil {
		msg += ": " + err.Error()
	}
	fmt.Fprintln(Output, Red("✗ "+msg))
}

func PrintSuccess(msg string) {
	fmt.Fprintln(Output, Green("✓ "+msg))
}

// PrintInfo prints a label/value pair.
func PrintInfo(label, value string) {
	fmt.Fprintf(Output, "%s: %s\n", Cyan(label), Yellow(value))
}

func PrintWarning(msg string) {
	fmt.Fprintln(Output, Yellow("! "+msg))
}

func PrintHighlight(msg string) {
	fmt.Fprintln(Output, Magenta(msg))
}

// PrintSummary prints a titled block of result fields in key order.
func PrintSummary(title string, fields map[string]interface{}) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(Output, Magenta(title))
	for _, k := range keys {
		fmt.Fprintf(Output, "  %s %s %v\n", Dim("•"), Cyan(k+":"), fields[k])
	}
}
