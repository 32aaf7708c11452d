package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	" _____              _      _ _ ",
	"|_   _|__ _ __   __| |_ __(_) |",
	"  | |/ _ \\ '_ \\ / _` | '__| | |",
	"  | |  __/ | | | (_| | |  | | |",
	"  |_|\\___|_| |_|\\__,_|_|  |_|_|",
}

var bannerColors = []string{"#34d399", "#10b981", "#059669", "#047857", "#065f46"}

// PrintBanner writes the Tendril banner to w, colored when the terminal allows it.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, termenv.String(line).Foreground(p.Color(bannerColors[i])))
	}
	fmt.Fprintln(w)
}
