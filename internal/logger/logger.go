package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// ANSI color codes. Disabled when stdout is not a terminal.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

var colorEnabled = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func paint(color, s string) string {
	if !colorEnabled {
		return s
	}
	return color + s + reset
}

func stamp() string {
	return time.Now().Format("15:04:05")
}

// Info prints an informational message with a component tag.
func Info(tag, msg string) {
	fmt.Printf("%s %s %s\n", paint(dim, stamp()), paint(cyan, "["+tag+"]"), msg)
}

// Success prints a success message.
func Success(tag, msg string) {
	fmt.Printf("%s %s %s\n", paint(dim, stamp()), paint(green, "["+tag+"]"), msg)
}

// Warn prints a warning.
func Warn(tag, msg string) {
	fmt.Printf("%s %s %s\n", paint(dim, stamp()), paint(yellow, "["+tag+"]"), msg)
}

// Error prints an error message.
func Error(tag, msg string) {
	fmt.Printf("%s %s %s\n", paint(dim, stamp()), paint(red, "["+tag+"]"), msg)
}

// Section prints a visual divider with a title.
func Section(title string) {
	fmt.Printf("\n%s\n", paint(bold, "── "+title+" "+"─────────────────────────────"))
}

// Stats prints a key/value stat line.
func Stats(key string, value interface{}) {
	fmt.Printf("   %s %v\n", paint(dim, key+":"), value)
}

// Banner prints the startup banner.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Println(paint(bold+cyan, `
  ╦ ╦╔═╗╔═╗╔╦╗╔═╗╦═╗
  ╠═╣║╣ ║   ║ ╠═╣╠╦╝
  ╩ ╩╚═╝╚═╝ ╩ ╩ ╩╩╚═`))
	fmt.Printf("  %s %s\n\n", paint(bold, "Commodity Flow Intelligence"), paint(dim, version))
}

// Server prints the listen address once the HTTP server is up.
func Server(addr string) {
	fmt.Printf("%s %s listening on %s\n", paint(dim, stamp()), paint(green, "[Server]"), paint(bold, "http://"+addr))
}
