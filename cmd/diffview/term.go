package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// ANSI color codes
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// termStyle styles command output when stdout is a terminal.
type termStyle struct {
	useColors bool
}

func newTermStyle() *termStyle {
	return &termStyle{
		useColors: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

func (t *termStyle) colorize(code, text string) string {
	if !t.useColors {
		return text
	}
	return code + text + ansiReset
}

// Success prints a success message with green checkmark
func (t *termStyle) Success(msg string) {
	fmt.Println(t.colorize(ansiGreen, "✓ "+msg))
}

// Warn prints a warning message with yellow warning symbol
func (t *termStyle) Warn(msg string) {
	fmt.Println(t.colorize(ansiYellow, "⚠ "+msg))
}

// Error prints an error message with red X
func (t *termStyle) Error(msg string) {
	fmt.Println(t.colorize(ansiRed, "✗ "+msg))
}

func (t *termStyle) Dim(text string) string {
	return t.colorize(ansiDim, text)
}

func (t *termStyle) Bold(text string) string {
	return t.colorize(ansiBold, text)
}

// Cyan is for URLs and paths.
func (t *termStyle) Cyan(text string) string {
	return t.colorize(ansiCyan, text)
}

// KeyValue prints an aligned summary line.
func (t *termStyle) KeyValue(key, value string) {
	fmt.Printf("  %s  %s\n", t.Bold(fmt.Sprintf("%-12s", key+":")), value)
}
