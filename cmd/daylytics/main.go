// Package main provides the daylytics binary entry point.
// Daylytics turns Toggl Track time entries into per-category daily
// metrics, served over HTTP or run as one-shot CLI analyses.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/sl5234/daylytics/commands"
	_ "github.com/sl5234/daylytics/llm/providers" // register providers
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s", r, debug.Stack())
			os.Exit(2)
		}
	}()

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
