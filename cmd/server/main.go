// Package main implements the pecal-reminders binary: the HTTP server that
// hosts the cron trigger and event intake, plus one-shot commands for
// migrations and for running single pipeline stages from an external
// scheduler.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
