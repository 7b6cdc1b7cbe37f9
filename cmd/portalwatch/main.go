package main

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

const (
	exitSuccess   = 0
	exitError     = 1
	exitNewEvents = 2
)

// errNewEvents signals the check command found new events; it maps to a
// distinct exit code for cron-style callers.
var errNewEvents = errors.New("new events found")

func main() {
	// Local development convenience. Missing .env is not an error.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errNewEvents) {
			os.Exit(exitNewEvents)
		}
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}
