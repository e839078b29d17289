package mfaf

import (
	"strings"

	"github.com/rs/zerolog"
)

// SetLogLevel sets zerolog's process-wide level, so it governs this
// package's log lines and those of every other zerolog user alike.
// Log statements in this package are observational only (forward-
// compatibility tolerances, offset/CRC bookkeeping) — they never gate
// control flow, since every condition logged is also, independently,
// either returned as an *Error or explicitly allowed by the format.
// Valid levels: "debug", "info", "warn", "error", "disabled".
func SetLogLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
