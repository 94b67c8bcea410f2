// Package vclog sets up the process-wide structured logger used by both
// vanillachat binaries for operational messages (not chat transcript text,
// which always goes through the tty package instead).
package vclog

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Init installs a tint-backed slog handler writing to stderr so that
// operational logging never collides with the chat transcript on stdout.
func Init(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
		}),
	))
}
