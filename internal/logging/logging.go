// Package logging provides the package-level structured logger shared by
// the orchestrator and executors, wired the way alexisbeaulieu97-Streamy's
// go.mod pulls in rs/zerolog for this job: one leveled, timestamped
// logger injected where a component needs more than the plain banner
// lines the CLI already prints with bare fmt.Printf (spec §4.5's
// RUNNING/SUCCESS/FAILED/SKIPPED banners and §6.3's protocol text frames
// stay literal console/wire text — they are part of the observable output
// contract, not a log stream).
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Default is the process-wide logger. Replaced wholesale by SetLevel,
// never mutated per call site.
var Default = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
	With().Timestamp().Logger()

// SetLevel adjusts the minimum level Default emits.
func SetLevel(level zerolog.Level) {
	Default = Default.Level(level)
}
