// Package debug provides global debug/verbose logging control
package debug

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Verbose controls whether debug output is enabled
var Verbose bool

var logger = zerolog.New(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.TimeOnly,
}).With().Timestamp().Logger()

// SetOutput redirects debug output. Structured JSON is written to w.
func SetOutput(w io.Writer) {
	logger = zerolog.New(w).With().Timestamp().Logger()
}

// Printf prints debug output if verbose mode is enabled
func Printf(format string, args ...interface{}) {
	if Verbose {
		logger.Debug().Msg(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
	}
}

// Println prints debug output if verbose mode is enabled
func Println(args ...interface{}) {
	if Verbose {
		logger.Debug().Msg(strings.TrimRight(fmt.Sprintln(args...), "\n"))
	}
}

// Event starts a structured debug event. It returns nil when verbose mode
// is off; zerolog treats a nil event as a no-op.
func Event() *zerolog.Event {
	if !Verbose {
		return nil
	}
	return logger.Debug()
}
