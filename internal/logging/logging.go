package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	gnarklog "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
)

// New builds the process logger. An empty level means info; pretty swaps
// JSON lines for zerolog's console writer.
func New(w io.Writer, level string, pretty bool) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level = strings.ToLower(strings.TrimSpace(level)); level != "" {
		var err error
		if lvl, err = zerolog.ParseLevel(level); err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, err)
		}
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// RouteGnark sends gnark's circuit compile, setup and prove logs through l.
func RouteGnark(l zerolog.Logger) {
	gnarklog.Set(l.With().Str("component", "gnark").Logger())
}
