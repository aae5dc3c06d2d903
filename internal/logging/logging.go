package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FieldComponent tags log lines with the subsystem that produced them.
const FieldComponent = "component"

// Options selects log level and sinks.
type Options struct {
	Level   string
	File    string
	NoColor bool
	Out     io.Writer
}

// New builds the root logger: console output to stderr and, when File is
// set, JSON lines to a rotating file (10 MB, 5 backups).
func New(opts Options) (zerolog.Logger, io.Closer) {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	console := zerolog.ConsoleWriter{
		Out:         out,
		TimeFormat:  "15:04:05",
		NoColor:     opts.NoColor,
		FormatLevel: levelTag(opts.NoColor),
	}

	var closer io.Closer = nopCloser{}
	var w io.Writer = console
	if opts.File != "" {
		rot := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 5,
		}
		closer = rot
		w = zerolog.MultiLevelWriter(console, rot)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), closer
}

// Component returns a child logger tagged with name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str(FieldComponent, name).Logger()
}

func levelTag(noColor bool) zerolog.Formatter {
	return func(i interface{}) string {
		lvl := strings.ToUpper(fmt.Sprintf("%s", i))
		tag := map[string]string{
			"TRACE": "TRC",
			"DEBUG": "DBG",
			"INFO":  "INF",
			"WARN":  "WRN",
			"ERROR": "ERR",
			"FATAL": "FTL",
		}[lvl]
		if tag == "" {
			tag = lvl
		}
		if noColor {
			return "[" + tag + "]"
		}
		switch lvl {
		case "DEBUG", "TRACE":
			return "\033[36m[" + tag + "]\033[0m"
		case "INFO":
			return "\033[32m[" + tag + "]\033[0m"
		case "WARN":
			return "\033[33m[" + tag + "]\033[0m"
		case "ERROR", "FATAL":
			return "\033[31m[" + tag + "]\033[0m"
		}
		return "[" + tag + "]"
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
