package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultService = "ops-desk"

// Config is read from LOG_* variables.
type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	Service      string `split_words:"true" default:"ops-desk"`
}

// Init configures the global logger. Logs go to stderr so stdout stays free for run reports.
func Init(opts ...Config) {
	InitWriter(os.Stderr, opts...)
}

// InitWriter configures the global logger to write to w. Only the first Config is used;
// without one the logger writes JSON at info level.
func InitWriter(w io.Writer, opts ...Config) {
	var conf Config
	if len(opts) > 0 {
		conf = opts[0]
	}

	out := w
	if conf.PrettyFormat {
		out = zerolog.ConsoleWriter{Out: w}
	}

	level := zerolog.InfoLevel
	if conf.Debug {
		level = zerolog.DebugLevel
	}

	service := strings.TrimSpace(conf.Service)
	if service == "" {
		service = defaultService
	}

	log.Logger = zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Caller().
		Stack().
		Logger()
}
