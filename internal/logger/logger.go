package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/httplog/v2"
)

// New builds the service logger. Production logs JSON at info level,
// everything else logs concise text at debug level.
func New(env string, w io.Writer) *httplog.Logger {
	if w == nil {
		w = os.Stdout
	}

	opts := httplog.Options{
		JSON:            env == "production",
		Concise:         env != "production",
		LogLevel:        slog.LevelDebug,
		Tags:            map[string]string{"env": env},
		QuietDownRoutes: []string{"/health"},
		QuietDownPeriod: 10 * time.Second,
		Writer:          w,
	}
	if env == "production" {
		opts.LogLevel = slog.LevelInfo
	}

	return httplog.NewLogger("shortly", opts)
}
