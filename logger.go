package pubsite

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// NewLogger builds the application logger from the config's level and format.
// Unknown levels fall back to info.
func NewLogger(cfg SiteConfig, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
		Prefix:          "pubsite",
	})
	if cfg.LogJSON {
		l.SetFormatter(log.JSONFormatter)
	}
	return l
}
