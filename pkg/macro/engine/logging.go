package engine

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// NewLogger builds the structured logger for runs. format is "text" or
// "json"; level is any logrus level name.
func NewLogger(level, format string, out io.Writer) (*log.Logger, error) {
	l := log.New()
	l.SetOutput(out)

	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(lvl)

	switch format {
	case "", "text":
		l.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	case "json":
		l.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return l, nil
}
