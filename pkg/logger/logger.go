package logger

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"go.elastic.co/ecslogrus"
)

// Build creates an ECS JSON logger at the given level. An empty level means
// info.
func Build(level string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&ecslogrus.Formatter{})

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	return log, nil
}

// Discard returns a logger that drops everything
func Discard() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}
