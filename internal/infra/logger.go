// README: logrus setup: level, formatter, optional rotating file via lumberjack, gin writers.
package infra

import (
	"fmt"
	"io"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"fleetmatch/internal/config"
)

// NewLogger builds the process logger. The returned closer flushes the
// rotating file, if any.
func NewLogger(cfg config.LogConfig) (*logrus.Logger, io.Closer, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	log := logrus.New()
	log.SetLevel(level)
	if cfg.JSON {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	var closer io.Closer = nopCloser{}
	out := io.Writer(os.Stdout)
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotating)
		closer = rotating
	}
	log.SetOutput(out)

	gin.DefaultWriter = log.WriterLevel(logrus.DebugLevel)
	gin.DefaultErrorWriter = log.WriterLevel(logrus.ErrorLevel)
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
