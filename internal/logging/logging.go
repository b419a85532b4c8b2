// Package logging builds the zap loggers of an apireg server: rotating JSON
// files under the configured directory, optionally teed to stdout.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/broady/apireg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logs are the loggers one server writes to.
type Logs struct {
	// System receives startup, shutdown and endpoint call logs.
	System *zap.Logger
	// Access receives one line per HTTP request.
	Access *zap.Logger

	closers []io.Closer
}

// New opens system.log and http-access.log in cfg.Dir.
func New(cfg config.Log) (*Logs, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	l := &Logs{}
	l.System = l.open(cfg, "system.log", level)
	l.Access = l.open(cfg, "http-access.log", zapcore.InfoLevel)
	return l, nil
}

func (l *Logs) open(cfg config.Log, name string, level zapcore.Level) *zap.Logger {
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, name),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	l.closers = append(l.closers, rotator)
	return zap.New(NewCore(rotator, cfg.Console, level))
}

// NewCore returns a JSON core writing to w, teed to stdout when console is set.
func NewCore(w io.Writer, console bool, level zapcore.LevelEnabler) zapcore.Core {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), level)
	if !console {
		return core
	}
	return zapcore.NewTee(
		core,
		zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(os.Stdout), level),
	)
}

// Sync flushes both loggers.
func (l *Logs) Sync() {
	_ = l.System.Sync()
	_ = l.Access.Sync()
}

// Close flushes and closes the log files.
func (l *Logs) Close() error {
	l.Sync()
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
