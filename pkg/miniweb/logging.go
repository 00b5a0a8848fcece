package miniweb

import (
	"fmt"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// logger is the ambient internal diagnostic logger, independent of
// LogCallback/ErrorCallback (those are the host's own observability
// hooks). Grounded on the teacher's logging.Logger
// (arkd0ng-go-utils/logging/logger.go): a mutex-guarded writer over a
// rotating lumberjack.Logger, with a minimum level gate. Simplified to the
// handful of levels miniweb actually needs — no banner, no stdout mirror,
// no structured key/value pairs.
type logger struct {
	mu     sync.Mutex
	level  DebugLevel
	writer *lumberjack.Logger
}

func newLogger(cfg Config) *logger {
	return &logger{
		level: DebugErrors,
		writer: &lumberjack.Logger{
			Filename:   fmt.Sprintf("miniweb-%d.log", cfg.Port),
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

func (l *logger) setLevel(level DebugLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *logger) write(min DebugLevel, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level < min {
		return
	}
	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	l.writer.Write([]byte(ts + " " + msg + "\n"))
}

func (l *logger) errorf(format string, args ...any) {
	l.write(DebugErrors, fmt.Sprintf(format, args...))
}

func (l *logger) dataf(format string, args ...any) {
	l.write(DebugData, fmt.Sprintf(format, args...))
}

func (l *logger) tracef(format string, args ...any) {
	l.write(DebugAll, fmt.Sprintf(format, args...))
}
