package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// CustomFormatter 自定义日志格式
type CustomFormatter struct {
	logrus.JSONFormatter
}

// Format 实现自定义格式化
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if _, ok := entry.Data["file"]; !ok && entry.HasCaller() {
		entry.Data["file"] = filepath.Base(entry.Caller.File)
		entry.Data["line"] = entry.Caller.Line
		entry.Data["func"] = filepath.Base(entry.Caller.Function)
	}

	entry.Data["pid"] = os.Getpid()
	entry.Data["goroutine_id"] = getGoroutineID()

	return f.JSONFormatter.Format(entry)
}

// LogOptions controls where and how verbosely the logger writes.
type LogOptions struct {
	Path       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	Log  *logrus.Logger
	once sync.Once
)

func newLogger(opts LogOptions) *logrus.Logger {
	l := logrus.New()

	l.SetFormatter(&CustomFormatter{
		JSONFormatter: logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "@timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		},
	})

	var out io.Writer = os.Stdout
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			panic(fmt.Sprintf("failed to create log directory: %v", err))
		}
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    defaultInt(opts.MaxSizeMB, 10),
			MaxBackups: defaultInt(opts.MaxBackups, 5),
			MaxAge:     defaultInt(opts.MaxAgeDays, 30),
			Compress:   true,
		})
	}
	l.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	l.SetReportCaller(true)
	return l
}

// InitLogger installs the process-wide logger. Only the first call wins,
// so it must run before anything calls GetLogger.
func InitLogger(opts LogOptions) *logrus.Logger {
	once.Do(func() { Log = newLogger(opts) })
	return Log
}

// GetLogger returns the singleton logger instance, falling back to a
// stdout-only logger when InitLogger was never called (tests, tools).
func GetLogger() *logrus.Logger {
	once.Do(func() { Log = newLogger(LogOptions{Level: os.Getenv("FAKEAPI_LOG_LEVEL")}) })
	return Log
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// getGoroutineID 获取当前协程ID
func getGoroutineID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	var id uint64
	fmt.Sscanf(string(b), "goroutine %d", &id)
	return id
}
