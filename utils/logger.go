package utils

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log  *zap.Logger
	once sync.Once
)

// InitLogger builds the process-wide logger: console output for the
// operator plus JSON log files, with errors duplicated to a separate file
// so stuck-capital and submission failures are easy to grep in incident
// response.
func InitLogger(debug bool) *zap.Logger {
	once.Do(func() {
		level := zapcore.InfoLevel
		if debug {
			level = zapcore.DebugLevel
		}

		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.TimeKey = "timestamp"
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder

		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.EncodeTime = zapcore.ISO8601TimeEncoder

		cores := []zapcore.Core{
			zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), level),
		}
		if f, err := openLogFile("crossarb.log"); err == nil {
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(f), level))
		}
		if f, err := openLogFile("crossarb-error.log"); err == nil {
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(f), zapcore.ErrorLevel))
		}

		log = zap.New(zapcore.NewTee(cores...),
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
	})

	return log
}

func openLogFile(name string) (*os.File, error) {
	return os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// GetLogger returns the global logger, initializing it at info level if
// needed.
func GetLogger() *zap.Logger {
	if log == nil {
		return InitLogger(false)
	}
	return log
}

// Named returns a component-scoped child of the global logger.
func Named(component string) *zap.Logger {
	return GetLogger().Named(component)
}

// CleanupLogger flushes any buffered log entries
func CleanupLogger() {
	if log != nil {
		_ = log.Sync()
	}
}
