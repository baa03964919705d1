package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// --------------------------------------------------------------------------
// Zap Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// zapLogger adapts a zap.SugaredLogger to the logger.ILogger interface.
// Every logger owns its own atomic level so SetLevel only affects one package.
type zapLogger struct {
	level zap.AtomicLevel
	sugar *zap.SugaredLogger
}

func (l *zapLogger) SetLevel(level logger.LogLevel) {
	l.level.SetLevel(toZapLevel(level))
}

func (l *zapLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *zapLogger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *zapLogger) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *zapLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

func (l *zapLogger) Panicf(format string, args ...interface{}) {
	l.sugar.Panicf(format, args...)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger implements the logger.Factory signature.
// The returned logger writes console encoded lines to stdout, starting at INFO.
func CreateLogger(pkgName string) logger.ILogger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), level)

	return &zapLogger{
		level: level,
		sugar: zap.New(core).Named(pkgName).Sugar(),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

func toZapLevel(level logger.LogLevel) zapcore.Level {
	switch level {
	case logger.DEBUG:
		return zapcore.DebugLevel
	case logger.INFO, logger.NOTICE:
		return zapcore.InfoLevel
	case logger.WARNING:
		return zapcore.WarnLevel
	case logger.ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.DPanicLevel
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// dragonboat internal loggers
var raftLoggers = []string{"raft", "raftdb", "rsm", "transport", "dragonboat", "grpc", "util", "logdb"}

// loggers owned by this module
var moduleLoggers = []string{"uorm", "cache", "driver", "store", "rpc", "transport/rpc"}

// Init installs the zap backed factory for all dragonboat loggers and sets
// the given level on the raft and module loggers.
func Init(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)

	for _, name := range raftLoggers {
		logger.GetLogger(name).SetLevel(lvl)
	}
	for _, name := range moduleLoggers {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
