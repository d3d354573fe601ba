package log

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log atomic.Value

// Config configures the process wide logger.
type Config struct {
	Level string
	Debug bool
}

func init() {
	logger, err := zap.NewProductionConfig().Build()
	if err != nil {
		panic("unable to create logger")
	}
	log.Store(logger.Sugar())
}

// Setup replaces the global logger. Call it once in main after the
// configuration is loaded.
func Setup(config Config) {
	if err := Build(config); err != nil {
		panic(err)
	}
}

// Build is a panic-free version of Setup.
func Build(config Config) error {
	logger, err := NewLogger(config)
	if err != nil {
		return fmt.Errorf("logger creation failed: %w", err)
	}
	Set(logger)
	return nil
}

func NewLogger(config Config) (*zap.Logger, error) {
	var cfg zap.Config
	if config.Debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	if level := strings.TrimSpace(config.Level); level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}
	return cfg.Build()
}

func Set(logger *zap.Logger) {
	log.Store(logger.Sugar())
}

func Get() *zap.SugaredLogger {
	return log.Load().(*zap.SugaredLogger)
}

// Sync flushes buffered entries. Errors from syncing stderr are ignored.
func Sync() {
	_ = Get().Sync()
}

func Debugw(msg string, keysAndValues ...interface{}) {
	Get().Debugw(msg, keysAndValues...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	Get().Infow(msg, keysAndValues...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	Get().Warnw(msg, keysAndValues...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	Get().Errorw(msg, keysAndValues...)
}

func Infof(template string, args ...interface{}) {
	Get().Infof(template, args...)
}

func Errorf(template string, args ...interface{}) {
	Get().Errorf(template, args...)
}

// Fatalf logs a templated message, then calls os.Exit.
func Fatalf(template string, args ...interface{}) {
	Get().Fatalf(template, args...)
}
