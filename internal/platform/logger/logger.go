package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a key/value logger. Values under identifying or secret keys are
// hashed or redacted before they reach zap.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
	redact        *redactor
}

func levelFor(mode string) (zap.Config, zapcore.Level) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		return zap.NewProductionConfig(), zap.InfoLevel
	case "test":
		return zap.NewDevelopmentConfig(), zap.WarnLevel
	default:
		return zap.NewDevelopmentConfig(), zap.DebugLevel
	}
}

// New builds a logger for mode: production (JSON, info), test (warn) or
// anything else (console, debug).
func New(mode string) (*Logger, error) {
	cfg, lvl := levelFor(mode)
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zl.Sugar(), redact: redactorFromEnv()}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), redact: &redactor{}}
}

func (l *Logger) ok() bool { return l != nil && l.SugaredLogger != nil }

func (l *Logger) Sync() {
	if l.ok() {
		_ = l.SugaredLogger.Sync()
	}
}

func (l *Logger) Debug(msg string, kv ...interface{}) {
	if l.ok() {
		l.SugaredLogger.Debugw(msg, l.redact.kvs(kv)...)
	}
}

func (l *Logger) Info(msg string, kv ...interface{}) {
	if l.ok() {
		l.SugaredLogger.Infow(msg, l.redact.kvs(kv)...)
	}
}

func (l *Logger) Warn(msg string, kv ...interface{}) {
	if l.ok() {
		l.SugaredLogger.Warnw(msg, l.redact.kvs(kv)...)
	}
}

func (l *Logger) Error(msg string, kv ...interface{}) {
	if l.ok() {
		l.SugaredLogger.Errorw(msg, l.redact.kvs(kv)...)
	}
}

func (l *Logger) Fatal(msg string, kv ...interface{}) {
	if l.ok() {
		l.SugaredLogger.Fatalw(msg, l.redact.kvs(kv)...)
	}
}

func (l *Logger) With(kv ...interface{}) *Logger {
	if !l.ok() {
		return Nop()
	}
	return &Logger{SugaredLogger: l.SugaredLogger.With(l.redact.kvs(kv)...), redact: l.redact}
}
