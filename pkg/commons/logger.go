// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package commons holds the small set of cross-cutting helpers every
// internal package is handed at construction time, starting with the
// structured logger.
package commons

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the logging contract every component depends on. It is
// satisfied by a zap-backed implementation in production and by a
// no-op/recording fake in tests.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Info(msg string)
	Warnw(msg string, keysAndValues ...interface{})
	Benchmark(stage string, d time.Duration)
	Sync() error
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// LoggerOptions configures NewApplicationLogger.
type LoggerOptions struct {
	Level      string // debug, info, warn, error
	FilePath   string // if set, logs rotate into this file via lumberjack
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func DefaultLoggerOptions() LoggerOptions {
	return LoggerOptions{
		Level:      "info",
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 14,
	}
}

// NewApplicationLogger builds the process-wide Logger. When opts.FilePath is
// set, output is routed through lumberjack for rotation; otherwise it goes
// to stderr.
func NewApplicationLogger(opts LoggerOptions) (Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(opts.Level); err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	var sink zapcore.WriteSyncer
	if opts.FilePath != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		})
	} else {
		sink = zapcore.Lock(zapcore.AddSync(os.Stderr))
	}

	core := zapcore.NewCore(encoder, sink, level)
	logger := zap.New(core)
	return &zapLogger{sugar: logger.Sugar()}, nil
}

// NewTestLogger returns a Logger that discards output; handy for tests that
// don't want zap's real I/O but still need a commons.Logger value.
func NewTestLogger() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

func (l *zapLogger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *zapLogger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *zapLogger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *zapLogger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *zapLogger) Info(msg string)                           { l.sugar.Info(msg) }
func (l *zapLogger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}
func (l *zapLogger) Benchmark(stage string, d time.Duration) {
	l.sugar.Infow("benchmark", "stage", stage, "elapsed", d.String())
}
func (l *zapLogger) Sync() error { return l.sugar.Sync() }
