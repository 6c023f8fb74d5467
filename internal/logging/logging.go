// Package logging constructs zap loggers for the slot commands.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig describes a rotating log file.
type FileConfig struct {
	Path       string
	MaxSize    int // megabytes before rotation
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// Config describes where and what to log.
type Config struct {
	Level   string // debug, info, warn, error; default info
	Console bool   // log to stderr

	File FileConfig // if File.Path == "", no file is written
}

const timeLayout = "2006/01/02 15:04:05.000"

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stacktrace",

		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// New constructs a logger from cfg. If cfg enables neither the console nor a
// file, the logger discards everything.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if cfg.Level != "" {
		var err error
		level, err = zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
	}

	enc := zapcore.NewConsoleEncoder(encoderConfig())
	var cores []zapcore.Core
	if cfg.File.Path != "" {
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAge,
			Compress:   cfg.File.Compress,
			LocalTime:  true,
		})
		cores = append(cores, zapcore.NewCore(enc, w, level))
	}
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.Lock(os.Stderr), level))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.PanicLevel),
	), nil
}
