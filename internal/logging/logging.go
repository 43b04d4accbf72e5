// Package logging configures the process-wide zap logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"os"
)

type Options struct {
	Mode    string // "production" selects JSON output, anything else the console encoder
	File    string // optional, rotated by lumberjack
	Service string
}

// Init builds the logger, installs it as zap.L() and returns it so main can Sync
// on exit.
func Init(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Mode == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stdout"}

	var logger *zap.Logger
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
		}
		core := zapcore.NewTee(
			zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(rotating), cfg.Level),
			zapcore.NewCore(consoleEncoder(opts.Mode), zapcore.AddSync(os.Stdout), cfg.Level),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = cfg.Build(zap.AddCaller())
		if err != nil {
			return nil, err
		}
	}
	if opts.Service != "" {
		logger = logger.With(zap.String("service", opts.Service))
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func consoleEncoder(mode string) zapcore.Encoder {
	if mode == "production" {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
}
