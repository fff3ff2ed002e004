package main

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//LogConfig selects the level and the format of the command line logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"`
}

//newLogger builds a logger writing to stderr, so stdout only carries results.
func newLogger(lc LogConfig) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if lc.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		level, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, errors.Wrapf(err, "log level %q", lc.Level)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	if lc.Encoding != "" {
		cfg.Encoding = lc.Encoding
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
