// Package logging builds the process zap logger and adapts it to the
// auth.Logger contract.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/kalinanews/newsroom/auth"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level string
	// Format is json or console
	Format     string
	OutputPath string
}

// New creates a zap logger. An unknown level falls back to info and an
// unknown format to json.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	logLevel := strings.ToLower(strings.TrimSpace(cfg.Level))
	if logLevel == "" {
		logLevel = "info"
	}
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q, using info: %v\n", cfg.Level, err)
		level.SetLevel(zap.InfoLevel)
	}

	encoding := strings.ToLower(cfg.Format)
	if encoding != "console" && encoding != "json" {
		encoding = "json"
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	outputPath := cfg.OutputPath
	if outputPath == "" {
		outputPath = "stdout"
	}

	zapConfig := zap.Config{
		Level:             level,
		DisableCaller:     encoding == "json",
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{outputPath},
		ErrorOutputPaths:  []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

type authLogger struct {
	s *zap.SugaredLogger
}

// NewAuthLogger adapts a zap logger to auth.Logger. A nil logger uses the
// global one.
func NewAuthLogger(l *zap.Logger, name string) auth.Logger {
	if l == nil {
		l = zap.L()
	}
	if name != "" {
		l = l.Named(name)
	}
	return authLogger{s: l.Sugar()}
}

func (l authLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l authLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l authLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l authLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }
