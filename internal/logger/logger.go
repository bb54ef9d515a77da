// Package logger configura o zap do processo: console ou JSON, nível
// ajustável e, opcionalmente, arquivo com rotação via lumberjack.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Z é o logger global; componentes recebem um filho via Named.
	Z *zap.Logger
	// L é a versão sugared de Z, para o main e scripts.
	L *zap.SugaredLogger

	closer io.Closer
)

func init() {
	Z = zap.NewNop()
	L = Z.Sugar()
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // console (padrão) ou json
	File       string // vazio = só stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func parseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(s))
	if err != nil {
		return lvl, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

func encoder(format string) (zapcore.Encoder, error) {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	switch strings.ToLower(format) {
	case "", "console":
		return zapcore.NewConsoleEncoder(cfg), nil
	case "json":
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// New monta um logger que escreve em out e, se cfg.File estiver definido,
// também no arquivo rotacionado. O io.Closer devolvido fecha o arquivo
// (nil quando não há arquivo).
func New(cfg Config, out io.Writer) (*zap.Logger, io.Closer, error) {
	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	enc, err := encoder(cfg.Format)
	if err != nil {
		return nil, nil, err
	}

	var c io.Closer
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 64),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAgeDays, 7),
			Compress:   true,
		}
		out = io.MultiWriter(out, lj)
		c = lj
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(out), lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), c, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Init troca os globais por um logger em stderr configurado por cfg.
func Init(cfg Config) error {
	z, c, err := New(cfg, os.Stderr)
	if err != nil {
		return err
	}
	Z = z
	L = z.Sugar()
	closer = c
	return nil
}

// Sync descarrega o buffer e fecha o arquivo de log. Chame antes de sair.
func Sync() {
	_ = Z.Sync()
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
}
