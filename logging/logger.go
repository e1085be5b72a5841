package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"kpitracker/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init builds a logger that writes JSON to one rotating file per level and a
// human readable stream to stdout. The returned AtomicLevel gates every core.
func Init(cfg config.LoggingConfig) (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, level, fmt.Errorf("invalid logging.level %q: %w", cfg.Level, err)
	}

	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, level, fmt.Errorf("could not create log directory: %w", err)
	}

	cores := make([]zapcore.Core, 0, 5)
	for _, l := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel} {
		cores = append(cores, newFileCore(cfg, l, level))
	}
	cores = append(cores, newConsoleCore(os.Stdout, level))

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), level, nil
}

func fileEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "time",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
}

// newFileCore writes only entries of exactly one level, e.g. logs/warn.log.
func newFileCore(cfg config.LoggingConfig, l zapcore.Level, min zap.AtomicLevel) zapcore.Core {
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, l.String()+".log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})

	enabler := zap.LevelEnablerFunc(func(entry zapcore.Level) bool {
		return entry == l && min.Enabled(entry)
	})
	return zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig()), writer, enabler)
}

func newConsoleCore(w io.Writer, min zap.AtomicLevel) zapcore.Core {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), min)
}
