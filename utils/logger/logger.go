package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/octabyte/sitemon/enums"
)

type Config struct {
	Level       string
	Env         string
	ServiceName string
	// Output defaults to stderr; stdout belongs to the command output.
	Output io.Writer
}

var levelAliases = map[string]zapcore.Level{
	"dbg":         zapcore.DebugLevel,
	"information": zapcore.InfoLevel,
	"warning":     zapcore.WarnLevel,
	"err":         zapcore.ErrorLevel,
}

// Init replaces the global zap logger. An unrecognised level falls back to
// info and is reported through the new logger.
func Init(cfg *Config) {
	level, known := parseLevel(cfg.Level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	core := zapcore.NewCore(newEncoder(cfg.Env), zapcore.Lock(zapcore.AddSync(out)), zap.NewAtomicLevelAt(level))
	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
		zap.Fields(
			zap.Int("pid", os.Getpid()),
			zap.String("env", cfg.Env),
			zap.String("service", cfg.ServiceName),
		),
	}
	if cfg.Env == enums.EnvDevelopment {
		opts = append(opts, zap.Development())
	}
	zap.ReplaceGlobals(zap.New(core, opts...))

	if !known {
		LogWarn("unknown log level, using info", zap.String("configured_level", cfg.Level))
	}
}

// newEncoder writes readable console lines in development and JSON
// everywhere else.
func newEncoder(env string) zapcore.Encoder {
	if env == enums.EnvDevelopment {
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderCfg)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(encoderCfg)
}

func parseLevel(level string) (zapcore.Level, bool) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return zapcore.InfoLevel, true
	}
	if l, ok := levelAliases[level]; ok {
		return l, true
	}
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel, false
	}
	return l, true
}

func LogDebug(msg string, fields ...zap.Field) {
	zap.L().Debug(msg, fields...)
}

func LogInfo(msg string, fields ...zap.Field) {
	zap.L().Info(msg, fields...)
}

func LogWarn(msg string, fields ...zap.Field) {
	zap.L().Warn(msg, fields...)
}

func LogError(msg string, fields ...zap.Field) {
	zap.L().Error(msg, fields...)
}

func Sync() {
	_ = zap.L().Sync()
}
