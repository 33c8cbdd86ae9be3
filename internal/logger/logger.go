// internal/logger/logger.go
package logger

import (
	"errors"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config - куда и как пишет логгер. Пустой LogFile отключает файл.
type Config struct {
	LogFile     string
	Development bool // debug-уровень
	Pretty      bool // цветной вывод в консоль
	Rotation    Rotation
}

// Rotation - ротация файла; нулевые поля получают значения по умолчанию.
type Rotation struct {
	MaxSizeMB        int
	MaxAgeDays       int
	MaxBackups       int
	KeepUncompressed bool
}

func (r Rotation) writer(file string) *lumberjack.Logger {
	if r.MaxSizeMB <= 0 {
		r.MaxSizeMB = 100
	}
	if r.MaxAgeDays <= 0 {
		r.MaxAgeDays = 7
	}
	if r.MaxBackups <= 0 {
		r.MaxBackups = 3
	}
	return &lumberjack.Logger{
		Filename:   file,
		MaxSize:    r.MaxSizeMB,
		MaxAge:     r.MaxAgeDays,
		MaxBackups: r.MaxBackups,
		Compress:   !r.KeepUncompressed,
	}
}

// Logger расширяет функционал zap.Logger
type Logger struct {
	*zap.Logger
	rotator *lumberjack.Logger
}

// New создает логгер: консоль на stdout плюс JSON в файл с ротацией.
func New(cfg *Config) (*Logger, error) {
	return newWithConsole(cfg, os.Stdout)
}

func newWithConsole(cfg *Config, console io.Writer) (*Logger, error) {
	if cfg == nil {
		cfg = &Config{Pretty: true}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.MessageKey = "msg"
	encoderConfig.LevelKey = "level"
	encoderConfig.NameKey = "logger"
	encoderConfig.CallerKey = "caller"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	level := zapcore.InfoLevel
	if cfg.Development {
		level = zapcore.DebugLevel
	}

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	if cfg.Pretty {
		consoleEncoder = PrettyEncoder(cfg.Development)
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(console)), level),
	}

	var rotator *lumberjack.Logger
	if cfg.LogFile != "" {
		rotator = cfg.Rotation.writer(cfg.LogFile)
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level))
	}

	return &Logger{
		Logger: zap.New(zapcore.NewTee(cores...),
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		),
		rotator: rotator,
	}, nil
}

// WithOperation создает логгер для конкретной операции
func (l *Logger) WithOperation(operation string) *zap.Logger {
	return WithOperation(l.Logger, operation)
}

// WithOperation добавляет имя операции и correlation id: все строки
// одного торгового вызова получают общий идентификатор.
func WithOperation(l *zap.Logger, operation string) *zap.Logger {
	return l.With(
		zap.String("operation", operation),
		zap.String("correlation_id", uuid.New().String()),
	)
}

// TrackPerformance отслеживает производительность операции
func (l *Logger) TrackPerformance(operation string) (end func()) {
	start := time.Now()
	opLogger := l.WithOperation(operation)
	opLogger.Debug("Starting operation")

	return func() {
		duration := time.Since(start)
		opLogger.Debug("Operation completed",
			zap.Duration("duration", duration),
			zap.Float64("duration_ms", float64(duration.Microseconds())/1000),
		)
	}
}

// Sync реализует безопасный вызов Sync
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if isSyncNoise(err) {
		return nil
	}
	return err
}

// Close сбрасывает буферы и закрывает файл логов
func (l *Logger) Close() error {
	syncErr := l.Sync()
	if l.rotator != nil {
		if err := l.rotator.Close(); err != nil {
			return err
		}
	}
	return syncErr
}

// isSyncNoise: stdout/stderr терминала не поддерживают fsync.
func isSyncNoise(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF)
}
