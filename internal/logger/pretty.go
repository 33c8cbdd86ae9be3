// internal/logger/pretty.go
package logger

import (
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap/zapcore"
)

// Стили уровней для консоли; без TTY lipgloss выводит текст без цвета.
var levelStyles = map[zapcore.Level]lipgloss.Style{
	zapcore.DebugLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	zapcore.InfoLevel:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	zapcore.WarnLevel:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	zapcore.ErrorLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	zapcore.FatalLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
}

// PrettyEncoder creates a user-friendly console encoder
func PrettyEncoder(development bool) zapcore.Encoder {
	config := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "",
		StacktraceKey:  "",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    customLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if development {
		config.CallerKey = "caller"
		config.EncodeCaller = zapcore.ShortCallerEncoder
	}
	return zapcore.NewConsoleEncoder(config)
}

// customLevelEncoder formats log levels with colors
func customLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	label := "[" + level.CapitalString() + "]"
	if style, ok := levelStyles[level]; ok {
		label = style.Render(label)
	}
	enc.AppendString(label)
}

// customTimeEncoder formats time in a readable way
func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05.000"))
}

// ShortenSignature сокращает подпись для консольного вывода
func ShortenSignature(sig string) string {
	if len(sig) > 16 {
		return sig[:8] + "..." + sig[len(sig)-8:]
	}
	return sig
}
