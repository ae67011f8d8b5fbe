// Package view renders cgc output and logs.
package view

import (
	"io"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
)

// Log formats accepted by NewLogger.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewLogger returns a logger writing to w: coloured human-readable lines
// for FormatText, one JSON object per record for FormatJSON.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:       level,
		TimeFormat:  time.TimeOnly,
		NoColor:     color.NoColor,
		ReplaceAttr: rewriteLogLevel,
	}))
}

func rewriteLogLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) != 0 {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}

	var text string
	switch level {
	case slog.LevelDebug:
		text = "DEBUG"
	case slog.LevelInfo:
		text = color.GreenString("INFO")
	case slog.LevelWarn:
		text = color.YellowString("WARN")
	case slog.LevelError:
		text = color.RedString("ERROR")
	default:
		text = level.String()
	}
	a.Value = slog.StringValue(text)
	return a
}

// Status labels a result line.
func Status(ok bool) string {
	if ok {
		return color.GreenString("ok")
	}
	return color.RedString("FAIL")
}

// Highlight colours names in result lines.
func Highlight(format string, a ...any) string {
	return color.RGB(50, 108, 229).Sprintf(format, a...)
}
