package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

type Field struct {
	Key   string
	Value interface{}
}

var (
	level = new(slog.LevelVar)
	base  atomic.Pointer[slog.Logger]
)

func init() {
	if os.Getenv("DEBUG") == "1" {
		level.Set(slog.LevelDebug)
	}
	SetOutput(os.Stdout)
}

// SetOutput redirects log lines, one JSON object each, to w.
func SetOutput(w io.Writer) {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "ts"
				a.Value = slog.StringValue(a.Value.Time().UTC().Format("2006-01-02T15:04:05.999999999Z07:00"))
			case slog.LevelKey:
				a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
			}
			return a
		},
	})
	base.Store(slog.New(h))
}

// SetLevel accepts debug, info, warn or error; anything else keeps the current level.
func SetLevel(name string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err == nil {
		level.Set(l)
	}
}

func attrs(fields []Field, err error) []any {
	out := make([]any, 0, len(fields)+1)
	if err != nil {
		out = append(out, slog.String("error", err.Error()))
	}
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

func Info(msg string, fields ...Field) {
	base.Load().Info(msg, attrs(fields, nil)...)
}

func Warn(msg string, err error, fields ...Field) {
	base.Load().Warn(msg, attrs(fields, err)...)
}

func Error(msg string, err error, fields ...Field) {
	base.Load().Error(msg, attrs(fields, err)...)
}

func Debug(msg string, fields ...Field) {
	base.Load().Debug(msg, attrs(fields, nil)...)
}

func FieldKV(key string, value interface{}) Field { return Field{Key: key, Value: value} }
