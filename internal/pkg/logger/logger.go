// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var base zerolog.Logger

func init() {
	base = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Init 配置全局日志器。service 会作为固定字段写入每条日志，
// pretty 开启后输出人类可读的控制台格式（仅用于本地开发）。
func Init(service string, pretty bool) {
	var w = zerolog.New(os.Stderr)
	if pretty {
		w = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	base = w.With().Timestamp().Str("service", service).Logger()
}

// Ctx 返回一个与上下文绑定的日志器。
// 如果上下文中存在有效的 trace，会自动附加 trace_id 字段，
// 便于在日志系统中与 Jaeger 里的链路对齐。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := base
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With().Str("trace_id", sc.TraceID().String()).Logger()
	}
	return &l
}
