package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger 是全局的结构化日志实例。
// 各服务在 bootstrap 阶段通过 Init 注入服务名。
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init 初始化全局 Logger，附带服务名字段。
func Init(serviceName string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Logger = zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 返回一个绑定了当前链路 TraceID 的 Logger。
// 如果上下文中没有有效的 Span，则退化为全局 Logger。
func Ctx(ctx context.Context) *zerolog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.HasTraceID() {
		return &Logger
	}
	l := Logger.With().Str("trace_id", spanCtx.TraceID().String()).Logger()
	return &l
}

// WithContext 将全局 Logger 挂载到 context 上，供 zerolog 原生的 Ctx 取用。
func WithContext(ctx context.Context) context.Context {
	return Logger.WithContext(ctx)
}

// Info 是全局 Logger 的快捷入口。
func Info() *zerolog.Event {
	return Logger.Info()
}

// Error 是全局 Logger 的快捷入口。
func Error() *zerolog.Event {
	return Logger.Error()
}
