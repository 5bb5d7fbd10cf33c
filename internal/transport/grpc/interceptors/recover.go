// recover.go реализует перехватчики паник для unary- и stream-вызовов.
package interceptors

import (
	"context"
	"log/slog"
	"runtime/debug"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/club-auth/internal/pkg/log"
)

// errInternal — нейтральный ответ клиенту без внутренних деталей.
var errInternal = status.Error(codes.Internal, "internal server error")

// Recover возвращает unary-интерсептор, который перехватывает паники в обработчиках,
// логирует их и отвечает клиенту codes.Internal.
//
// Если в контексте уже есть логгер (см. internal/pkg/log), будет использован он;
// иначе — переданный base (если не nil), либо slog.Default().
func Recover(base *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(loggerFor(ctx, base), info.FullMethod, r)
				err = errInternal
				resp = nil
			}
		}()

		return handler(ctx, req)
	}
}

// RecoverStream — Recover для стримов.
func RecoverStream(base *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(loggerFor(ss.Context(), base), info.FullMethod, r)
				err = errInternal
			}
		}()

		return handler(srv, ss)
	}
}

func loggerFor(ctx context.Context, base *slog.Logger) *slog.Logger {
	l := log.From(ctx)
	if l == slog.Default() && base != nil {
		return base
	}
	return l
}

func logPanic(l *slog.Logger, method string, r any) {
	l.Error("panic_recovered",
		slog.String("method", method),
		slog.Any("panic", r),
		slog.String("stack", string(debug.Stack())),
	)
}
