package middleware

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	chimw "github.com/go-chi/chi/v5/middleware"

	ierr "github.com/mmynk/billdesk/internal/errors"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// with its request id, procedure, peer, duration and outcome. Failed calls
// also carry the Connect code and the domain error code.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			attrs := []any{
				"request_id", chimw.GetReqID(ctx),
				"procedure", req.Spec().Procedure,
				"peer", req.Peer().Addr,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err == nil {
				slog.InfoContext(ctx, "RPC ok", append(attrs, "code", "ok")...)
				return resp, nil
			}

			code := connect.CodeOf(err)
			attrs = append(attrs, "code", code.String(), "error", err)
			var ce *connect.Error
			if ierr.As(err, &ce) {
				attrs = append(attrs, "error_code", ce.Meta().Get(ierr.CodeHeader))
			}
			if code == connect.CodeInternal || code == connect.CodeUnknown {
				slog.ErrorContext(ctx, "RPC error", attrs...)
			} else {
				slog.WarnContext(ctx, "RPC error", attrs...)
			}
			return resp, err
		}
	}
}
