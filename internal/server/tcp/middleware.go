package tcpserver

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/shopfloor/internal/protocol"
)

// Middleware wraps a HandlerFunc.
type Middleware func(HandlerFunc) HandlerFunc

// Chain applies mws so that the first one is outermost.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Standard wraps h with the server's middleware stack. Recover sits
// innermost so a panic still produces a logged and counted 500.
func Standard(h HandlerFunc, log *zap.Logger, obs Observer) HandlerFunc {
	if obs == nil {
		obs = nopObserver{}
	}
	return Chain(h, Logging(log), Instrument(obs), Recover(log))
}

// Logging logs request metadata, never bodies or tokens.
func Logging(log *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req protocol.Request, peer string) protocol.Response {
			start := time.Now()
			resp := next(ctx, req, peer)

			fields := []zap.Field{
				zap.String("kind", string(req.Type)),
				zap.Int("status", resp.Code),
				zap.Duration("dur", time.Since(start)),
				zap.String("peer", peer),
			}
			if req.Code != nil {
				fields = append(fields, zap.Int("code", *req.Code))
			}
			log.Info("request", fields...)
			return resp
		}
	}
}

// Recover turns a panic in the handler into a 500 response.
func Recover(log *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req protocol.Request, peer string) (resp protocol.Response) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic",
						zap.Any("reason", r),
						zap.ByteString("stack", debug.Stack()),
						zap.String("kind", string(req.Type)),
					)
					resp = protocol.Error(500, MsgInternal)
				}
			}()
			return next(ctx, req, peer)
		}
	}
}

// Observer receives per-request and per-connection measurements.
type Observer interface {
	ConnOpened()
	ConnClosed()
	Request(kind string, status int, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ConnOpened()                        {}
func (nopObserver) ConnClosed()                        {}
func (nopObserver) Request(string, int, time.Duration) {}

// Instrument reports every request to obs.
func Instrument(obs Observer) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req protocol.Request, peer string) protocol.Response {
			start := time.Now()
			resp := next(ctx, req, peer)
			obs.Request(string(req.Type), resp.Code, time.Since(start))
			return resp
		}
	}
}
