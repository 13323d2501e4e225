package tcpserver

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/and161185/shopfloor/internal/protocol"
)

// Config tunes connection handling.
type Config struct {
	// MaxConns bounds concurrently served connections.
	MaxConns int64
	// ReadTimeout bounds reading the request frame.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing the response frame.
	WriteTimeout time.Duration
	// HandlerTimeout bounds request processing.
	HandlerTimeout time.Duration
	// MaxFrame bounds the request size in bytes.
	MaxFrame uint32
}

// DefaultConfig is used for zero fields of Config.
var DefaultConfig = Config{
	MaxConns:       256,
	ReadTimeout:    10 * time.Second,
	WriteTimeout:   10 * time.Second,
	HandlerTimeout: 30 * time.Second,
	MaxFrame:       protocol.DefaultMaxFrame,
}

// Server accepts connections and answers exactly one request on each.
type Server struct {
	cfg     Config
	handler HandlerFunc
	obs     Observer
	log     *zap.Logger
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
}

// New constructs a Server. obs may be nil.
func New(cfg Config, h HandlerFunc, obs Observer, log *zap.Logger) *Server {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = DefaultConfig.MaxConns
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultConfig.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig.WriteTimeout
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = DefaultConfig.HandlerTimeout
	}
	if cfg.MaxFrame == 0 {
		cfg.MaxFrame = DefaultConfig.MaxFrame
	}
	if obs == nil {
		obs = nopObserver{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{cfg: cfg, handler: h, obs: obs, log: log, sem: semaphore.NewWeighted(cfg.MaxConns)}
}

// Serve accepts on ln until ctx is cancelled, then closes ln and waits for
// in-flight connections. It returns nil after a cancel-triggered shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		// A slot is taken before accepting so excess clients wait in the backlog.
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil
		}
		conn, err := ln.Accept()
		if err != nil {
			s.sem.Release(1)
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn("accept timeout", zap.Error(err))
				continue
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sem.Release(1)
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	s.obs.ConnOpened()
	defer s.obs.ConnClosed()
	defer conn.Close()
	peer := conn.RemoteAddr().String()

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	frame, err := protocol.ReadFrame(conn, s.cfg.MaxFrame)
	var resp protocol.Response
	switch {
	case err == nil:
		resp = s.handle(ctx, frame, peer)
	case errors.Is(err, protocol.ErrFrameTooLarge), errors.Is(err, protocol.ErrInvalidUTF8):
		s.log.Info("rejected frame", zap.String("peer", peer), zap.Error(err))
		resp = protocol.Error(400, MsgMalformed)
	case errors.Is(err, io.EOF):
		return
	default:
		s.log.Warn("read failed", zap.String("peer", peer), zap.Error(err))
		return
	}

	out, err := resp.Encode()
	if err != nil {
		s.log.Error("encode response", zap.Error(err))
		out, _ = protocol.Error(500, MsgInternal).Encode()
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := protocol.WriteFrame(conn, out); err != nil {
		s.log.Warn("write failed", zap.String("peer", peer), zap.Error(err))
	}
}

func (s *Server) handle(ctx context.Context, frame []byte, peer string) protocol.Response {
	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		return protocol.Error(400, MsgMalformed)
	}
	// In-flight requests finish during shutdown.
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.HandlerTimeout)
	defer cancel()
	return s.handler(hctx, req, peer)
}
