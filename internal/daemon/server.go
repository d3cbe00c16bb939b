package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/matheus3301/wppdesk/internal/api"
	"github.com/matheus3301/wppdesk/internal/session"
)

// Server serves the daemon API on the session's unix socket.
type Server struct {
	rpc    *grpc.Server
	ln     net.Listener
	path   string
	logger *zap.Logger
}

// NewServer binds the socket (owner-only) and registers every service on it.
func NewServer(
	p Params,
	layout session.Layout,
	logger *zap.Logger,
	sessionSvc *api.SessionService,
	syncSvc *api.SyncService,
	chatSvc *api.ChatService,
	messageSvc *api.MessageService,
) (*Server, error) {
	path := p.SocketPath
	if path == "" {
		path = layout.SocketPath()
	}

	// A leftover socket is from a crashed daemon; the session lock rules out a live one.
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	rpc := grpc.NewServer(
		grpc.ChainUnaryInterceptor(logUnary(logger)),
		grpc.ChainStreamInterceptor(logStream(logger)),
	)
	api.Register(rpc, sessionSvc, syncSvc, chatSvc, messageSvc)

	return &Server{rpc: rpc, ln: ln, path: path, logger: logger}, nil
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("api listening", zap.String("socket", s.path))
	return s.rpc.Serve(s.ln)
}

// Stop drains in-flight calls and removes the socket. Open watch streams are cut off
// when ctx expires.
func (s *Server) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.rpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.rpc.Stop()
	}
	_ = os.Remove(s.path)
	s.logger.Info("api stopped")
}

func logUnary(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(logger, info.FullMethod, start, err)
		return resp, err
	}
}

func logStream(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(logger, info.FullMethod, start, err)
		return err
	}
}

func logCall(logger *zap.Logger, method string, start time.Time, err error) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.Duration("took", time.Since(start)),
		zap.String("code", status.Code(err).String()),
	}
	if err != nil {
		logger.Warn("api call failed", append(fields, zap.Error(err))...)
		return
	}
	logger.Debug("api call", fields...)
}
