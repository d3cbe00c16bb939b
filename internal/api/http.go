package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/media"
)

// Gateway is the loopback HTTP surface: audio files for app://audio/ references and a
// websocket carrying renderer events and commands.
type Gateway struct {
	router chi.Router
	server *http.Server
	bus    *bus.Bus
	sync   *SyncService
	chats  *ChatService
	msgs   *MessageService
	logger *zap.Logger
	addr   string
}

// NewGateway builds the router. Nothing listens until Start. origins are the browser
// origins allowed cross-origin access.
func NewGateway(lib *media.Library, b *bus.Bus, syncSvc *SyncService, chatSvc *ChatService, msgSvc *MessageService, origins []string, logger *zap.Logger) *Gateway {
	g := &Gateway{
		bus:    b,
		sync:   syncSvc,
		chats:  chatSvc,
		msgs:   msgSvc,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(g.requestLog)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	lib.Routes(r)
	r.Get("/snapshot", g.handleSnapshot)
	r.Get("/events", g.handleEvents)

	g.router = r
	return g
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler { return g.router }

// Start listens on addr and serves in the background.
func (g *Gateway) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	g.addr = ln.Addr().String()
	g.server = &http.Server{Handler: g.router, ReadHeaderTimeout: 10 * time.Second}
	g.logger.Info("http gateway listening", zap.String("addr", g.addr))
	go func() {
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("http gateway stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once Start has returned.
func (g *Gateway) Addr() string { return g.addr }

// Stop shuts the server down, waiting for in-flight requests up to ctx.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

func (g *Gateway) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := g.sync.GetSnapshot(r.Context(), &SnapshotRequest{ChatID: r.URL.Query().Get("chat")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (g *Gateway) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		g.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	st := grpcstatus.Convert(err)
	writeJSON(w, httpStatus(st.Code()), map[string]string{"error": st.Message()})
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.FailedPrecondition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
