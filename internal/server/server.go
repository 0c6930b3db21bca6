package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
	"git.home.luguber.info/inful/wasmrun/internal/server/middleware"
)

// ShutdownTimeout bounds graceful shutdown of the dev server.
const ShutdownTimeout = 5 * time.Second

// Server is the dev HTTP server bound to a pre-opened listener.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds ip:port. Binding is separated from serving so that an address already in
// use is reported before any watcher starts.
func Listen(ctx context.Context, ip string, port int) (net.Listener, error) {
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, fmt.Sprintf("could not bind %s", addr)).
			Fatal().Build()
	}
	return ln, nil
}

// New wraps handler with the middleware chain and attaches it to ln.
func New(ln net.Listener, handler http.Handler, logRequests bool) *Server {
	chain := middleware.Chain(slog.Default(), ferrors.NewHTTPErrorAdapter(slog.Default()), logRequests)
	return &Server{
		ln: ln,
		srv: &http.Server{
			Handler:           chain(handler),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve blocks until the server stops. A graceful stop returns nil.
func (s *Server) Serve() error {
	err := s.srv.Serve(s.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "dev server failed").Build()
	}
	return nil
}

// Shutdown stops the server, waiting at most ShutdownTimeout for open requests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		_ = s.srv.Close()
		return err
	}
	return nil
}
