package infra

import (
	"context"
	"net/http"
	"time"
)

// HTTPServer owns the listener lifecycle so main only deals with Start and
// Shutdown. The write timeout comes from config rather than a constant
// because chat streams keep a response open for minutes; deployments that
// front the API with a buffering proxy need to raise it further.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer builds the server around the router with the configured
// timeouts applied.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	return &HTTPServer{server: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}}
}

// Start blocks serving requests until Shutdown is called or the listener
// fails. It returns http.ErrServerClosed after a clean shutdown, which
// callers should treat as success.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests, including open chat streams, until ctx
// expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
