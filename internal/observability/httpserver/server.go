// Package httpserver serves the operational endpoints: /metrics (Prometheus),
// /healthz and, optionally, /debug/pprof/.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	logx "shipwatch/pkg/logx"
)

const pprofPrefix = "/debug/pprof/"

type Config struct {
	Addr  string
	Pprof bool
	// Token protects /debug/pprof/ (Authorization: Bearer or ?token=).
	Token string
}

// HealthFunc reports a JSON-serializable status and whether the process is
// healthy. Unhealthy answers 503.
type HealthFunc func() (status any, ok bool)

type Server struct {
	cfg    Config
	health HealthFunc
	log    logx.Logger
}

func New(cfg Config, health HealthFunc, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, health: health, log: log}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.cfg.Pprof {
		wrap := func(h http.HandlerFunc) http.HandlerFunc { return withToken(s.cfg.Token, h) }
		mux.HandleFunc(pprofPrefix, wrap(hpprof.Index))
		mux.HandleFunc(pprofPrefix+"cmdline", wrap(hpprof.Cmdline))
		mux.HandleFunc(pprofPrefix+"profile", wrap(hpprof.Profile))
		mux.HandleFunc(pprofPrefix+"symbol", wrap(hpprof.Symbol))
		mux.HandleFunc(pprofPrefix+"trace", wrap(hpprof.Trace))
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var (
		status any = map[string]string{"status": "ok"}
		ok         = true
	)
	if s.health != nil {
		status, ok = s.health()
	}
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// Run listens and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		return errors.New("http addr is empty")
	}
	if s.cfg.Pprof && s.cfg.Token == "" && !isLoopbackAddr(addr) {
		return errors.New("pprof on a non-loopback addr requires a token")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		// WriteTimeout stays 0 so /debug/pprof/profile can stream for 30s+.
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(sctx)
		cancel()
	}()

	s.log.Info("http server started",
		logx.String("addr", ln.Addr().String()),
		logx.Bool("pprof", s.cfg.Pprof),
		logx.Bool("token_set", s.cfg.Token != ""),
	)
	err = srv.Serve(ln)
	if ctx.Err() != nil {
		return nil
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("http server exited unexpectedly")
	}
	return err
}

func withToken(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "" && got == tok {
			h(w, r)
			return
		}
		if ah, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && strings.TrimSpace(ah) == tok {
			h(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil || strings.TrimSpace(h) == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
