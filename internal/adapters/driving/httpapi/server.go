package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/agrafes/internal/core/services"
	"github.com/custodia-labs/agrafes/internal/jobs"
	"github.com/custodia-labs/agrafes/internal/logger"
)

// Token modes accepted on startup.
const (
	TokenModeOff  = "off"
	TokenModeAuto = "auto"
)

// Config is the sidecar startup configuration. Port 0 asks the operating
// system for a free port. TokenMode is "off", "auto", or an explicit token.
type Config struct {
	DBPath    string
	Host      string
	Port      int
	TokenMode string
}

// StartupRecord is the single JSON object the sidecar emits on stdout
// before any further output.
type StartupRecord struct {
	Status        string `json:"status"` // listening | already_running
	Host          string `json:"host"`
	Port          int    `json:"port"`
	PID           int    `json:"pid"`
	Portfile      string `json:"portfile"`
	TokenRequired bool   `json:"token_required"`
}

// Server is the sidecar HTTP server. One process, one database, loopback
// only.
type Server struct {
	cfg       Config
	engine    *services.Engine
	jobs      *jobs.Manager
	token     string
	pid       int
	startedAt string
	portfile  string

	httpServer *http.Server
	listener   net.Listener

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// ResolveToken turns a token mode into the effective token: "" for off, a
// fresh random token for auto, the literal value otherwise.
func ResolveToken(mode string) (string, error) {
	switch strings.TrimSpace(mode) {
	case TokenModeOff:
		return "", nil
	case TokenModeAuto, "":
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating token: %w", err)
		}
		return base64.RawURLEncoding.EncodeToString(buf), nil
	default:
		return strings.TrimSpace(mode), nil
	}
}

// NewServer creates a sidecar server over an already-migrated engine.
func NewServer(cfg Config, engine *services.Engine) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}

	token, err := ResolveToken(cfg.TokenMode)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		engine:     engine,
		token:      token,
		pid:        os.Getpid(),
		portfile:   PortfilePath(cfg.DBPath),
		shutdownCh: make(chan struct{}),
	}
	s.jobs = jobs.NewManager(s.runJob)
	return s, nil
}

// Token returns the effective write token, empty when auth is off.
func (s *Server) Token() string {
	return s.token
}

// Port returns the bound port, 0 before Start.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// ShutdownRequested is closed when POST /shutdown is accepted.
func (s *Server) ShutdownRequested() <-chan struct{} {
	return s.shutdownCh
}

// Start applies the portfile coordination protocol and binds the listener.
//
// When a live sidecar already serves this database (recorded PID alive and
// /health answering), no second listener opens and the returned record says
// already_running. A stale discovery file is removed and replaced.
func (s *Server) Start() (*StartupRecord, error) {
	state := InspectState(s.cfg.DBPath)
	switch state.State {
	case "running":
		rec := &StartupRecord{
			Status:        "already_running",
			Host:          state.Record.Host,
			Port:          state.Record.Port,
			PID:           state.Record.PID,
			Portfile:      s.portfile,
			TokenRequired: state.Record.Token != "",
		}
		return rec, nil
	case "stale":
		logger.Info("Removing stale portfile %s (%s)", s.portfile, state.Reason)
		if err := RemovePortfile(s.portfile); err != nil {
			return nil, fmt.Errorf("removing stale portfile: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", addr, err)
	}
	s.listener = listener
	s.startedAt = time.Now().UTC().Format("2006-01-02T15:04:05Z")

	s.httpServer = &http.Server{
		Handler:     s.routes(),
		ReadTimeout: 30 * time.Second,
	}

	if err := WritePortfile(s.portfile, Portfile{
		Host:      s.cfg.Host,
		Port:      s.Port(),
		PID:       s.pid,
		StartedAt: s.startedAt,
		DBPath:    s.cfg.DBPath,
		Token:     s.token,
	}); err != nil {
		listener.Close()
		return nil, err
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("sidecar server stopped: %v", err)
		}
	}()

	logger.Info("Sidecar listening on %s:%d (db=%s)", s.cfg.Host, s.Port(), s.cfg.DBPath)
	return &StartupRecord{
		Status:        "listening",
		Host:          s.cfg.Host,
		Port:          s.Port(),
		PID:           s.pid,
		Portfile:      s.portfile,
		TokenRequired: s.token != "",
	}, nil
}

// Shutdown closes the listener, drains the worker, and deletes the
// discovery file. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.jobs != nil {
		s.jobs.Close()
	}
	if rmErr := RemovePortfile(s.portfile); rmErr != nil && err == nil {
		err = rmErr
	}
	logger.Info("Sidecar stopped")
	return err
}

// requestShutdown closes the shutdown channel exactly once.
func (s *Server) requestShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
	})
}
