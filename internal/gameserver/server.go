package gameserver

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/moonvale/moonmud/internal/config"
	"github.com/moonvale/moonmud/internal/crypto"
)

// Server accepts TCP connections and hands them to the game's tick
// loop.
type Server struct {
	cfg  config.Server
	game *Game
	key  *rsa.PrivateKey

	nextConnID atomic.Int64

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a server with a freshly generated keypair shared
// by every session.
func NewServer(cfg config.Server, game *Game) (*Server, error) {
	slog.Info("generating RSA key pair", "bits", crypto.KeyBits)
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generating server key pair: %w", err)
	}
	return &Server{cfg: cfg, game: game, key: key}, nil
}

// Addr returns the listen address, or nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run listens on the configured address and accepts connections
// until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on a ready listener. Split out so tests
// can pass their own.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	slog.Info("server started", "address", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			slog.Error("failed to accept connection", "error", err)
			continue
		}

		id := s.nextConnID.Add(1)
		c := NewConn(id, conn, crypto.NewSession(s.key), s.cfg.StrictCrypto)
		slog.Info("new connection", "conn", id, "remote", conn.RemoteAddr())
		c.Start()
		s.game.Adopt(c)
	}
}
