package netsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"dsrec/internal/capture"
	"dsrec/internal/logging"
)

// ServerConfig addresses the broadcast destination.
type ServerConfig struct {
	BroadcastAddr string
	Port          int
}

// Server broadcasts session control from the master node.
type Server struct {
	conn   *net.UDPConn
	dest   *net.UDPAddr
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	identity capture.Identity
}

// NewServer opens a broadcast-capable UDP socket on an ephemeral port.
func NewServer(cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	dest, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(cfg.BroadcastAddr, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("resolve broadcast address: %w", err)
	}
	lc := net.ListenConfig{Control: serverSocketControl}
	pc, err := lc.ListenPacket(context.Background(), "udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("open sync server socket: %w", err)
	}
	logger = logging.NewComponentLogger(logger, "netsync")
	logger.Info("sync server ready",
		logging.String("broadcast", dest.String()),
		logging.String("local", pc.LocalAddr().String()),
	)
	return &Server{
		conn:   pc.(*net.UDPConn),
		dest:   dest,
		logger: logger,
		now:    time.Now,
	}, nil
}

// SetIdentity replaces the cached identity sent with every message.
func (s *Server) SetIdentity(id capture.Identity) {
	s.mu.Lock()
	s.identity = id
	s.mu.Unlock()
}

// Identity returns the cached identity.
func (s *Server) Identity() capture.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// NotifyUpdate broadcasts the cached identity.
func (s *Server) NotifyUpdate() error { return s.broadcast(ControlUpdate) }

// NotifyRecord broadcasts a session start.
func (s *Server) NotifyRecord() error { return s.broadcast(ControlRecord) }

// NotifyStop broadcasts a session stop.
func (s *Server) NotifyStop() error { return s.broadcast(ControlStop) }

// NotifyCancel broadcasts a session cancel.
func (s *Server) NotifyCancel() error { return s.broadcast(ControlCancel) }

func (s *Server) broadcast(ctrl Control) error {
	msg := NewMessage(ctrl, s.Identity(), s.now())
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", ctrl, err)
	}
	if _, err := s.conn.WriteToUDP(data, s.dest); err != nil {
		return fmt.Errorf("broadcast %s: %w", ctrl, err)
	}
	s.logger.Debug("sync message sent",
		logging.String("ctrl", string(ctrl)),
		logging.String("peer", s.dest.String()),
	)
	return nil
}

// Close releases the socket.
func (s *Server) Close() error {
	return s.conn.Close()
}
