package udp

import (
	"net"
	"sync"

	"vblock/pkg/exception"
)

// Server owns one bound UDP socket.
type Server struct {
	addr *net.UDPAddr

	mu   sync.Mutex
	conn *net.UDPConn
}

// NewServer creates a server for the provided host:port. Port 0 picks a free port on Listen.
func NewServer(address string) (*Server, error) {
	if address == "" {
		return nil, exception.ErrEmptyAddressUDP
	}
	addr, err := net.ResolveUDPAddr(udpNetwork, address)
	if err != nil {
		return nil, err
	}
	return &Server{addr: addr}, nil
}

// Addr returns the bound address once listening, the configured one before.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn.LocalAddr().String()
	}
	return s.addr.String()
}

// Listen binds the socket.
func (s *Server) Listen() error {
	if s == nil {
		return exception.ErrNilServer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return exception.ErrServerListening
	}
	conn, err := net.ListenUDP(udpNetwork, s.addr)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// Conn returns the bound socket.
func (s *Server) Conn() (*net.UDPConn, error) {
	if s == nil {
		return nil, exception.ErrNilServer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, exception.ErrServerNotListen
	}
	return s.conn, nil
}

// Close releases the socket.
func (s *Server) Close() error {
	if s == nil {
		return exception.ErrNilServer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
