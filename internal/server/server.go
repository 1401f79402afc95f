package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/botfelt/botfelt/internal/auth"
)

const (
	// connReapInterval drives the periodic check for dead-quiet clients.
	connReapInterval = time.Minute

	// maxConnIdle is how long a client may go without sending any message
	// before the server closes its connection. The seat survives the close
	// and can be rebound by reconnecting.
	maxConnIdle = 30 * time.Minute
)

// Server accepts websocket clients and hands each one to a Connection bound
// to the shared controller.
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	controller  *GameController
	botAuth     auth.BotAuth
	clock       quartz.Clock
	httpServer  *http.Server
}

// NewServer creates the websocket front end.
func NewServer(addr string, logger *log.Logger, controller *GameController, botAuth auth.BotAuth, clock quartz.Clock) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Bot clients connect from anywhere.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
		controller:  controller,
		botAuth:     botAuth,
		clock:       clock,
	}
}

// Start serves websocket upgrades until Stop or listener failure.
func (s *Server) Start() error {
	go s.run()
	go s.reapLoop()
	s.controller.StartSweeper()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}
	s.logger.Info("starting websocket server", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the listener and every connection down.
func (s *Server) Stop() error {
	s.cancel()

	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.controller.Shutdown()
	return nil
}

func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("client connected", "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			_, ok := s.connections[conn]
			if ok {
				delete(s.connections, conn)
			}
			total := len(s.connections)
			s.mu.Unlock()

			if ok {
				conn.Cleanup()
				_ = conn.Close()
				s.logger.Info("client disconnected", "player", conn.PlayerID(), "total", total)
			}

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) reapLoop() {
	ticker := s.clock.NewTicker(connReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.reapIdleConnections()
		case <-s.ctx.Done():
			return
		}
	}
}

// reapIdleConnections closes clients that have sent nothing for maxConnIdle.
// The close runs the normal unregister path, so the seat stays for a later
// reconnect.
func (s *Server) reapIdleConnections() {
	s.mu.RLock()
	conns := make([]*Connection, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.mu.RUnlock()

	now := s.clock.Now()
	for _, conn := range conns {
		if now.Sub(conn.LastActive()) > maxConnIdle {
			s.logger.Info("closing inactive connection", "player", conn.PlayerID())
			_ = conn.Close()
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.logger, s.controller, s.botAuth, s.clock)
	s.register <- client
	client.Start()

	go func() {
		<-client.ctx.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

// ConnectionCount returns how many clients are connected.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}
