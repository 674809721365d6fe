// ABOUTME: HTTP server exposing the passthrough's live state
// ABOUTME: Serves Prometheus /metrics and a websocket /status feed, optionally advertised via mDNS
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-pitch/internal/app"
	"github.com/Resonate-Protocol/resonate-pitch/internal/discovery"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultInterval is the status push period
const DefaultInterval = 500 * time.Millisecond

// Config holds server configuration
type Config struct {
	Addr       string
	Name       string
	EnableMDNS bool
	// Interval between status messages (default DefaultInterval)
	Interval time.Duration
}

// StatusSource provides the snapshots pushed to clients
type StatusSource interface {
	Status() app.Status
}

// Server serves /metrics and /status
type Server struct {
	config   Config
	serverID string
	source   StatusSource

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// HTTP server
	httpServer *http.Server
	mux        *http.ServeMux
	addr       net.Addr
	ready      chan struct{}

	// Feed clients; closing rejects new ones
	clients   map[*Client]struct{}
	clientsMu sync.Mutex
	closing   bool

	// mDNS discovery
	mdnsManager *discovery.Manager

	// Control
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Client is one /status subscriber
type Client struct {
	Conn       *websocket.Conn
	RemoteAddr string
	done       chan struct{}
}

// New creates a server reading snapshots from source
func New(config Config, source StatusSource) *Server {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		source:   source,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The feed is read-only; browsers on the LAN may subscribe
				origin := r.Header.Get("Origin")
				if origin != "" && origin != "http://localhost" && origin != "http://127.0.0.1" {
					log.Printf("Accepting status feed from origin: %s", origin)
				}
				return true
			},
		},
		clients:  make(map[*Client]struct{}),
		ready:    make(chan struct{}),
		stopChan: make(chan struct{}),
	}

	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/status", s.handleWebSocket)

	return s
}

// Handler returns the HTTP handler with every route
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Ready is closed once the listener is bound
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, valid after Ready
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Start listens and serves until ctx is cancelled, Stop is called or the
// server fails
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}
	s.addr = ln.Addr()
	close(s.ready)

	log.Printf("Status server listening on %s (ID: %s)", s.addr, s.serverID)

	if s.config.EnableMDNS {
		s.startMDNS()
	}

	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		log.Printf("Status server shutting down...")
	case <-s.stopChan:
		log.Printf("Status server shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Hijacked websocket connections are not closed by Shutdown
	s.clientsMu.Lock()
	s.closing = true
	for client := range s.clients {
		client.Conn.Close()
	}
	s.clientsMu.Unlock()

	s.wg.Wait()
	log.Printf("Status server stopped")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Server) startMDNS() {
	_, portStr, err := net.SplitHostPort(s.addr.String())
	if err != nil {
		log.Printf("Failed to start mDNS advertisement: %v", err)
		return
	}
	port, _ := strconv.Atoi(portStr)

	s.mdnsManager = discovery.NewManager(discovery.Config{
		ServiceName: s.config.Name,
		Port:        port,
		Info:        []string{"server_id=" + s.serverID},
	})

	if err := s.mdnsManager.Advertise(); err != nil {
		log.Printf("Failed to start mDNS advertisement: %v", err)
	} else {
		log.Printf("mDNS advertisement started")
	}
}

// ClientCount returns the number of connected feed clients
func (s *Server) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// handleWebSocket upgrades a /status request
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.Lock()
	closing := s.closing
	s.clientsMu.Unlock()
	if closing {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("Status subscriber connected from %s", r.RemoteAddr)

	client := &Client{
		Conn:       conn,
		RemoteAddr: r.RemoteAddr,
		done:       make(chan struct{}),
	}

	s.clientsMu.Lock()
	if s.closing {
		s.clientsMu.Unlock()
		conn.Close()
		return
	}
	s.clients[client] = struct{}{}
	s.wg.Add(2)
	s.clientsMu.Unlock()

	go func() {
		defer s.wg.Done()
		s.clientWriter(client)
	}()

	defer s.wg.Done()
	s.handleConnection(client)
}

// handleConnection reads until the client goes away. Clients send nothing
// meaningful; reading keeps control frames flowing.
func (s *Server) handleConnection(client *Client) {
	defer func() {
		close(client.done)
		s.clientsMu.Lock()
		delete(s.clients, client)
		s.clientsMu.Unlock()
		client.Conn.Close()
		log.Printf("Status subscriber disconnected: %s", client.RemoteAddr)
	}()

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

// clientWriter sends the hello and then a status message every interval
func (s *Server) clientWriter(client *Client) {
	const writeDeadline = 10 * time.Second

	write := func(msgType string, payload interface{}) error {
		data, err := json.Marshal(Message{Type: msgType, Payload: payload})
		if err != nil {
			return err
		}
		client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		return client.Conn.WriteMessage(websocket.TextMessage, data)
	}

	if err := write("server/hello", newHello(s.serverID, s.config.Name, s.config.Interval)); err != nil {
		log.Printf("Error sending server hello: %v", err)
		return
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		if err := write("server/status", newStatus(s.source.Status(), time.Now())); err != nil {
			return
		}

		select {
		case <-ticker.C:
		case <-client.done:
			return
		}
	}
}
