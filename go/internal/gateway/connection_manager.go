package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timing/go/internal/textfmt"
)

// ConnectionManager tracks observer websocket connections and is the
// notification sink for countdown broadcasts and kicks.
type ConnectionManager struct {
	// Connection pools organized by observer identity
	connections map[string]map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan Message
}

// Connection represents a WebSocket connection to an observer
type Connection struct {
	ID       string
	Identity string
	Conn     *websocket.Conn
	Send     chan outbound
	Manager  *ConnectionManager

	done      chan struct{}
	closeOnce sync.Once

	ConnectedAt time.Time
}

// outbound is one queued write. A closing write ends the connection with a
// close frame carrying reason.
type outbound struct {
	data    []byte
	closing bool
	reason  string
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  64,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConnectionConfig().SendBufferSize
	}
	return &ConnectionManager{
		connections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan Message, 256),
	}
}

// Start processes broadcasts until ctx is cancelled, then closes every connection.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			cm.closeAll()
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket for identity
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, identity string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Identity:    identity,
		Conn:        conn,
		Send:        make(chan outbound, cm.config.SendBufferSize),
		Manager:     cm,
		done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("identity", identity).
		Msg("observer connected")

	return nil
}

func identityKey(identity string) string {
	return strings.ToLower(identity)
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	key := identityKey(conn.Identity)
	if cm.connections[key] == nil {
		cm.connections[key] = make(map[*Connection]bool)
	}
	cm.connections[key][conn] = true
}

// unregisterConnection removes a connection and signals its pumps to stop.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	key := identityKey(conn.Identity)
	removed := false
	if pool, exists := cm.connections[key]; exists {
		if _, exists := pool[conn]; exists {
			delete(pool, conn)
			removed = true
			if len(pool) == 0 {
				delete(cm.connections, key)
			}
		}
	}
	cm.mu.Unlock()

	conn.closeOnce.Do(func() { close(conn.done) })

	if removed {
		log.Info().
			Str("connection_id", conn.ID).
			Str("identity", conn.Identity).
			Msg("observer disconnected")
	}
}

func (cm *ConnectionManager) snapshot(filter func(key string) bool) []*Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	var out []*Connection
	for key, pool := range cm.connections {
		if filter != nil && !filter(key) {
			continue
		}
		for conn := range pool {
			out = append(out, conn)
		}
	}
	return out
}

// NotifyAll queues text for every observer. It never blocks.
func (cm *ConnectionManager) NotifyAll(text string) {
	select {
	case cm.broadcastCh <- newMessage(MessageTypeNotice, text):
	default:
		log.Warn().Msg("broadcast channel full, dropping notice")
	}
}

// Observers returns the identities of every connected observer.
func (cm *ConnectionManager) Observers() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, pool := range cm.connections {
		for conn := range pool {
			if !seen[conn.Identity] {
				seen[conn.Identity] = true
				out = append(out, conn.Identity)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Disconnect sends text to every connection of identity and then closes them.
func (cm *ConnectionManager) Disconnect(identity, text string) error {
	key := identityKey(identity)
	targets := cm.snapshot(func(k string) bool { return k == key })
	if len(targets) == 0 {
		return fmt.Errorf("%w: %s", ErrObserverNotFound, identity)
	}

	data, err := json.Marshal(newMessage(MessageTypeDisconnect, text))
	if err != nil {
		return fmt.Errorf("marshal disconnect: %w", err)
	}
	msg := outbound{data: data, closing: true, reason: closeReason(textfmt.Plain(text))}

	for _, conn := range targets {
		if !conn.enqueue(msg) {
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}
	return nil
}

func (cm *ConnectionManager) handleBroadcast(message Message) {
	targets := cm.snapshot(nil)
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal notice for broadcast")
		return
	}

	for _, conn := range targets {
		if !conn.enqueue(outbound{data: data}) {
			log.Warn().
				Str("connection_id", conn.ID).
				Str("identity", conn.Identity).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().Int("connections", len(targets)).Msg("notice broadcasted")
}

func (cm *ConnectionManager) closeAll() {
	for _, conn := range cm.snapshot(nil) {
		cm.unregisterConnection(conn)
	}
}

// ConnectionStats summarizes active connections
type ConnectionStats struct {
	TotalConnections int `json:"total_connections"`
	Observers        int `json:"observers"`
}

// Stats returns statistics about active connections
func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{Observers: len(cm.connections)}
	for _, pool := range cm.connections {
		stats.TotalConnections += len(pool)
	}
	return stats
}

func (c *Connection) enqueue(msg outbound) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case msg := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}
			if msg.closing {
				c.writeClose(msg.reason)
				return
			}

		case <-c.done:
			c.writeClose("")
			return

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Connection) writeClose(reason string) {
	frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	deadline := time.Now().Add(c.Manager.config.WriteTimeout)
	if err := c.Conn.WriteControl(websocket.CloseMessage, frame, deadline); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to write close frame")
	}
}

// readPump drains the connection so control frames are processed; observers
// have nothing to say to the server.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			return
		}
		log.Debug().
			Str("connection_id", c.ID).
			Str("identity", c.Identity).
			Int("bytes", len(message)).
			Msg("ignoring observer message")
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
