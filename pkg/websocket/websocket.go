package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"SafeCircle/pkg/logger"

	"go.uber.org/zap"
)

// Message is the wire envelope between the hub and clients.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
	From      string      `json:"from,omitempty"`
	To        string      `json:"to,omitempty"`
	Topic     string      `json:"topic,omitempty"`
}

// Config tunes hub limits and keepalive behaviour.
type Config struct {
	MaxConnections    int64
	HeartbeatInterval time.Duration
	ConnectionTimeout time.Duration
	MessageBufferSize int
	ReadBufferSize    int
	WriteBufferSize   int
	MaxMessageSize    int
	MessageQueueSize  int
	// drop the frame instead of blocking when a client's send
	// buffer is full
	DropOnFull  bool
	SendTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxConnections:    100000,
		HeartbeatInterval: 30 * time.Second,
		ConnectionTimeout: 60 * time.Second,
		MessageBufferSize: 256,
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		MaxMessageSize:    4096,
		MessageQueueSize:  1000,
		DropOnFull:        true,
		SendTimeout:       50 * time.Millisecond,
	}
}

// Hub tracks connections by user and by topic. Topics carry the live
// streams: "watch:<participantID>" for presence, "sos:<sessionID>" for
// alert status.
type Hub struct {
	connections      map[string]*Connection
	userConnections  map[string]map[string]bool
	topicConnections map[string]map[string]bool

	broadcast  chan *Message
	register   chan *Connection
	unregister chan *Connection

	connectionCount int64
	config          *Config
	mu              sync.RWMutex
	ctx             context.Context
	cancel          context.CancelFunc
}

// NewHub creates and starts a hub.
func NewHub(config *Config) *Hub {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	hub := &Hub{
		connections:      make(map[string]*Connection),
		userConnections:  make(map[string]map[string]bool),
		topicConnections: make(map[string]map[string]bool),
		broadcast:        make(chan *Message, config.MessageQueueSize),
		register:         make(chan *Connection, 1000),
		unregister:       make(chan *Connection, 1000),
		config:           config,
		ctx:              ctx,
		cancel:           cancel,
	}

	go hub.run()
	return hub
}

func (h *Hub) run() {
	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case conn := <-h.register:
			h.registerConnection(conn)
		case conn := <-h.unregister:
			h.unregisterConnection(conn)
		case message := <-h.broadcast:
			if message.Timestamp == 0 {
				message.Timestamp = time.Now().Unix()
			}
			data, err := json.Marshal(message)
			if err != nil {
				logger.Error("marshal hub message", zap.Error(err))
				continue
			}
			h.mu.RLock()
			switch {
			case message.To != "":
				h.sendToUser(message.To, data)
			case message.Topic != "":
				h.sendToTopic(message.Topic, data)
			}
			h.mu.RUnlock()
		case <-ticker.C:
			h.checkHeartbeats()
		}
	}
}

// SendToUser delivers a message to every connection of one user.
func (h *Hub) SendToUser(userID string, msg *Message) {
	msg.To = userID
	select {
	case h.broadcast <- msg:
	default:
		logger.Warn("hub queue full, message dropped", zap.String("to", userID))
	}
}

// Publish delivers a message to every subscriber of a topic.
func (h *Hub) Publish(topic string, msg *Message) {
	msg.Topic = topic
	select {
	case h.broadcast <- msg:
	default:
		logger.Warn("hub queue full, message dropped", zap.String("topic", topic))
	}
}

func (h *Hub) registerConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if atomic.LoadInt64(&h.connectionCount) >= h.config.MaxConnections {
		conn.Conn.Close()
		logger.Warn("connection limit reached", zap.Int64("limit", h.config.MaxConnections))
		return
	}

	h.connections[conn.ID] = conn
	atomic.AddInt64(&h.connectionCount, 1)

	if conn.UserID != "" {
		if h.userConnections[conn.UserID] == nil {
			h.userConnections[conn.UserID] = make(map[string]bool)
		}
		h.userConnections[conn.UserID][conn.ID] = true
	}

	logger.Info("websocket registered",
		zap.String("conn", conn.ID),
		zap.String("user", conn.UserID),
		zap.Int64("connections", atomic.LoadInt64(&h.connectionCount)))
}

func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.connections[conn.ID]; !exists {
		return
	}
	delete(h.connections, conn.ID)
	atomic.AddInt64(&h.connectionCount, -1)

	if conn.UserID != "" && h.userConnections[conn.UserID] != nil {
		delete(h.userConnections[conn.UserID], conn.ID)
		if len(h.userConnections[conn.UserID]) == 0 {
			delete(h.userConnections, conn.UserID)
		}
	}

	for topic := range conn.Topics {
		h.removeFromTopicLocked(topic, conn.ID)
	}

	close(conn.Send)
	logger.Info("websocket unregistered",
		zap.String("conn", conn.ID),
		zap.Int64("connections", atomic.LoadInt64(&h.connectionCount)))
}

// joinTopic and leaveTopic are called from connection message handlers.
func (h *Hub) joinTopic(topic, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topicConnections[topic] == nil {
		h.topicConnections[topic] = make(map[string]bool)
	}
	h.topicConnections[topic][connID] = true
}

func (h *Hub) leaveTopic(topic, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromTopicLocked(topic, connID)
}

func (h *Hub) removeFromTopicLocked(topic, connID string) {
	if h.topicConnections[topic] != nil {
		delete(h.topicConnections[topic], connID)
		if len(h.topicConnections[topic]) == 0 {
			delete(h.topicConnections, topic)
		}
	}
}

func (h *Hub) sendToUser(userID string, data []byte) {
	for connID := range h.userConnections[userID] {
		if conn, ok := h.connections[connID]; ok && conn.IsAlive {
			h.trySend(conn, data)
		}
	}
}

func (h *Hub) sendToTopic(topic string, data []byte) {
	for connID := range h.topicConnections[topic] {
		if conn, ok := h.connections[connID]; ok && conn.IsAlive {
			h.trySend(conn, data)
		}
	}
}

func (h *Hub) trySend(conn *Connection, data []byte) {
	if h.config.DropOnFull {
		select {
		case conn.Send <- data:
		default:
			logger.Debug("send buffer full, frame dropped", zap.String("conn", conn.ID))
		}
		return
	}
	timeout := h.config.SendTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	select {
	case conn.Send <- data:
	case <-time.After(timeout):
		logger.Debug("send timed out, frame dropped", zap.String("conn", conn.ID))
	}
}

func (h *Hub) checkHeartbeats() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := time.Now()
	for _, conn := range h.connections {
		if now.Sub(conn.LastPing) > h.config.ConnectionTimeout {
			logger.Warn("heartbeat timeout, closing", zap.String("conn", conn.ID))
			conn.IsAlive = false
			conn.Conn.Close()
		}
	}
}

// GetConnectionCount returns the number of live connections.
func (h *Hub) GetConnectionCount() int64 {
	return atomic.LoadInt64(&h.connectionCount)
}

// GetUserConnections returns how many connections a user holds.
func (h *Hub) GetUserConnections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConnections[userID])
}

// GetTopicConnections returns how many connections follow a topic.
func (h *Hub) GetTopicConnections(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topicConnections[topic])
}

// Close shuts the hub down and closes every connection.
func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	for _, conn := range h.connections {
		conn.Conn.Close()
	}
	h.mu.Unlock()

	logger.Info("websocket hub closed")
}
