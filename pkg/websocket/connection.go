package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"SafeCircle/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Connection is one client socket. Topics holds the streams this
// client follows ("watch:<id>", "sos:<sessionID>").
type Connection struct {
	ID       string
	UserID   string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
	LastPing time.Time
	IsAlive  bool
	mu       sync.RWMutex
	Topics   map[string]bool
}

func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			// origin policy belongs to the reverse proxy
			return true
		},
	}
}

// HandleWebSocket upgrades the request and attaches the connection to
// the hub.
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	upgrader := newUpgrader(hub.config)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	connection := &Connection{
		ID:       "conn_" + uuid.NewString(),
		UserID:   userID,
		Conn:     conn,
		Send:     make(chan []byte, hub.config.MessageBufferSize),
		Hub:      hub,
		LastPing: time.Now(),
		IsAlive:  true,
		Topics:   make(map[string]bool),
	}

	hub.register <- connection

	go connection.writePump()
	go connection.readPump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(int64(c.Hub.config.MaxMessageSize))
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ConnectionTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.LastPing = time.Now()
		c.mu.Unlock()
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ConnectionTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("websocket read error", zap.Error(err))
			}
			break
		}
		c.handleMessage(message)
	}
}

func (c *Connection) writePump() {
	interval := c.Hub.config.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(time.Duration(float64(interval) * 0.9))
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			// drain anything queued behind it
			n := len(c.Send)
			for i := 0; i < n; i++ {
				_, _ = w.Write([]byte{'\n'})
				_, _ = w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Error("websocket message parse failed", zap.Error(err))
		return
	}

	msg.From = c.UserID

	switch msg.Type {
	case "ping":
		c.handlePing()
	case "watch":
		c.handleWatch(msg)
	case "unwatch":
		c.handleUnwatch(msg)
	default:
		logger.Warn("unknown websocket message type", zap.String("type", msg.Type))
	}
}

func (c *Connection) handlePing() {
	c.mu.Lock()
	c.LastPing = time.Now()
	c.mu.Unlock()

	c.reply(Message{Type: "pong", Timestamp: time.Now().Unix()})
}

func (c *Connection) handleWatch(msg Message) {
	topic, ok := msg.Data.(string)
	if !ok || topic == "" {
		logger.Warn("invalid watch topic", zap.Any("data", msg.Data))
		return
	}

	c.Watch(topic)
	c.reply(Message{Type: "watching", Data: topic, Timestamp: time.Now().Unix()})
}

func (c *Connection) handleUnwatch(msg Message) {
	topic, ok := msg.Data.(string)
	if !ok || topic == "" {
		logger.Warn("invalid unwatch topic", zap.Any("data", msg.Data))
		return
	}

	c.Unwatch(topic)
	c.reply(Message{Type: "unwatched", Data: topic, Timestamp: time.Now().Unix()})
}

func (c *Connection) reply(msg Message) {
	data, _ := json.Marshal(msg)
	select {
	case c.Send <- data:
	default:
		logger.Warn("send buffer full", zap.String("conn", c.ID))
	}
}

// Watch subscribes the connection to a topic.
func (c *Connection) Watch(topic string) {
	c.mu.Lock()
	c.Topics[topic] = true
	c.mu.Unlock()

	c.Hub.joinTopic(topic, c.ID)
}

// Unwatch removes the subscription. Safe to call repeatedly.
func (c *Connection) Unwatch(topic string) {
	c.mu.Lock()
	delete(c.Topics, topic)
	c.mu.Unlock()

	c.Hub.leaveTopic(topic, c.ID)
}

// IsWatching reports whether the connection follows a topic.
func (c *Connection) IsWatching(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Topics[topic]
}
