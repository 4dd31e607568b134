// Package ws broadcasts spins and alerts to websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"SpinTrack/internal/domain/models"
	"SpinTrack/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Event is the frame written to clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans events out to every connected client. A client whose buffer is
// full is disconnected.
type Hub struct {
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		log: log.With(logger.String("component", "ws_hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.serve)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SpinRecorded broadcasts a spin event.
func (h *Hub) SpinRecorded(_ context.Context, s models.Spin) {
	h.broadcast(Event{Type: "spin", Data: s})
}

// PublishAlert broadcasts an alert event.
func (h *Hub) PublishAlert(_ context.Context, ev models.AlertEvent) error {
	h.broadcast(Event{Type: "alert", Data: ev})
	return nil
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
	return nil
}

func (h *Hub) serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("upgrade failed", logger.Error(err))
		return nil
	}
	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("client connected", logger.String("remote", c.RealIP()))

	go h.writeLoop(cl)
	h.readLoop(cl)
	return nil
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *Hub) readLoop(cl *client) {
	defer h.remove(cl)
	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer cl.conn.Close()
	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) broadcast(ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal event", logger.String("type", ev.Type), logger.Error(err))
		return
	}
	var slow []*client
	h.mu.RLock()
	for cl := range h.clients {
		select {
		case cl.send <- b:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()
	for _, cl := range slow {
		h.log.Warn("dropping slow client")
		h.remove(cl)
	}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	_, ok := h.clients[cl]
	delete(h.clients, cl)
	h.mu.Unlock()
	if ok {
		cl.close()
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}
