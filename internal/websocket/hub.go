package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSeatsSold    MessageType = "seats_sold"
	MessageTypeCostsUpdated MessageType = "costs_updated"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// SeatUpdate represents a seat availability change
type SeatUpdate struct {
	SeatNumber  int  `json:"seatNumber"`
	IsAvailable bool `json:"isAvailable"`
}

// Message represents a WebSocket message
type Message struct {
	Type      MessageType  `json:"type"`
	FlightID  string       `json:"flightId"`
	Seats     []SeatUpdate `json:"seats,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// Client represents a WebSocket client connection
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	flightID string
}

// Hub fans seat updates out to the clients watching each flight
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// NewHub creates a new Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for flightID, clients := range h.clients {
				for client := range clients {
					close(client.send)
				}
				delete(h.clients, flightID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.flightID] == nil {
				h.clients[client.flightID] = make(map[*Client]bool)
			}
			h.clients[client.flightID][client] = true
			h.logger.Debug("WebSocket client registered",
				zap.String("flight_id", client.flightID),
				zap.Int("total", len(h.clients[client.flightID])))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.logger.Error("Failed to marshal websocket message", zap.Error(err))
				continue
			}

			h.mu.Lock()
			clients := h.clients[message.FlightID]
			h.logger.Debug("Broadcasting websocket message",
				zap.String("type", string(message.Type)),
				zap.String("flight_id", message.FlightID),
				zap.Int("clients", len(clients)))
			for client := range clients {
				select {
				case client.send <- data:
				default:
					// Slow consumer
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.clients[client.flightID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.flightID)
	}
}

func (h *Hub) enqueue(msg *Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("WebSocket broadcast queue full, dropping message",
			zap.String("type", string(msg.Type)),
			zap.String("flight_id", msg.FlightID))
	}
}

// SeatsSold tells watchers of flightID that the given seats are gone
func (h *Hub) SeatsSold(flightID string, seatNumbers []int) {
	seats := make([]SeatUpdate, len(seatNumbers))
	for i, n := range seatNumbers {
		seats[i] = SeatUpdate{SeatNumber: n, IsAvailable: false}
	}

	h.enqueue(&Message{
		Type:      MessageTypeSeatsSold,
		FlightID:  flightID,
		Seats:     seats,
		Timestamp: time.Now().UnixMilli(),
	})
}

// CostsUpdated tells watchers that the flight's prices changed
func (h *Hub) CostsUpdated(flightID string) {
	h.enqueue(&Message{
		Type:      MessageTypeCostsUpdated,
		FlightID:  flightID,
		Message:   "Seat prices have changed",
		Timestamp: time.Now().UnixMilli(),
	})
}

// ClientCount returns the number of clients watching a flight
func (h *Hub) ClientCount(flightID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[flightID])
}

// HandleWebSocket upgrades the request and subscribes it to flightID
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, flightID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("flight_id", flightID), zap.Error(err))
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 64),
		flightID: flightID,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only drains control frames; clients never send data
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
