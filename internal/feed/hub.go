package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"slices"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/matthewbaird/walletledger/internal/event"
)

// clientBuffer is how many events may wait for a slow client before
// further events to it are dropped.
const clientBuffer = 64

type client struct {
	id     string
	events chan event.DomainEvent

	mu         sync.RWMutex
	categories []string
	walletIDs  []string
}

func (c *client) setFilter(d SubscribeData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories = d.Categories
	c.walletIDs = d.WalletIDs
}

func (c *client) wants(evt event.DomainEvent) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.categories) > 0 && !slices.Contains(c.categories, evt.Category) {
		return false
	}
	if len(c.walletIDs) == 0 {
		return true
	}
	for _, ref := range evt.AffectedEntities {
		if ref.EntityType == "wallet" && slices.Contains(c.walletIDs, ref.EntityID) {
			return true
		}
	}
	return false
}

// Hub fans domain events out to connected WebSocket clients. It is an
// event bus subscriber and an http.Handler.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// HandleEvent queues evt for every interested client. It never blocks.
func (h *Hub) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.wants(evt) {
			continue
		}
		select {
		case c.events <- evt:
		default:
			log.Printf("feed: client %s is behind, dropping %s", c.id, evt.EventType)
		}
	}
	return nil
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades to WebSocket and streams events until either side
// closes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("feed: websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	c := &client{id: uuid.New().String(), events: make(chan event.DomainEvent, clientBuffer)}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.send(ctx, conn, ServerMessage{Type: "session", Data: SessionData{SessionID: c.id}})

	go func() {
		defer cancel()
		h.readLoop(ctx, conn, c)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-c.events:
			h.send(ctx, conn, ServerMessage{Type: "event", Data: evt})
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("feed: connection closed: %v", websocket.CloseStatus(err))
			}
			return
		}

		switch msg.Type {
		case "subscribe":
			var data SubscribeData
			if len(msg.Data) > 0 {
				if err := json.Unmarshal(msg.Data, &data); err != nil {
					h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid subscribe data")
					continue
				}
			}
			c.setFilter(data)
			h.send(ctx, conn, ServerMessage{Type: "subscribed", RequestID: msg.ID, Data: data})
		case "ping":
			h.send(ctx, conn, ServerMessage{Type: "pong", RequestID: msg.ID})
		default:
			h.sendError(ctx, conn, msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

func (h *Hub) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		log.Printf("feed: write error: %v", err)
	}
}

func (h *Hub) sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string) {
	h.send(ctx, conn, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data:      ErrorData{Code: code, Message: message},
	})
}
