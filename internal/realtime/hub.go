// Package realtime pushes committed order events to the kitchen, expedition
// and delivery boards over SockJS.
package realtime

import (
	"encoding/json"
	"expvar"
	"log"
	"sync"
	"time"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/service"
)

// Subscription narrows the events a board receives. Empty fields match
// everything.
type Subscription struct {
	Queue     string
	EditionID string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	now     func() time.Time
}

type SubscribeMessage struct {
	Action    string `json:"action"`
	Queue     string `json:"queue"`
	EditionID string `json:"edition_id"`
}

type Envelope struct {
	Type      string       `json:"type"`
	Payload   models.Order `json:"payload"`
	CreatedAt time.Time    `json:"created_at"`
}

var _ service.OrderEvents = (*Hub)(nil)

var droppedMessages = expvar.NewInt("realtime_dropped_total")

func New() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishOrder fans an order event out to every matching board. Slow
// clients lose the message instead of blocking the publisher.
func (h *Hub) PublishOrder(eventType string, order models.Order) {
	payload, err := json.Marshal(Envelope{Type: eventType, Payload: order, CreatedAt: h.now()})
	if err != nil {
		log.Printf("realtime encode error order_id=%s err=%v", order.OrderID, err)
		return
	}
	h.Broadcast(payload, order)
}

func (h *Hub) Broadcast(payload []byte, order models.Order) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription, order) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			droppedMessages.Add(1)
			log.Printf("realtime drop client_id=%s queue=%s order_id=%s", client.ID, client.Subscription.Queue, order.OrderID)
		}
	}
}

// match keeps every event of an order that can ever appear on the board, so
// a board also learns when an order leaves it.
func match(sub Subscription, order models.Order) bool {
	if sub.EditionID != "" && order.EditionID != sub.EditionID {
		return false
	}
	if sub.Queue == "" {
		return true
	}
	filter, ok := service.QueueFilter(sub.Queue)
	if !ok {
		return false
	}
	if filter.Televendas != nil && *filter.Televendas != order.IsTelevendas {
		return false
	}
	return true
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	if msg.Action == "subscribe" && msg.Queue != "" {
		if _, ok := service.QueueFilter(msg.Queue); !ok {
			return SubscribeMessage{}, false
		}
	}
	return msg, true
}
