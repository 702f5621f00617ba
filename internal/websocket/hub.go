// Package websocket pushes dashboard updates to the browser tabs of a
// session.
package websocket

import (
	"encoding/json"
	"fmt"
	"sync"

	"nedwiyt/internal/core"
	"nedwiyt/internal/log"
)

// Stats is the JSON form of the dashboard figures. Money is rendered with
// two decimals.
type Stats struct {
	TotalCategories int    `json:"total_categories"`
	TotalItems      int    `json:"total_items"`
	TotalRevenue    string `json:"total_revenue"`
	TotalCost       string `json:"total_cost"`
	Profit          string `json:"profit"`
	LowStockItems   int    `json:"low_stock_items"`
}

func NewStats(s core.DashboardStats) Stats {
	return Stats{
		TotalCategories: s.TotalCategories,
		TotalItems:      s.TotalItems,
		TotalRevenue:    core.FormatAmount(s.TotalRevenue),
		TotalCost:       core.FormatAmount(s.TotalCost),
		Profit:          core.FormatAmount(s.Profit),
		LowStockItems:   s.LowStockItems,
	}
}

// Message is one notification sent to a session's clients.
type Message struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
	Stats  Stats  `json:"stats"`
}

func NewMessage(entity, action, id string, stats core.DashboardStats) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Stats:  NewStats(stats),
	}
}

// Hub tracks connected clients grouped by topic. A topic is a session key,
// so updates reach only the tabs of the session that made the change.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]struct{}
	logger *log.Logger
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Discard()
	}
	return &Hub{
		topics: make(map[string]map[*Client]struct{}),
		logger: logger.WithComponent(log.ComponentWebsocket),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.topics[c.topic]
	if !ok {
		set = make(map[*Client]struct{})
		h.topics[c.topic] = set
	}
	set[c] = struct{}{}
}

// Unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.topics[c.topic]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.topics, c.topic)
	}
}

// Publish sends msg to every client subscribed to topic. Clients whose
// buffer is full miss the message.
func (h *Hub) Publish(topic string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal websocket message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.topics[topic] {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("Dropped websocket message for slow client", "type", msg.Type)
		}
	}
}

// ClientCount returns the number of connected clients across all topics.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.topics {
		n += len(set)
	}
	return n
}

// TopicCount returns the number of topics with at least one client.
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}
