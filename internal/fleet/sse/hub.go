package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// 事件类型
const (
	EventInventoryUpdate = "inventory_update"
	EventOutboundUpdate  = "outbound_update"
	EventDeviceUpdate    = "device_update"
)

// Event represents a Server-Sent Event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client represents a connected SSE client
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub manages all SSE client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// NewHub creates a new SSE Hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("SSE client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)))
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("SSE client unregistered", zap.String("client_id", clientID), zap.Int("total", len(h.clients)))
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to all connected clients
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("SSE client buffer full, skipping event", zap.String("client_id", client.ID))
		}
	}
}

func (h *Hub) publish(eventType string, payload map[string]string) {
	data, _ := json.Marshal(payload)
	h.Broadcast(Event{EventType: eventType, Data: string(data)})
}

// PublishInventoryUpdate 库存变化
func (h *Hub) PublishInventoryUpdate(action string) {
	h.publish(EventInventoryUpdate, map[string]string{"action": action})
}

// PublishOutboundUpdate 出库单变化
func (h *Hub) PublishOutboundUpdate(recordID, deviceID, action string) {
	h.publish(EventOutboundUpdate, map[string]string{"record_id": recordID, "device_id": deviceID, "action": action})
}

// PublishDeviceUpdate 设备变化
func (h *Hub) PublishDeviceUpdate(deviceID, action string) {
	h.publish(EventDeviceUpdate, map[string]string{"device_id": deviceID, "action": action})
}
