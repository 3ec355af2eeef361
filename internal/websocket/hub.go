package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lumenlabs/lumen-server/domain/repositories"
	"github.com/lumenlabs/lumen-server/internal/assistant"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WriteData is one queued outbound websocket frame.
// Type is websocket.TextMessage or websocket.BinaryMessage.
type WriteData struct {
	Type    int
	Payload []byte
}

// Hub maintains the set of connected glasses and dashboard clients. It
// implements assistant.EventSink: pipeline events fan out to every
// dashboard connection as they happen.
type Hub struct {
	// Registered device clients, keyed by user ID.
	devices map[string]*DeviceClient

	// Registered dashboard clients.
	dashboards map[*DashboardClient]bool

	register            chan *DeviceClient
	unregister          chan *DeviceClient
	registerDashboard   chan *DashboardClient
	unregisterDashboard chan *DashboardClient

	mu sync.RWMutex

	service *assistant.Service
	stt     repositories.SpeechToText

	logger *zap.Logger
}

var _ assistant.EventSink = (*Hub)(nil)

// NewHub creates a new WebSocket hub. The assistant service is attached
// after construction via SetService, because the hub is the service's
// event sink and the two reference each other.
func NewHub(stt repositories.SpeechToText, logger *zap.Logger) *Hub {
	return &Hub{
		devices:             make(map[string]*DeviceClient),
		dashboards:          make(map[*DashboardClient]bool),
		register:            make(chan *DeviceClient),
		unregister:          make(chan *DeviceClient),
		registerDashboard:   make(chan *DashboardClient),
		unregisterDashboard: make(chan *DashboardClient),
		stt:                 stt,
		logger:              logger,
	}
}

// SetService attaches the assistant pipeline
func (h *Hub) SetService(service *assistant.Service) {
	h.service = service
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if prev, ok := h.devices[client.userID]; ok {
				// A reconnect replaces the stale connection
				close(prev.send)
				h.service.UnregisterSession(prev.userID)
			}
			h.devices[client.userID] = client
			h.mu.Unlock()
			h.service.RegisterSession(client.userID, client, client.captureRef)
			h.logger.Info("Device registered", zap.String("userID", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			current, ok := h.devices[client.userID]
			if ok && current == client {
				delete(h.devices, client.userID)
				close(client.send)
			}
			h.mu.Unlock()
			if ok && current == client {
				h.service.UnregisterSession(client.userID)
				h.logger.Info("Device unregistered", zap.String("userID", client.userID))
			}

		case client := <-h.registerDashboard:
			h.mu.Lock()
			h.dashboards[client] = true
			h.mu.Unlock()
			h.logger.Info("Dashboard client registered")

		case client := <-h.unregisterDashboard:
			h.mu.Lock()
			if _, ok := h.dashboards[client]; ok {
				delete(h.dashboards, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Dashboard client unregistered")
		}
	}
}

// Publish implements assistant.EventSink: events stream to every
// connected dashboard. Slow dashboards drop frames rather than stall
// the pipeline.
func (h *Hub) Publish(ev assistant.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.dashboards {
		select {
		case client.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		default:
			h.logger.Warn("Dashboard client send buffer full, dropping event")
		}
	}
}

// Device returns the connected device client for a user
func (h *Hub) Device(userID string) (*DeviceClient, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.devices[userID]
	return client, ok
}

// ConnectedDevices returns the number of connected glasses
func (h *Hub) ConnectedDevices() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.devices)
}
