package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// DashboardClient is a read-only event stream consumer. On connect it
// receives the current state snapshot, then live pipeline events as
// they happen.
type DashboardClient struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan WriteData
	logger *zap.Logger
}

// HandleDashboardWebSocket upgrades a dashboard request and starts the
// connection's pumps.
func HandleDashboardWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &DashboardClient{
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, 256),
		logger: logger,
	}

	client.sendSnapshot()
	client.hub.registerDashboard <- client

	go client.writePump()
	go client.readPump()

	return nil
}

// sendSnapshot queues the initial state frame before live events start
func (c *DashboardClient) sendSnapshot() {
	snapshot := c.hub.service.Snapshot()
	payload, err := json.Marshal(map[string]interface{}{
		"type":     "snapshot",
		"snapshot": snapshot,
	})
	if err != nil {
		c.logger.Error("Failed to marshal snapshot", zap.Error(err))
		return
	}
	c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}
}

// readPump discards inbound frames; it exists to run the pong handler
// and detect the close.
func (c *DashboardClient) readPump() {
	defer func() {
		c.hub.unregisterDashboard <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
	}
}

func (c *DashboardClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
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
