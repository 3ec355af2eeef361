package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lumenlabs/lumen-server/domain/repositories"
)

// DeviceClient is a middleman between one glasses connection and the
// hub. It implements repositories.DeviceConn: outbound frames are
// queued on a buffered channel drained by writePump, so pipeline
// goroutines never block on a slow socket.
type DeviceClient struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// User whose glasses this connection belongs to.
	userID string

	// The device's photo capture endpoint.
	captureRef string

	logger *zap.Logger

	validator *MessageValidator

	// Active speech recognition stream, nil while not listening.
	mutex        sync.Mutex
	sttStreaming repositories.SpeechToTextStreaming
	sttCancel    context.CancelFunc
	chunkCount   int
}

var _ repositories.DeviceConn = (*DeviceClient)(nil)

// HandleDeviceWebSocket upgrades an authenticated device request and
// starts the connection's pumps.
func HandleDeviceWebSocket(hub *Hub, c echo.Context, userID, captureRef string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &DeviceClient{
		hub:        hub,
		conn:       conn,
		send:       make(chan WriteData, 256),
		userID:     userID,
		captureRef: captureRef,
		logger:     logger,
		validator:  NewMessageValidator(),
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// SendJSON queues a control/text frame for the device
func (c *DeviceClient) SendJSON(payload []byte) error {
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		return nil
	default:
		return fmt.Errorf("send buffer full for user %s", c.userID)
	}
}

// SendAudio queues a binary audio frame for the device
func (c *DeviceClient) SendAudio(data []byte) error {
	select {
	case c.send <- WriteData{Type: websocket.BinaryMessage, Payload: data}:
		return nil
	default:
		return fmt.Errorf("send buffer full for user %s", c.userID)
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *DeviceClient) readPump() {
	defer func() {
		c.closeTranscription()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *DeviceClient) writePump() {
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

// processMessage dispatches one control frame from the device
func (c *DeviceClient) processMessage(message []byte) {
	parsed, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected device message",
			zap.String("userID", c.userID),
			zap.Error(err))
		c.reply(CreateErrorMessage("invalid_message", err.Error(), ""))
		return
	}

	switch msg := parsed.(type) {
	case *ListeningStartMessage:
		c.handleListeningStart(msg)
	case *ListeningEndMessage:
		c.handleListeningEnd()
	case *LiveControlMessage:
		c.handleLiveControl(msg)
	case *PingMessage:
		c.reply(CreatePongMessage(msg.Data))
	case *DeviceStatusMessage:
		c.logger.Info("Device status",
			zap.String("userID", c.userID),
			zap.String("status", msg.Status),
			zap.Int("battery", msg.BatteryLevel))
	default:
		c.logger.Warn("Unhandled message", zap.String("userID", c.userID))
	}
}

// processBinaryAudioChunk forwards microphone audio to the recognizer
func (c *DeviceClient) processBinaryAudioChunk(data []byte) {
	c.mutex.Lock()
	stream := c.sttStreaming
	if stream != nil {
		c.chunkCount++
	}
	c.mutex.Unlock()

	if stream == nil {
		c.logger.Debug("Audio chunk without an active transcription stream",
			zap.String("userID", c.userID))
		return
	}

	if err := stream.Stream(data); err != nil {
		c.logger.Error("Failed to stream audio data",
			zap.String("userID", c.userID),
			zap.Error(err))
		c.closeTranscription()
		c.reply(CreateErrorMessage("transcription_failed", "audio stream error", err.Error()))
	}
}

// handleListeningStart opens a recognition stream. The microphone stays
// open for the whole session; transcripts flow continuously into the
// wake-word listener.
func (c *DeviceClient) handleListeningStart(msg *ListeningStartMessage) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.sttStreaming != nil {
		c.reply(newAckMessage(MessageTypeListeningStart, "already listening"))
		return
	}

	audioConfig := repositories.AudioConfig{
		SampleRate: 16000,
		Language:   "en-US",
		Encoding:   "LINEAR16",
	}
	if msg.SampleRate > 0 {
		audioConfig.SampleRate = msg.SampleRate
	}
	if msg.Language != "" {
		audioConfig.Language = msg.Language
	}
	if msg.Encoding != "" {
		audioConfig.Encoding = msg.Encoding
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := c.hub.stt.InitTranscribeStreaming(ctx, audioConfig)
	if err != nil {
		cancel()
		c.logger.Error("Failed to initialize streaming transcription",
			zap.String("userID", c.userID),
			zap.Error(err))
		c.reply(CreateErrorMessage("transcription_unavailable", "failed to initialize transcription", ""))
		return
	}

	c.sttStreaming = stream
	c.sttCancel = cancel
	c.chunkCount = 0
	go c.pumpTranscripts(stream)

	c.logger.Info("Audio session started",
		zap.String("userID", c.userID),
		zap.Int("sampleRate", audioConfig.SampleRate),
		zap.String("language", audioConfig.Language))
	c.reply(newAckMessage(MessageTypeListeningStart, "listening started"))
}

// handleListeningEnd tears down the recognition stream
func (c *DeviceClient) handleListeningEnd() {
	c.closeTranscription()
	c.reply(newAckMessage(MessageTypeListeningEnd, "listening ended"))
}

// handleLiveControl toggles the open-conversation mode
func (c *DeviceClient) handleLiveControl(msg *LiveControlMessage) {
	switch msg.Type {
	case MessageTypeLiveStart:
		c.hub.service.StartLive(c.userID)
		c.reply(newAckMessage(MessageTypeLiveStart, "live session started"))
	case MessageTypeLiveStop:
		c.hub.service.StopLive(c.userID)
		c.reply(newAckMessage(MessageTypeLiveStop, "live session stopped"))
	}
}

// pumpTranscripts routes recognition results into the assistant until
// the stream closes.
func (c *DeviceClient) pumpTranscripts(stream repositories.SpeechToTextStreaming) {
	for ev := range stream.Results() {
		c.hub.service.HandleTranscription(c.userID, ev)
	}
	c.logger.Debug("Transcript stream drained", zap.String("userID", c.userID))
}

func (c *DeviceClient) closeTranscription() {
	c.mutex.Lock()
	stream, cancel := c.sttStreaming, c.sttCancel
	c.sttStreaming = nil
	c.sttCancel = nil
	chunks := c.chunkCount
	c.mutex.Unlock()

	if stream == nil {
		return
	}
	if err := stream.Close(); err != nil {
		c.logger.Warn("Failed to close transcription stream",
			zap.String("userID", c.userID),
			zap.Error(err))
	}
	if cancel != nil {
		cancel()
	}
	c.logger.Info("Audio session ended",
		zap.String("userID", c.userID),
		zap.Int("chunks", chunks))
}

// reply queues a JSON frame, dropping it if the buffer is full
func (c *DeviceClient) reply(msg interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal reply", zap.Error(err))
		return
	}
	if err := c.SendJSON(payload); err != nil {
		c.logger.Warn("Dropped reply frame", zap.Error(err))
	}
}
