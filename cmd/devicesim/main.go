// Command devicesim is a development stand-in for the glasses firmware.
// It authenticates against a running server, opens the device WebSocket,
// starts a listening window and streams a local audio file as binary
// frames, logging every frame the server sends back.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

type authRequest struct {
	SerialNumber string `json:"serial_number"`
	SecretKey    string `json:"secret_key"`
	UserID       string `json:"user_id,omitempty"`
}

type authResponse struct {
	Token    string `json:"token"`
	DeviceID string `json:"device_id"`
	UserID   string `json:"user_id"`
}

func main() {
	server := flag.String("server", "localhost:8080", "host:port of the assistant server")
	serial := flag.String("serial", "LUMEN001", "device serial number")
	secret := flag.String("secret", "secret123", "device secret key")
	user := flag.String("user", "", "wearer user ID (defaults to the device ID)")
	audioPath := flag.String("audio", "sample_audio.wav", "PCM/WAV file streamed as microphone audio")
	captureURL := flag.String("capture-url", "", "HTTP endpoint the server should fetch camera frames from")
	chunkSize := flag.Int("chunk", 3200, "bytes per binary frame (3200 = 100ms of 16kHz LINEAR16)")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	token, deviceID, err := authenticate(*server, *serial, *secret, *user)
	if err != nil {
		log.Fatalf("authentication failed: %v", err)
	}
	log.Printf("authenticated as device %s", deviceID)

	q := url.Values{}
	if *captureURL != "" {
		q.Set("capture_url", *captureURL)
	}
	u := url.URL{Scheme: "ws", Host: *server, Path: "/ws", RawQuery: q.Encode()}
	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+token)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		log.Fatalf("dial %s: %v", u.String(), err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go readFrames(conn, done)

	if err := streamAudio(conn, *audioPath, *chunkSize); err != nil {
		log.Printf("audio streaming failed: %v", err)
	}

	// Keep the connection open so spoken replies arrive.
	select {
	case <-done:
	case <-interrupt:
		log.Println("interrupt, closing")
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func authenticate(server, serial, secret, user string) (string, string, error) {
	payload, err := json.Marshal(authRequest{
		SerialNumber: serial,
		SecretKey:    secret,
		UserID:       user,
	})
	if err != nil {
		return "", "", err
	}

	resp, err := http.Post("http://"+server+"/api/v1/device/auth", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return "", "", err
	}
	return auth.Token, auth.DeviceID, nil
}

// streamAudio opens a listening window, plays the file through it in
// real-time sized chunks, then closes the window.
func streamAudio(conn *websocket.Conn, path string, chunkSize int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audio file: %w", err)
	}
	log.Printf("streaming %s (%d bytes, %d byte chunks)", path, len(data), chunkSize)

	start := map[string]interface{}{
		"type":        "listening_start",
		"sample_rate": 16000,
		"encoding":    "LINEAR16",
		"language":    "en-US",
		"timestamp":   time.Now().Unix(),
	}
	if err := writeJSON(conn, start); err != nil {
		return fmt.Errorf("listening_start: %w", err)
	}

	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, data[offset:end]); err != nil {
			return fmt.Errorf("audio chunk at %d: %w", offset, err)
		}
		// Pace frames like a live microphone would.
		time.Sleep(100 * time.Millisecond)
	}

	stop := map[string]interface{}{
		"type":      "listening_end",
		"timestamp": time.Now().Unix(),
	}
	if err := writeJSON(conn, stop); err != nil {
		return fmt.Errorf("listening_end: %w", err)
	}
	log.Printf("finished streaming, waiting for server frames")
	return nil
}

// readFrames logs every frame from the server. JSON frames are printed
// as-is; binary frames are synthesized speech and only counted.
func readFrames(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	var audioBytes int
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("read: %v", err)
			return
		}
		switch messageType {
		case websocket.TextMessage:
			log.Printf("<- %s", string(message))
		case websocket.BinaryMessage:
			audioBytes += len(message)
			log.Printf("<- audio chunk (%d bytes, %d total)", len(message), audioBytes)
		}
	}
}

func writeJSON(conn *websocket.Conn, message map[string]interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
