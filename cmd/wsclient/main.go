package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "server base URL")
	username := flag.String("user", "", "username or email")
	password := flag.String("password", os.Getenv("SWHA_PASSWORD"), "password")
	audioPath := flag.String("file", "", "raw LINEAR16 audio file to stream")
	chunkSize := flag.Int("chunk", 3200, "bytes per audio frame")
	interval := flag.Duration("interval", 100*time.Millisecond, "delay between frames")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if *username == "" || *audioPath == "" {
		logger.Fatal("Both -user and -file are required")
	}

	audio, err := os.ReadFile(*audioPath)
	if err != nil {
		logger.Fatal("Failed to read audio file", zap.Error(err))
	}

	// Step 1: Get authentication token
	token, err := login(*serverURL, *username, *password)
	if err != nil {
		logger.Fatal("Login failed", zap.Error(err))
	}
	logger.Info("Authenticated", zap.String("user", *username))

	// Step 2: Connect to WebSocket with token
	wsURL, err := url.Parse(*serverURL)
	if err != nil {
		logger.Fatal("Invalid server URL", zap.Error(err))
	}
	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else {
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws"

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL.String(), header)
	if err != nil {
		if resp != nil {
			logger.Fatal("WebSocket connection failed", zap.Int("status", resp.StatusCode), zap.Error(err))
		}
		logger.Fatal("WebSocket connection failed", zap.Error(err))
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			fmt.Println(string(message))

			var msg struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(message, &msg) == nil && msg.Type == "session_complete" {
				return
			}
		}
	}()

	// Step 3: Stream the file
	if err := conn.WriteMessage(websocket.TextMessage, []byte("start_recording")); err != nil {
		logger.Fatal("Failed to start recording", zap.Error(err))
	}

	frames := 0
	for start := 0; start < len(audio); start += *chunkSize {
		end := start + *chunkSize
		if end > len(audio) {
			end = len(audio)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, audio[start:end]); err != nil {
			logger.Fatal("Failed to send audio", zap.Error(err))
		}
		frames++
		time.Sleep(*interval)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("stop_recording")); err != nil {
		logger.Fatal("Failed to stop recording", zap.Error(err))
	}
	logger.Info("Audio sent", zap.Int("frames", frames), zap.Int("bytes", len(audio)))

	// Step 4: Wait for the final transcript
	select {
	case <-done:
	case <-time.After(time.Minute):
		logger.Warn("Timed out waiting for session_complete")
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func login(serverURL, username, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})

	resp, err := http.Post(serverURL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	return out.AccessToken, nil
}
