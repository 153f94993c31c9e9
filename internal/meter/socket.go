// SPDX-License-Identifier: MIT
package meter

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"hush/internal/log"
)

// WebSocketTransport broadcasts telemetry frames to every connected
// client. The client map is mutex-protected; Send is called from the pump
// thread and connection handling runs in its own goroutines. Rate limiting
// is the meter's job, so every frame that arrives here goes out.
type WebSocketTransport struct {
	clients      map[*websocket.Conn]bool
	clientsMutex sync.Mutex
	upgrader     websocket.Upgrader
	server       *http.Server
}

// NewWebSocketTransport starts an HTTP server on the given port serving
// WebSocket upgrades at /meter.
func NewWebSocketTransport(port string) *WebSocketTransport {
	t := &WebSocketTransport{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // telemetry is local and read-only
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/meter", t.handleWebSocket)
	t.server = &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		log.Infof("meter listening on port %s", port)
		if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("meter server error: %v", err)
		}
	}()

	return t
}

func (t *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("meter upgrade error: %v", err)
		return
	}

	t.clientsMutex.Lock()
	t.clients[conn] = true
	t.clientsMutex.Unlock()

	// Drain the connection; the first read error unregisters the client.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				t.clientsMutex.Lock()
				delete(t.clients, conn)
				t.clientsMutex.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// Send broadcasts v as JSON to all connected clients. Clients that fail to
// accept the write are disconnected.
func (t *WebSocketTransport) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	t.clientsMutex.Lock()
	for client := range t.clients {
		if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
			client.Close()
			delete(t.clients, client)
		}
	}
	t.clientsMutex.Unlock()

	return nil
}

// Close disconnects every client and stops the HTTP server.
func (t *WebSocketTransport) Close() error {
	t.clientsMutex.Lock()
	for client := range t.clients {
		client.Close()
		delete(t.clients, client)
	}
	t.clientsMutex.Unlock()

	return t.server.Close()
}
