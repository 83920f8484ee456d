package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// WebsocketTransport dials Nostr relay URLs with gorilla/websocket,
// keeping one open connection per URL.
type WebsocketTransport struct {
	dialer *websocket.Dialer

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

// NewWebsocketTransport constructs a transport using websocket.DefaultDialer.
func NewWebsocketTransport() *WebsocketTransport {
	return &WebsocketTransport{
		dialer: websocket.DefaultDialer,
		conns:  make(map[string]*websocket.Conn),
	}
}

// Dial opens a websocket connection to url and stores it for subsequent
// Send/Close/Receive calls.
func (t *WebsocketTransport) Dial(ctx context.Context, url string) error {
	conn, _, err := t.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("relay: dial %s: %w", url, err)
	}
	t.mu.Lock()
	if old, ok := t.conns[url]; ok {
		_ = old.Close()
	}
	t.conns[url] = conn
	t.mu.Unlock()
	return nil
}

// Close closes and forgets the connection for url, if any.
func (t *WebsocketTransport) Close(url string) error {
	t.mu.Lock()
	conn, ok := t.conns[url]
	delete(t.conns, url)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return conn.Close()
}

// Send writes a text frame (a Nostr wire message) to url's connection.
func (t *WebsocketTransport) Send(url string, payload []byte) error {
	t.mu.Lock()
	conn, ok := t.conns[url]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("relay: %s is not connected", url)
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Receive blocks for the next text frame from url's connection.
func (t *WebsocketTransport) Receive(url string) ([]byte, error) {
	t.mu.Lock()
	conn, ok := t.conns[url]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("relay: %s is not connected", url)
	}
	_, payload, err := conn.ReadMessage()
	return payload, err
}
