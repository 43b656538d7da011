package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/pocket-infra-api/models"
)

const (
	feedWriteTimeout = 5 * time.Second
	// feedSendBuffer is how many events a subscriber may fall behind before it is dropped
	feedSendBuffer = 32
)

// feedClient is one subscriber. Only its writer goroutine writes to conn.
type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// FeedHub keeps the live report feed subscribers and broadcasts report events to them
type FeedHub struct {
	upgrader websocket.Upgrader
	clients  map[*feedClient]struct{}
	mutex    sync.Mutex
}

// NewFeedHub accepts websocket connections from the given browser origins
func NewFeedHub(allowedOrigins []string) *FeedHub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &FeedHub{
		clients: make(map[*feedClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowed["*"] || allowed[origin] {
					return true
				}
				// same host is always fine
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
	}
}

// HandleFeedWebSocket upgrades the request and keeps the subscriber until it disconnects
func (hub *FeedHub) HandleFeedWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("websocket upgrade error", "error", err)
		return
	}

	c := &feedClient{conn: conn, send: make(chan []byte, feedSendBuffer)}
	hub.mutex.Lock()
	hub.clients[c] = struct{}{}
	count := len(hub.clients)
	hub.mutex.Unlock()
	zap.S().Debugw("feed subscriber connected", "remote", conn.RemoteAddr().String(), "subscribers", count)

	go hub.writeLoop(c)

	// subscribers never send anything, reading only surfaces the close
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	hub.remove(c)
}

// writeLoop drains the client's queue until the hub closes it, then says goodbye
func (hub *FeedHub) writeLoop(c *feedClient) {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			zap.S().Debugw("feed write failed", "remote", c.conn.RemoteAddr().String(), "error", err)
			hub.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
}

// Publish queues event for every subscriber without waiting on the network. Subscribers
// whose queue is full are dropped.
func (hub *FeedHub) Publish(event models.FeedEvent) {
	msg, err := json.Marshal(event)
	if err != nil {
		zap.S().Errorw("failed to marshal feed event", "event", event.Event, "error", err)
		return
	}

	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	for c := range hub.clients {
		select {
		case c.send <- msg:
		default:
			zap.S().Debugw("dropping slow feed subscriber", "event", event.Event, "remote", c.conn.RemoteAddr().String())
			delete(hub.clients, c)
			close(c.send)
			// unblocks a writer stuck on the stalled connection
			_ = c.conn.Close()
		}
	}
}

// Subscribers returns the number of connected subscribers
func (hub *FeedHub) Subscribers() int {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	return len(hub.clients)
}

// Close disconnects every subscriber
func (hub *FeedHub) Close() {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	for c := range hub.clients {
		delete(hub.clients, c)
		close(c.send)
	}
}

func (hub *FeedHub) remove(c *feedClient) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if _, ok := hub.clients[c]; ok {
		delete(hub.clients, c)
		close(c.send)
	}
}
