// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/osintwire/intelhub/internal/logging"
	"github.com/osintwire/intelhub/internal/metrics"
	"github.com/osintwire/intelhub/internal/models"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 50 * time.Second
	clientBuffer = 16
)

// ArchivedNotice is the message pushed to live subscribers when an item
// reaches the archive.
type ArchivedNotice struct {
	UUID         string     `json:"uuid"`
	Title        string     `json:"title"`
	Score        float64    `json:"score"`
	TimeArchived *time.Time `json:"time_archived"`
}

// LiveFeed fans archived-item notices out to connected websocket clients.
// A slow client that cannot keep up is disconnected rather than allowed
// to block the pipeline.
type LiveFeed struct {
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu      sync.Mutex
	clients map[*liveClient]struct{}
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewLiveFeed creates an empty live feed.
func NewLiveFeed() *LiveFeed {
	return &LiveFeed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: map[*liveClient]struct{}{},
		log:     logging.With().Str("component", "livefeed").Logger(),
	}
}

// ClientCount returns the number of connected clients.
func (f *LiveFeed) ClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// BroadcastArchived pushes a notice for a freshly archived item to every
// connected client. Never blocks.
func (f *LiveFeed) BroadcastArchived(item *models.ArchivedItem) {
	title := item.EventTitle
	if title == "" {
		title = item.EventBrief
	}
	payload, err := json.Marshal(ArchivedNotice{
		UUID:         item.UUID,
		Title:        title,
		Score:        item.Appendix.MaxRateScore,
		TimeArchived: item.Appendix.TimeArchived,
	})
	if err != nil {
		f.log.Error().Err(err).Str("uuid", item.UUID).Msg("marshal archived notice")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- payload:
		default:
			// Client too slow; drop it.
			f.removeLocked(c)
		}
	}
}

// Handle upgrades an HTTP request to a websocket subscription.
func (f *LiveFeed) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &liveClient{conn: conn, send: make(chan []byte, clientBuffer)}
	f.mu.Lock()
	f.clients[c] = struct{}{}
	metrics.WebsocketClients.Set(float64(len(f.clients)))
	f.mu.Unlock()

	go f.writePump(c)
	f.readPump(c)
}

func (f *LiveFeed) remove(c *liveClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(c)
}

func (f *LiveFeed) removeLocked(c *liveClient) {
	if _, ok := f.clients[c]; !ok {
		return
	}
	delete(f.clients, c)
	close(c.send)
	c.conn.Close()
	metrics.WebsocketClients.Set(float64(len(f.clients)))
}

// readPump discards inbound frames and detects disconnects.
func (f *LiveFeed) readPump(c *liveClient) {
	defer f.remove(c)
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *LiveFeed) writePump(c *liveClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		f.remove(c)
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
