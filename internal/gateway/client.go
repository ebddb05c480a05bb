package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Per-client subscriptions keyed by ticker. No subscriptions means
	// the client receives every channel.
	subMu sync.RWMutex
	subs  map[string]*ClientSubscription
}

func (c *Client) sendInitialState(lastTS string) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}

		envelope, _ := json.Marshal(map[string]interface{}{
			"channel":     channel,
			"data":        json.RawMessage(entry.Data),
			"ts":          entry.TS.Format(time.RFC3339Nano),
			"channel_seq": entry.Seq,
			"initial":     true,
		})
		select {
		case c.send <- envelope:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Coalesce queued messages into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg []byte) {
	var base struct {
		Type string `json:"type"`
		Ping int64  `json:"ping"`
	}
	if json.Unmarshal(msg, &base) != nil {
		return
	}

	switch base.Type {
	case "SUBSCRIBE":
		var subMsg SubscribeMsg
		if err := json.Unmarshal(msg, &subMsg); err != nil {
			SendError(c, "", "invalid SUBSCRIBE: "+err.Error())
			return
		}
		c.handleSubscribe(subMsg)

	case "UNSUBSCRIBE":
		var unsubMsg UnsubscribeMsg
		if err := json.Unmarshal(msg, &unsubMsg); err != nil {
			return
		}
		c.handleUnsubscribe(unsubMsg)

	default:
		if base.Ping > 0 {
			pong, _ := json.Marshal(map[string]interface{}{
				"type":      "pong",
				"ping":      base.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			select {
			case c.send <- pong:
			default:
			}
		}
	}
}

// handleSubscribe stores the subscription and replies with a SNAPSHOT of
// the latest matching summaries.
func (c *Client) handleSubscribe(msg SubscribeMsg) {
	if len(msg.Tickers) == 0 {
		SendError(c, msg.ReqID, "tickers are required")
		return
	}

	added := make([]*ClientSubscription, 0, len(msg.Tickers))
	c.subMu.Lock()
	if c.subs == nil {
		c.subs = make(map[string]*ClientSubscription)
	}
	for _, t := range msg.Tickers {
		sub := newSubscription(t, msg.Policies, msg.Spans)
		if sub.Ticker == "" {
			continue
		}
		c.subs[sub.Ticker] = sub
		added = append(added, sub)
	}
	c.subMu.Unlock()

	snap := buildSnapshot(c.hub.GetLatestAll(), added)
	log.Printf("[subscribe] client subscribed: tickers=%v policies=%v spans=%v snapshot=%v",
		msg.Tickers, msg.Policies, msg.Spans, sortedKeys(snap))

	SendJSON(c, SnapshotResponse{Type: "SNAPSHOT", ReqID: msg.ReqID, Summaries: snap})
}

// handleUnsubscribe removes subscriptions by ticker.
func (c *Client) handleUnsubscribe(msg UnsubscribeMsg) {
	c.subMu.Lock()
	for _, t := range msg.Tickers {
		delete(c.subs, strings.ToUpper(strings.TrimSpace(t)))
	}
	c.subMu.Unlock()

	log.Printf("[subscribe] client unsubscribed: tickers=%v", msg.Tickers)
}

// matchesChannel reports whether the client should receive channel.
func (c *Client) matchesChannel(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	if len(c.subs) == 0 {
		return true
	}

	parsed := parseChannel(channel)
	if parsed == nil {
		return true // non-evaluation channel, always deliver
	}
	sub, ok := c.subs[parsed.ticker]
	return ok && sub.Matches(parsed)
}
