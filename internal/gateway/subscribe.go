package gateway

import (
	"encoding/json"
	"log"
	"sort"
	"strings"
)

// ── WS Protocol Message Types ──

// SubscribeMsg is the client → server SUBSCRIBE request. Empty lists match
// everything, so {"type":"SUBSCRIBE","tickers":["GLD"]} follows GLD under
// every policy and span.
type SubscribeMsg struct {
	Type     string   `json:"type"`  // "SUBSCRIBE"
	ReqID    string   `json:"reqId"` // client-generated request ID
	Tickers  []string `json:"tickers"`
	Policies []string `json:"policies"`
	Spans    []string `json:"spans"`
}

// UnsubscribeMsg is the client → server UNSUBSCRIBE request.
type UnsubscribeMsg struct {
	Type    string   `json:"type"` // "UNSUBSCRIBE"
	ReqID   string   `json:"reqId"`
	Tickers []string `json:"tickers"`
}

// SnapshotResponse is the server → client SNAPSHOT with the latest summary
// of every channel the subscription matches.
type SnapshotResponse struct {
	Type      string                     `json:"type"` // "SNAPSHOT"
	ReqID     string                     `json:"reqId"`
	Summaries map[string]json.RawMessage `json:"summaries"`
}

// ErrorResponse is the server → client ERROR message.
type ErrorResponse struct {
	Type  string `json:"type"` // "ERROR"
	ReqID string `json:"reqId,omitempty"`
	Error string `json:"error"`
}

// ── Subscription State ──

// ClientSubscription is one ticker's filter for a client.
type ClientSubscription struct {
	Ticker   string
	Policies map[string]bool // empty = all
	Spans    map[string]bool // empty = all
}

func newSubscription(ticker string, policies, spans []string) *ClientSubscription {
	sub := &ClientSubscription{
		Ticker:   strings.ToUpper(strings.TrimSpace(ticker)),
		Policies: make(map[string]bool, len(policies)),
		Spans:    make(map[string]bool, len(spans)),
	}
	for _, p := range policies {
		sub.Policies[strings.ToLower(p)] = true
	}
	for _, s := range spans {
		sub.Spans[strings.ToLower(s)] = true
	}
	return sub
}

// Matches reports whether a parsed channel falls under this subscription.
func (s *ClientSubscription) Matches(ch *parsedChannel) bool {
	if ch.ticker != s.Ticker {
		return false
	}
	if len(s.Policies) > 0 && !s.Policies[ch.policy] {
		return false
	}
	if len(s.Spans) > 0 && !s.Spans[ch.span] {
		return false
	}
	return true
}

// parsedChannel holds the components of an "eval:{policy}:{span}:{ticker}" channel.
type parsedChannel struct {
	policy string
	span   string
	ticker string
}

// parseChannel returns nil for anything that is not an evaluation channel.
func parseChannel(channel string) *parsedChannel {
	parts := strings.SplitN(channel, ":", 4)
	if len(parts) != 4 || parts[0] != "eval" {
		return nil
	}
	if parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return nil
	}
	return &parsedChannel{policy: parts[1], span: parts[2], ticker: parts[3]}
}

// buildSnapshot collects the latest summaries matching any of subs.
func buildSnapshot(latest map[string]json.RawMessage, subs []*ClientSubscription) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)
	for channel, data := range latest {
		ch := parseChannel(channel)
		if ch == nil {
			continue
		}
		for _, sub := range subs {
			if sub.Matches(ch) {
				out[channel] = data
				break
			}
		}
	}
	return out
}

// sortedKeys is used for stable log output.
func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SendJSON marshals and sends a message to the client's send channel.
func SendJSON(c *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[subscribe] json marshal error: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Println("[subscribe] client send buffer full, dropping message")
	}
}

// SendError sends an error response to the client.
func SendError(c *Client, reqID, errMsg string) {
	SendJSON(c, ErrorResponse{
		Type:  "ERROR",
		ReqID: reqID,
		Error: errMsg,
	})
}
