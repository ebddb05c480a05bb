package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSignalAlert(t *testing.T) {
	a := SignalAlert("GLD", "crossover_forward", "buy", time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), 1, 7)
	if a.Title != "GLD buy signal" || a.Ticker != "GLD" {
		t.Errorf("title/ticker = %q/%q", a.Title, a.Ticker)
	}
	for _, want := range []string{"crossover_forward", "2024-03-08", "1 bar ago", "confidence 7"} {
		if !strings.Contains(a.Message, want) {
			t.Errorf("message %q missing %q", a.Message, want)
		}
	}
	if m := SignalAlert("X", "p", "sell", time.Now(), 0, 10).Message; !strings.Contains(m, "on the last bar") {
		t.Errorf("message = %q", m)
	}
}

func TestWebhookNotifier_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), Alert{Level: AlertWarning, Title: "t", Message: "m", Ticker: "MSFT"}); err != nil {
		t.Fatal(err)
	}
	if got["level"] != "WARNING" || got["ticker"] != "MSFT" || got["title"] != "t" {
		t.Errorf("payload = %v", got)
	}
}

func TestWebhookNotifier_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("err = %v", err)
	}
}

func TestTelegramNotifier_Send(t *testing.T) {
	var mu sync.Mutex
	var sent []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bench","username":"bench_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			if r.Form.Get("chat_id") != "42" || r.Form.Get("parse_mode") != "MarkdownV2" {
				t.Errorf("form = %v", r.Form)
			}
			mu.Lock()
			sent = append(sent, r.Form.Get("text"))
			mu.Unlock()
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	n, err := NewTelegramNotifierWithEndpoint("TOKEN", "42", srv.URL+"/bot%s/%s", srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	if err := n.Send(context.Background(), Alert{Level: AlertCritical, Title: "GLD buy", Message: "conf 7.5"}); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages", len(sent))
	}
	if !strings.Contains(sent[0], "*GLD buy*") || !strings.Contains(sent[0], `conf 7\.5`) {
		t.Errorf("text = %q", sent[0])
	}
}

func TestTelegramNotifier_InvalidChatID(t *testing.T) {
	if _, err := NewTelegramNotifierWithEndpoint("TOKEN", "not-a-number", "http://127.0.0.1/bot%s/%s", http.DefaultClient); err == nil {
		t.Fatal("expected chat id error")
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	if got := escapeMarkdownV2("a.b-c(d)!"); got != `a\.b\-c\(d\)\!` {
		t.Errorf("got %q", got)
	}
}

type recorder struct {
	alerts []Alert
	err    error
}

func (r *recorder) Send(_ context.Context, a Alert) error {
	r.alerts = append(r.alerts, a)
	return r.err
}

func TestMulti(t *testing.T) {
	ok := &recorder{}
	bad := &recorder{err: errors.New("down")}
	err := Multi{ok, bad, NewLogNotifier()}.Send(context.Background(), Alert{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("err = %v", err)
	}
	if len(ok.alerts) != 1 || len(bad.alerts) != 1 {
		t.Error("every notifier should receive the alert")
	}
}
