package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

func startEchoServer(t *testing.T, ctx context.Context, msgCh chan map[string]any, push []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept ws: %v", err)
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
		if push != nil {
			_ = conn.Write(ctx, websocket.MessageText, push)
		}
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			select {
			case msgCh <- msg:
			default:
			}
		}
	}))
}

func TestClientSendsSubscribeAndPing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	msgCh := make(chan map[string]any, 4)
	server := startEchoServer(t, ctx, msgCh, nil)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client := New(wsURL, 10*time.Millisecond, 20*time.Millisecond, zap.NewNop())
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := client.Subscribe(ctx, BBOChannel("BTC-USD-PERP")); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		_ = client.Run(runCtx, nil)
	}()

	sawSubscribe := false
	sawPing := false
	for !sawSubscribe || !sawPing {
		select {
		case msg := <-msgCh:
			switch msg["method"] {
			case "subscribe":
				params, _ := msg["params"].(map[string]any)
				if params == nil || params["channel"] != "bbo.BTC-USD-PERP" {
					t.Fatalf("unexpected subscribe params: %v", msg)
				}
				sawSubscribe = true
			case "ping":
				sawPing = true
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for subscribe+ping (subscribe=%v ping=%v)", sawSubscribe, sawPing)
		}
	}
}

func TestClientDeliversChannelMessages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	push := []byte(`{"params":{"channel":"bbo.BTC-USD-PERP","data":{"bid":"100000.00","ask":"100000.50"}}}`)
	msgCh := make(chan map[string]any, 4)
	server := startEchoServer(t, ctx, msgCh, push)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client := New(wsURL, 10*time.Millisecond, time.Second, zap.NewNop())
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	got := make(chan Envelope, 1)
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		_ = client.Run(runCtx, func(env Envelope) {
			select {
			case got <- env:
			default:
			}
		})
	}()

	select {
	case env := <-got:
		if env.Params.Channel != "bbo.BTC-USD-PERP" {
			t.Fatalf("unexpected channel %q", env.Params.Channel)
		}
		if len(env.Params.Data) == 0 {
			t.Fatalf("expected data payload")
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for channel message")
	}
}
