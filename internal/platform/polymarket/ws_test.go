package polymarket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cryptogyan1/polyarb/internal/domain"
	"github.com/gorilla/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestHandleMessage_Dispatch(t *testing.T) {
	w := NewWSClient("ws://unused", 0, discardLogger())

	var books []BookUpdate
	var changes []LevelChange
	w.OnBookUpdate(func(b BookUpdate) { books = append(books, b) })
	w.OnLevelChange(func(c LevelChange) { changes = append(changes, c) })

	w.handleMessage([]byte(`[{"event_type":"book","asset_id":"1","bids":[{"price":"0.4","size":"5"}],"asks":[{"price":"0.5","size":"2"}]}]`))
	w.handleMessage([]byte(`{"event_type":"price_change","market":"m","price_changes":[{"asset_id":"1","side":"SELL","price":"0.49","size":"3"},{"asset_id":"1","side":"BUY","price":"bad","size":"1"}]}`))
	w.handleMessage([]byte(`PONG`))

	if len(books) != 1 || books[0].AssetID != "1" || len(books[0].Bids) != 1 || len(books[0].Asks) != 1 {
		t.Fatalf("unexpected books %+v", books)
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 valid change, got %d", len(changes))
	}
	if changes[0].Side != domain.OrderSideSell || changes[0].Price.String() != "0.49" {
		t.Fatalf("unexpected change %+v", changes[0])
	}
}

func TestRun_SubscribesAndReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	var subs []WSCommand
	conns := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd WSCommand
		_ = json.Unmarshal(msg, &cmd)

		mu.Lock()
		subs = append(subs, cmd)
		conns++
		n := conns
		mu.Unlock()

		book := `{"event_type":"book","asset_id":"` + cmd.Assets[0] + `","bids":[],"asks":[{"price":"0.5","size":"1"}]}`
		conn.WriteMessage(websocket.TextMessage, []byte(book))
		if n == 1 {
			// Drop the first connection to force a reconnect.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewWSClient(wsURL, 10*time.Millisecond, discardLogger())

	got := make(chan BookUpdate, 4)
	client.OnBookUpdate(func(b BookUpdate) { got <- b })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx, []string{"tok-a", "tok-b"}) }()

	for i := 0; i < 2; i++ {
		select {
		case b := <-got:
			if b.AssetID != "tok-a" {
				t.Fatalf("unexpected asset %q", b.AssetID)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for book %d", i+1)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(subs) < 2 {
		t.Fatalf("expected a resubscription, got %d subscriptions", len(subs))
	}
	for _, s := range subs {
		if s.Type != "market" || len(s.Assets) != 2 {
			t.Fatalf("unexpected subscription %+v", s)
		}
	}
}
