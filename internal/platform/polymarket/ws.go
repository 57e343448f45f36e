package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cryptogyan1/polyarb/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// DefaultReconnectDelay is the fixed delay between reconnect attempts.
	DefaultReconnectDelay = 2 * time.Second
)

// BookUpdateHandler is called when a full orderbook snapshot is received.
type BookUpdateHandler func(BookUpdate)

// LevelChangeHandler is called for every incremental level update.
type LevelChangeHandler func(LevelChange)

// WSClient is a WebSocket client for the Polymarket CLOB market channel. Run
// keeps one connection open per call, resubscribing the same assets after a
// fixed reconnect delay whenever the connection drops.
type WSClient struct {
	wsURL          string
	reconnectDelay time.Duration
	logger         *slog.Logger

	handlerMu      sync.RWMutex
	bookHandlers   []BookUpdateHandler
	changeHandlers []LevelChangeHandler
}

// NewWSClient creates a new WebSocket client.
//
// wsURL is the market channel endpoint, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewWSClient(wsURL string, reconnectDelay time.Duration, logger *slog.Logger) *WSClient {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &WSClient{
		wsURL:          wsURL,
		reconnectDelay: reconnectDelay,
		logger:         logger.With(slog.String("component", "polymarket_ws")),
	}
}

// OnBookUpdate registers a handler for full book snapshots.
func (w *WSClient) OnBookUpdate(handler BookUpdateHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.bookHandlers = append(w.bookHandlers, handler)
}

// OnLevelChange registers a handler for incremental level updates.
func (w *WSClient) OnLevelChange(handler LevelChangeHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.changeHandlers = append(w.changeHandlers, handler)
}

// Run subscribes to the given assets and dispatches messages until ctx is
// cancelled. Connection failures are logged and retried forever.
func (w *WSClient) Run(ctx context.Context, assetIDs []string) error {
	for {
		err := w.runOnce(ctx, assetIDs)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn("websocket disconnected, reconnecting",
			slog.Any("error", err),
			slog.Duration("delay", w.reconnectDelay),
		)

		t := time.NewTimer(w.reconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// runOnce holds a single connection until it fails or ctx is cancelled.
func (w *WSClient) runOnce(ctx context.Context, assetIDs []string) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(msgType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(msgType, data)
	}

	cmd, err := json.Marshal(WSCommand{Type: "market", Assets: assetIDs})
	if err != nil {
		return fmt.Errorf("polymarket/ws: marshal subscribe: %w", err)
	}
	if err := write(websocket.TextMessage, cmd); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}
	w.logger.Info("websocket subscribed", slog.Int("assets", len(assetIDs)))

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				// Unblocks ReadMessage below.
				_ = write(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
				return
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("polymarket/ws: %w: %v", domain.ErrWSDisconnect, err)
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		w.handleMessage(message)
	}
}

// handleMessage parses a raw frame (a single event or an array of events)
// and routes each event to the registered handlers.
func (w *WSClient) handleMessage(raw []byte) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return
	}
	if raw[0] == '[' {
		var events []json.RawMessage
		if err := json.Unmarshal(raw, &events); err != nil {
			return
		}
		for _, ev := range events {
			w.handleEvent(ev)
		}
		return
	}
	w.handleEvent(raw)
}

func (w *WSClient) handleEvent(raw []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return // PONG and other non-JSON frames
	}

	switch envelope.EventType {
	case "book":
		var book BookMessage
		if err := json.Unmarshal(raw, &book); err != nil {
			return
		}
		update := book.ToBookUpdate()

		w.handlerMu.RLock()
		handlers := w.bookHandlers
		w.handlerMu.RUnlock()

		for _, h := range handlers {
			h(update)
		}

	case "price_change":
		var pc PriceChangeMessage
		if err := json.Unmarshal(raw, &pc); err != nil {
			return
		}
		changes := pc.ToLevelChanges()

		w.handlerMu.RLock()
		handlers := w.changeHandlers
		w.handlerMu.RUnlock()

		for _, c := range changes {
			for _, h := range handlers {
				h(c)
			}
		}
	}
}
