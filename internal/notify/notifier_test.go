package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

type captureSender struct {
	name   string
	err    error
	titles []string
	bodies []string
}

func (c *captureSender) Send(ctx context.Context, title, message string) error {
	c.titles = append(c.titles, title)
	c.bodies = append(c.bodies, message)
	return c.err
}

func (c *captureSender) Name() string { return c.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testExec(outcome domain.ExecOutcome, legs ...domain.LegStatus) domain.ArbExecution {
	e := domain.ArbExecution{
		Outcome: outcome,
		Opportunity: domain.ArbitrageOpportunity{
			MarketA: "ETH", MarketB: "BTC",
			OutcomeA: domain.OutcomeUp, OutcomeB: domain.OutcomeDown,
			PriceA:         decimal.RequireFromString("0.45"),
			PriceB:         decimal.RequireFromString("0.50"),
			TotalCost:      decimal.RequireFromString("0.95"),
			ExpectedProfit: decimal.RequireFromString("0.05"),
		},
		Units: decimal.NewFromInt(10),
	}
	for i, s := range legs {
		m := "ETH"
		if i == 1 {
			m = "BTC"
		}
		e.Legs = append(e.Legs, domain.ArbLeg{MarketID: m, Status: s, Price: decimal.RequireFromString("0.5")})
	}
	e.Status = domain.FillStatus(e.Legs)
	return e
}

func TestNotify_EventFilter(t *testing.T) {
	s := &captureSender{name: "cap"}
	n := NewNotifier([]Sender{s}, []string{EventLegFailed, " "}, testLogger())

	if err := n.Notify(context.Background(), EventArbExecuted, "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.titles) != 0 {
		t.Fatal("filtered event was delivered")
	}
	if err := n.Notify(context.Background(), EventLegFailed, "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := n.NotifyAll(context.Background(), "all", "m"); err != nil {
		t.Fatalf("NotifyAll: %v", err)
	}
	if len(s.titles) != 2 {
		t.Fatalf("delivered %d, want 2", len(s.titles))
	}
}

func TestNotify_SenderFailureDoesNotStopOthers(t *testing.T) {
	bad := &captureSender{name: "bad", err: errors.New("down")}
	good := &captureSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("err = %v", err)
	}
	if len(good.titles) != 1 {
		t.Fatal("second sender not reached")
	}
}

func TestRecord_Classification(t *testing.T) {
	tests := []struct {
		name      string
		exec      domain.ArbExecution
		wantTitle string // empty: no notification
		alert     bool
	}{
		{"skipped", testExec(domain.ExecSkipped), "", false},
		{"aborted", testExec(domain.ExecAborted), "Arb aborted: ETH-up+BTC-down", true},
		{"filled", testExec(domain.ExecAttempted, domain.LegAccepted, domain.LegAccepted), "Arb executed: ETH-up+BTC-down", false},
		{"partial", testExec(domain.ExecAttempted, domain.LegAccepted, domain.LegRejected), "Unhedged leg: ETH-up+BTC-down", true},
		{"none", testExec(domain.ExecAttempted, domain.LegRejected, domain.LegNetworkError), "Both legs failed: ETH-up+BTC-down", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := &captureSender{name: "cap"}
			n := NewNotifier([]Sender{s}, nil, testLogger())
			if err := n.Record(context.Background(), tc.exec); err != nil {
				t.Fatalf("Record: %v", err)
			}
			if tc.wantTitle == "" {
				if len(s.titles) != 0 {
					t.Fatalf("unexpected notification %q", s.titles[0])
				}
				return
			}
			if len(s.titles) != 1 {
				t.Fatalf("got %d notifications", len(s.titles))
			}
			if !strings.HasSuffix(s.titles[0], tc.wantTitle) || isAlert(s.titles[0]) != tc.alert {
				t.Fatalf("title = %q", s.titles[0])
			}
		})
	}
}

func TestFormatExecution(t *testing.T) {
	e := testExec(domain.ExecAttempted, domain.LegAccepted, domain.LegRejected)
	e.Legs[0].OrderID = "0xabc"
	got := FormatExecution(e)
	for _, want := range []string{"cost 0.95 (0.45 + 0.5)", "units 10", "ETH  @ 0.5: accepted (0xabc)", "BTC  @ 0.5: rejected"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestDiscordSender(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL, "polyarb")
	if err := d.Send(context.Background(), AlertPrefix+"title", "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Username != "polyarb" || len(got.Embeds) != 1 {
		t.Fatalf("payload = %+v", got)
	}
	if got.Embeds[0].Description != "body" || got.Embeds[0].Color != discordColorAlert {
		t.Fatalf("embed = %+v", got.Embeds[0])
	}
}

func TestDiscordSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if err := NewDiscordSender(srv.URL, "").Send(context.Background(), "t", "m"); err == nil {
		t.Fatal("expected error")
	}
}

func TestTelegramSender(t *testing.T) {
	var mu sync.Mutex
	var sent []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"polyarb_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			r.ParseForm()
			mu.Lock()
			sent = append(sent, r.FormValue("chat_id")+"|"+r.FormValue("text"))
			mu.Unlock()
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
		}
	}))
	defer srv.Close()

	ts, err := NewTelegramSender("TOKEN", 42, srv.URL+"/bot%s/%s")
	if err != nil {
		t.Fatalf("NewTelegramSender: %v", err)
	}
	if err := ts.Send(context.Background(), "Title", "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 1 || sent[0] != "42|*Title*\nbody" {
		t.Fatalf("sent = %q", sent)
	}
}
