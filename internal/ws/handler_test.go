package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ordmarket/sale-service/internal/platform/logger"
)

func TestWebSocketConnectAndBroadcast(t *testing.T) {
	m := NewManager(logger.NewNop())
	go m.Run()
	h := NewHandler(m, logger.NewNop())

	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/items/item-9"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The welcome frame is queued before registration, so it is always
	// the first message on the wire.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	var welcome struct {
		Type     string `json:"type"`
		ItemID   string `json:"item_id"`
		ClientID string `json:"client_id"`
	}
	if err := json.Unmarshal(payload, &welcome); err != nil {
		t.Fatalf("unmarshal welcome: %v", err)
	}
	if welcome.Type != "connected" {
		t.Fatalf("welcome type: want=connected got=%s", welcome.Type)
	}
	if welcome.ItemID != "item-9" {
		t.Fatalf("welcome item: want=item-9 got=%s", welcome.ItemID)
	}
	if welcome.ClientID == "" {
		t.Fatal("welcome client id missing")
	}

	// Receiving the welcome proves registration completed, so a
	// broadcast must now reach this subscriber.
	m.Broadcast("item-9", []byte(`{"type":"bid_accepted"}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if !strings.Contains(string(payload), "bid_accepted") {
		t.Fatalf("broadcast payload: got %s", payload)
	}

	resp, err := http.Get(srv.URL + "/stats/items/item-9")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	defer resp.Body.Close()
	var stats struct {
		ItemID      string `json:"item_id"`
		Subscribers int    `json:"subscribers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Subscribers != 1 {
		t.Fatalf("subscribers: want=1 got=%d", stats.Subscribers)
	}
}
