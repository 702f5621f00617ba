package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/shopspring/decimal"

	"nedwiyt/internal/core"
)

func mockClient(hub *Hub, topic string) *Client {
	return &Client{hub: hub, topic: topic, send: make(chan []byte, sendBufferSize)}
}

func sampleStats() core.DashboardStats {
	return core.DashboardStats{
		TotalCategories: 2,
		TotalItems:      3,
		TotalRevenue:    decimal.RequireFromString("150"),
		TotalCost:       decimal.RequireFromString("200.5"),
		Profit:          decimal.RequireFromString("90"),
		LowStockItems:   1,
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(nil)
	c1 := mockClient(hub, "a")
	c2 := mockClient(hub, "a")
	c3 := mockClient(hub, "b")

	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)
	if got := hub.ClientCount(); got != 3 {
		t.Fatalf("expected 3 clients, got %d", got)
	}
	if got := hub.TopicCount(); got != 2 {
		t.Fatalf("expected 2 topics, got %d", got)
	}

	hub.Unregister(c1)
	hub.Unregister(c1) // must not panic on double close
	hub.Unregister(c3)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client, got %d", got)
	}
	if got := hub.TopicCount(); got != 1 {
		t.Fatalf("empty topics should be dropped, got %d", got)
	}
}

func TestPublishReachesOnlyTopic(t *testing.T) {
	hub := NewHub(nil)
	mine := mockClient(hub, "session-a")
	other := mockClient(hub, "session-b")
	hub.Register(mine)
	hub.Register(other)

	hub.Publish("session-a", NewMessage("stock_item", "sold", "i1", sampleStats()))

	select {
	case data := <-mine.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != "stock_item_sold" || got.ID != "i1" {
			t.Errorf("message = %+v", got)
		}
		if got.Stats.TotalCost != "200.50" || got.Stats.LowStockItems != 1 {
			t.Errorf("stats = %+v", got.Stats)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}

	select {
	case <-other.send:
		t.Error("other session should not receive the message")
	default:
	}
}

func TestPublishFullBuffer(t *testing.T) {
	hub := NewHub(nil)
	c := mockClient(hub, "t")
	hub.Register(c)

	for i := 0; i < sendBufferSize+1; i++ {
		hub.Publish("t", NewMessage("category", "created", "", core.DashboardStats{}))
	}

	count := 0
	for len(c.send) > 0 {
		<-c.send
		count++
	}
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "shared")
			hub.Register(c)
			hub.Publish("shared", NewMessage("inventory", "load", "", core.DashboardStats{}))
			hub.Unregister(c)
		}()
	}
	wg.Wait()
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients, got %d", got)
	}
}

func TestHandleWebSocket(t *testing.T) {
	hub := NewHub(nil)
	topic := func(r *http.Request) (string, bool) {
		k := r.URL.Query().Get("k")
		return k, k != ""
	}
	srv := httptest.NewServer(HandleWebSocket(hub, topic, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without topic = %d, want 401", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"?k=s1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	hub.Publish("s1", NewMessage("money_entry", "created", "m1", sampleStats()))

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != "money_entry_created" || got.Stats.TotalRevenue != "150.00" {
		t.Errorf("message = %+v", got)
	}
}
