package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewWebSocketHubStartsEmpty(t *testing.T) {
	h := NewWebSocketHub()
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", h.ClientCount())
	}
}

func TestLogEventMarshalsExpectedShape(t *testing.T) {
	ev := logEvent{BattleID: "battle-1", Sequence: 7, Text: "move|mon:Ratty,0,1|name:Tackle"}
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["battleId"] != "battle-1" {
		t.Errorf("battleId = %v, want battle-1", decoded["battleId"])
	}
	if decoded["sequence"].(float64) != 7 {
		t.Errorf("sequence = %v, want 7", decoded["sequence"])
	}
	if decoded["text"] != ev.Text {
		t.Errorf("text = %v, want %v", decoded["text"], ev.Text)
	}
}

func TestSendToBattleIgnoresEmptyHub(t *testing.T) {
	h := NewWebSocketHub()
	// With no registered clients this must not panic or block.
	h.sendToBattle("battle-1", []byte(`{"battleId":"battle-1"}`))
}

func TestWebSocketRateLimiterEnforcesPerIPCap(t *testing.T) {
	wrl := NewWebSocketRateLimiter(2)
	if !wrl.Allow("1.2.3.4") {
		t.Fatal("first connection from an IP should be allowed")
	}
	if !wrl.Allow("1.2.3.4") {
		t.Fatal("second connection from an IP should be allowed")
	}
	if wrl.Allow("1.2.3.4") {
		t.Fatal("third connection should be rejected once the per-IP cap is reached")
	}
	if got := wrl.GetConnectionCount("1.2.3.4"); got != 2 {
		t.Errorf("GetConnectionCount = %d, want 2", got)
	}
	wrl.Release("1.2.3.4")
	if !wrl.Allow("1.2.3.4") {
		t.Fatal("a connection should be allowed again after Release frees a slot")
	}
}

func TestWebSocketRateLimiterTracksIPsIndependently(t *testing.T) {
	wrl := NewWebSocketRateLimiter(1)
	if !wrl.Allow("1.1.1.1") {
		t.Fatal("first IP should be allowed")
	}
	if !wrl.Allow("2.2.2.2") {
		t.Fatal("a different IP should have its own counter")
	}
}

func TestIsAllowedOriginAcceptsLocalhost(t *testing.T) {
	if !IsAllowedOrigin("http://localhost:3000") {
		t.Error("expected localhost origins to be allowed")
	}
	if IsAllowedOrigin("") {
		t.Error("an empty origin should never be allowed")
	}
	if IsAllowedOrigin("https://evil.example.com") {
		t.Error("an unlisted origin should be rejected")
	}
}

func TestHandleWebSocketRejectsNonUpgradeRequest(t *testing.T) {
	h := NewWebSocketHub()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/ws?battleId=x", nil)
	h.HandleWebSocket(w, r)
	// A plain HTTP GET with no websocket handshake headers fails the
	// gorilla/websocket upgrade and must not register a client.
	if w.Code == http.StatusOK {
		t.Errorf("HandleWebSocket without upgrade headers = %d, want a non-200 failure", w.Code)
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0 after a failed upgrade", h.ClientCount())
	}
}
