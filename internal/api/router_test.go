package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"battlecore/internal/datastore"
	"battlecore/internal/ident"
)

func testRouter(t *testing.T) *http.ServeMux {
	t.Helper()
	store := datastore.NewMemory()
	store.Species["Rattata"] = datastore.Species{
		Name: "Rattata", Types: []ident.Type{ident.Normal},
		BaseStats: ident.StatTable{30, 56, 35, 25, 35, 72},
	}
	store.Moves["Tackle"] = datastore.Move{
		Name: "Tackle", ID: "Tackle", Type: ident.Normal, Category: datastore.CategoryPhysical,
		BasePower: 40, PP: 35, Target: datastore.TargetNormal,
	}
	mgr := NewBattleManager(store)
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000})
	t.Cleanup(rl.Stop)
	router := NewRouter(RouterConfig{Manager: mgr, RateLimiter: rl, DisableLogging: true})
	mux := http.NewServeMux()
	mux.Handle("/", router)
	return mux
}

func teamJSON() json.RawMessage {
	b, _ := json.Marshal([]map[string]any{{
		"species": "Rattata", "nickname": "Ratty", "level": 50,
		"ivs": [6]int{31, 31, 31, 31, 31, 31}, "moves": []string{"Tackle"},
	}})
	return b
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", w.Code)
	}
}

func TestCreateBattleEndpoint(t *testing.T) {
	router := testRouter(t)
	body, _ := json.Marshal(map[string]any{
		"seed":       1,
		"battleType": "singles",
		"playerA":    []string{"alice"},
		"playerB":    []string{"bob"},
		"teamA":      json.RawMessage(teamJSON()),
		"teamB":      json.RawMessage(teamJSON()),
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/battles/", bytes.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("POST /battles/ = %d, body %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["battleId"] == "" {
		t.Fatal("expected a non-empty battleId in the response")
	}
}

func TestCreateBattleRejectsMissingPlayers(t *testing.T) {
	router := testRouter(t)
	body, _ := json.Marshal(map[string]any{"seed": 1})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/battles/", bytes.NewReader(body)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST /battles/ with no players = %d, want 400", w.Code)
	}
}

func TestStatusAndLogEndpoints(t *testing.T) {
	router := testRouter(t)
	createBody, _ := json.Marshal(map[string]any{
		"seed": 1, "playerA": []string{"alice"}, "playerB": []string{"bob"},
		"teamA": json.RawMessage(teamJSON()), "teamB": json.RawMessage(teamJSON()),
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/battles/", bytes.NewReader(createBody)))
	var created map[string]string
	json.Unmarshal(w.Body.Bytes(), &created)
	id := created["battleId"]

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/battles/"+id+"/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d", w.Code)
	}
	var status map[string]any
	json.Unmarshal(w.Body.Bytes(), &status)
	if ended, _ := status["ended"].(bool); ended {
		t.Error("a fresh battle should not be ended")
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/battles/"+id+"/log", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET log = %d", w.Code)
	}
}

func TestStatusEndpointUnknownBattle(t *testing.T) {
	router := testRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/battles/nope/status", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET status for unknown battle = %d, want 404", w.Code)
	}
}

func TestSubmitChoiceEndpointRejectsBadJSON(t *testing.T) {
	router := testRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/battles/x/choice", bytes.NewReader([]byte("not json"))))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST choice with invalid JSON = %d, want 400", w.Code)
	}
}
