package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"battlecore/internal/datastore"
)

func TestNewServerIsSideEffectFree(t *testing.T) {
	srv := NewServer(datastore.NewMemory())
	defer srv.Stop()

	if srv.Router() == nil {
		t.Fatal("Router() should return a usable handler without Start() being called")
	}
	if srv.Manager() == nil {
		t.Fatal("Manager() should be populated at construction")
	}
}

func TestServerRouterServesHealthWithoutStart(t *testing.T) {
	srv := NewServer(datastore.NewMemory())
	defer srv.Stop()

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", resp.StatusCode)
	}
}

func TestServerManagerRejectsUnknownBattleOutsideHTTP(t *testing.T) {
	srv := NewServer(datastore.NewMemory())
	defer srv.Stop()

	// The manager is reachable directly, independent of the HTTP surface;
	// an unknown battle id must still be rejected the same way the HTTP
	// handlers reject one.
	if _, _, err := srv.Manager().Status("nope"); err == nil {
		t.Fatal("expected an error for an unknown battle id via the manager accessor")
	}
}

func TestServerStopIsIdempotentBeforeStart(t *testing.T) {
	srv := NewServer(datastore.NewMemory())
	srv.Stop()
	srv.Stop()
}
