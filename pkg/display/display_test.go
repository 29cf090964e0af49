package display

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestHUDPostsExpectedPayload(t *testing.T) {
	var mu sync.Mutex
	var gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	c.HUD("listening")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotPath != ""
	})

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/display/hud" {
		t.Errorf("path = %q, want /display/hud", gotPath)
	}
	if gotBody["state"] != "listening" {
		t.Errorf("state = %q, want listening", gotBody["state"])
	}
}

func TestRequestsNeverBlockOnUnreachableServer(t *testing.T) {
	c := New("http://127.0.0.1:1", nil) // nothing listening
	start := time.Now()
	c.Restore()
	if time.Since(start) > 50*time.Millisecond {
		t.Error("Restore() should return immediately, not block on the network call")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
