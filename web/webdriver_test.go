package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testRemoteEnd(t *testing.T) *WebDriver {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /session/s1/element", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Using string `json:"using"`
			Value string `json:"value"`
		}
		if err := readJSON(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch {
		case req.Using == "xpath" && req.Value == "//span[@id='amount']":
			writeJSON(w, map[string]any{"value": map[string]string{w3cElementKey: "el-1"}})
		default:
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]any{"value": map[string]string{
				"error": "no such element", "message": req.Value,
			}})
		}
	})
	mux.HandleFunc("POST /session/s1/elements", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Using string `json:"using"`
			Value string `json:"value"`
		}
		if err := readJSON(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Value == "li.entry" {
			writeJSON(w, map[string]any{"value": []map[string]string{
				{w3cElementKey: "el-1"},
				{w3cElementKey: "el-2"},
			}})
			return
		}
		writeJSON(w, map[string]any{"value": []map[string]string{}})
	})
	mux.HandleFunc("GET /session/s1/element/el-1/text", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"value": "-45,20 €"})
	})
	mux.HandleFunc("GET /session/s1/window", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"value": "home-handle"})
	})
	mux.HandleFunc("POST /session/s1/window/new", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"value": map[string]string{"handle": "tab-handle"}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	wd := NewWebDriver(srv.URL, "s1")
	wd.PollInterval = time.Millisecond
	return wd
}

func readJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestWebDriverLocate(t *testing.T) {
	wd := testRemoteEnd(t)
	ctx := context.Background()

	el, err := wd.Locate(ctx, "//span[@id='amount']", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, err := el.Text(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "-45,20 €" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestWebDriverLocateTimeout(t *testing.T) {
	wd := testRemoteEnd(t)
	_, err := wd.Locate(context.Background(), "//span[@id='missing']", 10*time.Millisecond)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWebDriverLocateAll(t *testing.T) {
	wd := testRemoteEnd(t)
	els, err := wd.LocateAll(context.Background(), "li.entry", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(els) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(els))
	}
}

func TestWebDriverTabs(t *testing.T) {
	wd := testRemoteEnd(t)
	ctx := context.Background()

	home, err := wd.CurrentTab(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if home != "home-handle" {
		t.Fatalf("unexpected handle %q", home)
	}

	tab, err := wd.OpenTab(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tab != "tab-handle" {
		t.Fatalf("unexpected handle %q", tab)
	}
}

func TestSelectorStrategy(t *testing.T) {
	for selector, want := range map[string]string{
		"//li/a":          "xpath",
		"(//li)[1]":       "xpath",
		"div.amount":      "css selector",
		"#tags_container": "css selector",
	} {
		if using, _ := selectorStrategy(selector); using != want {
			t.Fatalf("%s: expected %s, got %s", selector, want, using)
		}
	}
}
