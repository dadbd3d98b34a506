package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayusman/haptic/internal/store"
)

// newTestStore creates a Store backed by a temporary database.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBindingHandler_Set(t *testing.T) {
	s := newTestStore(t)
	handler := NewBindingHandler(s, nil)

	rec := serve(handler, http.MethodPost, "/api/bindings",
		`{"object_label": "  Coffee Mug ", "gesture_key": "UP", "command": "volume_up"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var b store.Binding
	if err := json.NewDecoder(rec.Body).Decode(&b); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if b.ID == "" {
		t.Error("expected generated ID")
	}
	if b.ObjectLabel != "coffee mug" || b.GestureKey != "up" {
		t.Errorf("expected normalized key, got %q:%q", b.ObjectLabel, b.GestureKey)
	}

	table, err := s.Bindings().Table()
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	if table["coffee mug:up"] != "volume_up" {
		t.Errorf("binding not stored: %v", table)
	}
}

func TestBindingHandler_SetReplaces(t *testing.T) {
	s := newTestStore(t)
	handler := NewBindingHandler(s, nil)

	first := serve(handler, http.MethodPost, "/api/bindings", `{"object_label": "pen", "gesture_key": "left", "command": "previous_tab"}`)
	second := serve(handler, http.MethodPost, "/api/bindings", `{"object_label": "pen", "gesture_key": "left", "command": "pan_left"}`)

	var a, b store.Binding
	json.NewDecoder(first.Body).Decode(&a)
	json.NewDecoder(second.Body).Decode(&b)

	if a.ID != b.ID {
		t.Errorf("replacing a binding should keep its ID: %s != %s", a.ID, b.ID)
	}
	if b.Command != "pan_left" {
		t.Errorf("expected replaced command, got %s", b.Command)
	}
}

func TestBindingHandler_SetValidation(t *testing.T) {
	s := newTestStore(t)
	handler := NewBindingHandler(s, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"object_label":`},
		{"missing label", `{"gesture_key": "up", "command": "volume_up"}`},
		{"label with separator", `{"object_label": "a:b", "gesture_key": "up", "command": "volume_up"}`},
		{"unknown gesture", `{"object_label": "mug", "gesture_key": "wave", "command": "volume_up"}`},
		{"unknown command", `{"object_label": "mug", "gesture_key": "up", "command": "launch_rocket"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(handler, http.MethodPost, "/api/bindings", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}

			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Error == "" {
				t.Errorf("expected JSON error body, got %q", rec.Body.String())
			}
		})
	}
}

func TestBindingHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewBindingHandler(s, nil)

	t.Run("empty list is an array", func(t *testing.T) {
		rec := serve(handler, http.MethodGet, "/api/bindings", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if !bytes.Contains(rec.Body.Bytes(), []byte(`"bindings":[]`)) {
			t.Errorf("expected empty array, got %s", rec.Body.String())
		}
	})

	s.Bindings().Set(&store.Binding{ObjectLabel: "mug", GestureKey: "up", Command: "volume_up"})
	s.Bindings().Set(&store.Binding{ObjectLabel: "mug", GestureKey: "down", Command: "volume_down"})
	s.Bindings().Set(&store.Binding{ObjectLabel: "pen", GestureKey: "right", Command: "next_tab"})

	t.Run("all bindings", func(t *testing.T) {
		rec := serve(handler, http.MethodGet, "/api/bindings", "")
		var resp listBindingsResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if len(resp.Bindings) != 3 {
			t.Errorf("expected 3 bindings, got %d", len(resp.Bindings))
		}
	})

	t.Run("filtered by label", func(t *testing.T) {
		rec := serve(handler, http.MethodGet, "/api/bindings?label=MUG", "")
		var resp listBindingsResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if len(resp.Bindings) != 2 {
			t.Errorf("expected 2 bindings, got %d", len(resp.Bindings))
		}
	})
}

func TestBindingHandler_GetAndDelete(t *testing.T) {
	s := newTestStore(t)
	handler := NewBindingHandler(s, nil)

	b := &store.Binding{ObjectLabel: "mug", GestureKey: "up", Command: "volume_up"}
	if err := s.Bindings().Set(b); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	rec := serve(handler, http.MethodGet, "/api/bindings/"+b.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET expected status %d, got %d", http.StatusOK, rec.Code)
	}

	rec = serve(handler, http.MethodDelete, "/api/bindings/"+b.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	rec = serve(handler, http.MethodGet, "/api/bindings/"+b.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	rec = serve(handler, http.MethodDelete, "/api/bindings/"+b.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second DELETE expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestBindingHandler_Clear(t *testing.T) {
	s := newTestStore(t)
	handler := NewBindingHandler(s, nil)

	s.Bindings().Set(&store.Binding{ObjectLabel: "mug", GestureKey: "up", Command: "volume_up"})
	s.Bindings().Set(&store.Binding{ObjectLabel: "pen", GestureKey: "up", Command: "scroll_up"})

	rec := serve(handler, http.MethodDelete, "/api/bindings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp clearResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", resp.Deleted)
	}
}

func TestBindingHandler_MethodNotAllowed(t *testing.T) {
	handler := NewBindingHandler(newTestStore(t), nil)

	if rec := serve(handler, http.MethodPut, "/api/bindings", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT collection: expected %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
	if rec := serve(handler, http.MethodPost, "/api/bindings/some-id", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST item: expected %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
