package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/haptic/internal/command"
	"github.com/ayusman/haptic/internal/detector"
	"github.com/ayusman/haptic/internal/gesture"
	"github.com/ayusman/haptic/internal/store"
)

// BindingHandler handles HTTP requests for object/gesture bindings.
type BindingHandler struct {
	store *store.Store
	specs command.SpecTable
}

// NewBindingHandler creates a BindingHandler. Commands are validated against
// specs; a nil table uses the default one.
func NewBindingHandler(s *store.Store, specs command.SpecTable) *BindingHandler {
	if specs == nil {
		specs = command.DefaultSpecs()
	}
	return &BindingHandler{store: s, specs: specs}
}

// ServeHTTP routes /api/bindings and /api/bindings/{id}.
func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := itemPath(r, "/api/bindings")

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.set(w, r)
		case http.MethodDelete:
			h.clear(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type setBindingRequest struct {
	ObjectLabel string `json:"object_label"`
	GestureKey  string `json:"gesture_key"`
	Command     string `json:"command"`
}

type listBindingsResponse struct {
	Bindings []*store.Binding `json:"bindings"`
}

type clearResponse struct {
	Deleted int64 `json:"deleted"`
}

// validate normalizes the request in place and reports the first problem.
func (h *BindingHandler) validate(req *setBindingRequest) string {
	req.ObjectLabel = detector.NormalizeLabel(req.ObjectLabel)
	req.GestureKey = strings.ToLower(strings.TrimSpace(req.GestureKey))
	req.Command = strings.TrimSpace(req.Command)

	switch {
	case req.ObjectLabel == "":
		return "object_label is required"
	case strings.Contains(req.ObjectLabel, ":"):
		return "object_label must not contain ':'"
	case !gesture.Category(req.GestureKey).Valid():
		return "unknown gesture_key: " + req.GestureKey
	}
	if _, ok := h.specs[req.Command]; !ok {
		return "unknown command: " + req.Command
	}
	return ""
}

func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.Bindings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}

	if label := detector.NormalizeLabel(r.URL.Query().Get("label")); label != "" {
		filtered := bindings[:0]
		for _, b := range bindings {
			if b.ObjectLabel == label {
				filtered = append(filtered, b)
			}
		}
		bindings = filtered
	}
	if bindings == nil {
		bindings = []*store.Binding{}
	}

	writeJSON(w, http.StatusOK, listBindingsResponse{Bindings: bindings})
}

func (h *BindingHandler) set(w http.ResponseWriter, r *http.Request) {
	var req setBindingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if msg := h.validate(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	b := &store.Binding{
		ObjectLabel: req.ObjectLabel,
		GestureKey:  req.GestureKey,
		Command:     req.Command,
	}
	if err := h.store.Bindings().Set(b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save binding")
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

func (h *BindingHandler) clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Bindings().Clear()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear bindings")
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{Deleted: n})
}

func (h *BindingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Bindings().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete binding")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
