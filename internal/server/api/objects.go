package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ayusman/haptic/internal/detector"
	"github.com/ayusman/haptic/internal/store"
)

// maxFrameBytes caps an uploaded registration frame.
const maxFrameBytes = 8 << 20

// Registrar detects and stores the objects currently in view.
type Registrar interface {
	Register(ctx context.Context) ([]detector.DetectedPoint, error)
	RegisterFrame(ctx context.Context, jpeg []byte) ([]detector.DetectedPoint, error)
}

// ObjectHandler handles HTTP requests for registered objects.
type ObjectHandler struct {
	store     *store.Store
	registrar Registrar
	logger    *slog.Logger
}

// NewObjectHandler creates an ObjectHandler. A nil registrar disables
// POST /api/objects/register.
func NewObjectHandler(s *store.Store, registrar Registrar, logger *slog.Logger) *ObjectHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ObjectHandler{store: s, registrar: registrar, logger: logger}
}

type listObjectsResponse struct {
	Objects []*store.Object `json:"objects"`
}

type registerResponse struct {
	Detected []detector.DetectedPoint `json:"detected"`
	Objects  []*store.Object          `json:"objects"`
}

// ServeHTTP routes /api/objects, /api/objects/register and /api/objects/{id}.
func (h *ObjectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := itemPath(r, "/api/objects")

	switch {
	case path == "":
		switch r.Method {
		case http.MethodGet:
			h.list(w)
		case http.MethodDelete:
			h.clear(w)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case path == "register":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.register(w, r)
	default:
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.delete(w, path)
	}
}

func (h *ObjectHandler) list(w http.ResponseWriter) {
	objects, err := h.store.Objects().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list objects")
		return
	}
	if objects == nil {
		objects = []*store.Object{}
	}
	writeJSON(w, http.StatusOK, listObjectsResponse{Objects: objects})
}

func (h *ObjectHandler) clear(w http.ResponseWriter) {
	n, err := h.store.Objects().Clear()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear objects")
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{Deleted: n})
}

// register runs detection on an uploaded JPEG body if one is sent, otherwise
// on a fresh camera frame.
func (h *ObjectHandler) register(w http.ResponseWriter, r *http.Request) {
	if h.registrar == nil {
		writeError(w, http.StatusServiceUnavailable, "Registration not available")
		return
	}

	var (
		points []detector.DetectedPoint
		err    error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "image/jpeg") {
		body, readErr := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBytes))
		if readErr != nil || len(body) == 0 {
			writeError(w, http.StatusBadRequest, "Invalid image body")
			return
		}
		points, err = h.registrar.RegisterFrame(r.Context(), body)
	} else {
		points, err = h.registrar.Register(r.Context())
	}
	if err != nil {
		h.logger.Warn("object registration failed", "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, "Registration failed: "+err.Error())
		return
	}
	if points == nil {
		points = []detector.DetectedPoint{}
	}

	objects, err := h.store.Objects().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list objects")
		return
	}
	if objects == nil {
		objects = []*store.Object{}
	}

	writeJSON(w, http.StatusOK, registerResponse{Detected: points, Objects: objects})
}

func (h *ObjectHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Objects().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Object not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete object")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
