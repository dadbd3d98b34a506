package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/haptic/internal/command"
	"github.com/ayusman/haptic/internal/gesture"
	"github.com/ayusman/haptic/internal/store"
)

// maxHistory bounds the limit accepted by the history endpoint.
const maxHistory = 500

// CommandHandler exposes the command table and the command history.
type CommandHandler struct {
	store *store.Store
	specs command.SpecTable
}

// NewCommandHandler creates a CommandHandler. A nil store disables history.
func NewCommandHandler(s *store.Store, specs command.SpecTable) *CommandHandler {
	if specs == nil {
		specs = command.DefaultSpecs()
	}
	return &CommandHandler{store: s, specs: specs}
}

type commandInfo struct {
	Name      string `json:"name"`
	Action    string `json:"action"`
	BaseValue int    `json:"base_value"`
}

type listCommandsResponse struct {
	Commands []commandInfo      `json:"commands"`
	Actions  []string           `json:"actions"`
	Gestures []gesture.Category `json:"gestures"`
}

type historyResponse struct {
	Commands []store.CommandRecord `json:"commands"`
}

// ServeHTTP routes /api/commands and /api/commands/history.
func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch itemPath(r, "/api/commands") {
	case "":
		h.list(w)
	case "history":
		h.history(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *CommandHandler) list(w http.ResponseWriter) {
	names := h.specs.Names()
	resp := listCommandsResponse{
		Commands: make([]commandInfo, 0, len(names)),
		Actions:  h.specs.Actions(),
		Gestures: gesture.Categories(),
	}
	for _, name := range names {
		spec := h.specs[name]
		resp.Commands = append(resp.Commands, commandInfo{
			Name:      name,
			Action:    spec.Action,
			BaseValue: spec.BaseValue,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CommandHandler) history(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, historyResponse{Commands: []store.CommandRecord{}})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistory)
	}

	records, err := h.store.Commands().Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	if records == nil {
		records = []store.CommandRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Commands: records})
}
