package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/shiptrack/internal/artifact"
	"github.com/rpattn/shiptrack/internal/orchestrator"
	"github.com/rpattn/shiptrack/internal/repository"
)

// ArtifactReader is the read-only slice of the artifact store the API serves.
type ArtifactReader interface {
	List(kind artifact.Kind) ([]artifact.Info, error)
	Latest(kind artifact.Kind) (artifact.Info, error)
	Read(info artifact.Info, out any) error
}

// StageReporter exposes the orchestrator's current stage.
type StageReporter interface {
	Stage() orchestrator.Stage
}

// Handler serves persisted artifacts and processing status over HTTP.
type Handler struct {
	store   ArtifactReader
	status  StageReporter
	rejects repository.RejectLogRepository
}

// NewHandler builds the API handler. rejects may be nil when no database is
// configured; the endpoint then reports the feature as unavailable.
func NewHandler(store ArtifactReader, status StageReporter, rejects repository.RejectLogRepository) *Handler {
	return &Handler{store: store, status: status, rejects: rejects}
}

// Routes registers all endpoints on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /status", h.handleStatus)
	mux.HandleFunc("GET /artifacts/{kind}", h.handleList)
	mux.HandleFunc("GET /artifacts/{kind}/latest", h.handleLatest)
	mux.HandleFunc("GET /rejects", h.handleRejects)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	stage := orchestrator.StageIdle
	if h.status != nil {
		stage = h.status.Stage()
	}
	writeJSON(w, http.StatusOK, map[string]string{"stage": string(stage)})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(r.PathValue("kind"))
	if !ok {
		http.Error(w, "unknown artifact kind", http.StatusNotFound)
		return
	}

	infos, err := h.store.List(kind)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list artifacts: %v", err), http.StatusInternalServerError)
		return
	}
	if infos == nil {
		infos = []artifact.Info{}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(r.PathValue("kind"))
	if !ok {
		http.Error(w, "unknown artifact kind", http.StatusNotFound)
		return
	}

	info, err := h.store.Latest(kind)
	if err != nil {
		if errors.Is(err, artifact.ErrNoArtifact) {
			http.Error(w, "no artifact available yet", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("failed to locate artifact: %v", err), http.StatusInternalServerError)
		return
	}

	var payload json.RawMessage
	if err := h.store.Read(info, &payload); err != nil {
		http.Error(w, fmt.Sprintf("failed to read artifact: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Artifact-Name", info.Name)
	_, _ = w.Write(payload)
}

func (h *Handler) handleRejects(w http.ResponseWriter, r *http.Request) {
	if h.rejects == nil {
		http.Error(w, "reject log persistence is not configured", http.StatusServiceUnavailable)
		return
	}

	source := strings.TrimSpace(r.URL.Query().Get("source"))
	if source == "" {
		http.Error(w, "source query parameter is required", http.StatusBadRequest)
		return
	}
	fileName := strings.TrimSpace(r.URL.Query().Get("file"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.rejects.List(r.Context(), source, fileName, limit, offset)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list reject logs: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func parseKind(raw string) (artifact.Kind, bool) {
	switch artifact.Kind(raw) {
	case artifact.KindAggregate:
		return artifact.KindAggregate, true
	case artifact.KindDelta:
		return artifact.KindDelta, true
	default:
		return "", false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
