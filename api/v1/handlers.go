// Package v1 is the HTTP surface of the acquisition engine. Handlers stay
// thin: decode, delegate to the service layer, map sentinels to statuses.
package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/seriarr/seriarr/internal/data"
	"github.com/seriarr/seriarr/internal/reqid"
	"github.com/seriarr/seriarr/internal/service"
)

const maxBodyBytes = 1 << 20

// Service is the engine surface the handlers depend on.
type Service interface {
	Sources() []*data.Source
	Search(ctx context.Context, sourceID, query string) ([]data.ContentItem, error)
	Browse(ctx context.Context, sourceID string, page int) ([]data.ContentItem, error)
	Detail(ctx context.Context, sourceID, ref string) (*data.ContentItem, error)
	AcquireAsync(req service.AcquireRequest) (*service.AcquireStatus, error)
	State(ctx context.Context, itemID string) (*data.DownloadState, error)
	Export(ctx context.Context, sourceID, itemID, outDir string) (string, error)
	Grab(ctx context.Context, req service.GrabRequest) (*service.GrabResult, error)
	Ready(ctx context.Context) error
}

// Runs is the run registry surface the handlers depend on.
type Runs interface {
	Get(runID string) (*service.RunInfo, bool)
	Snapshot() []service.RunInfo
}

// Handler bundles the v1 endpoints.
type Handler struct {
	svc  Service
	runs Runs
	log  *slog.Logger
}

// NewHandler builds the endpoint set.
func NewHandler(svc Service, runs Runs, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, runs: runs, log: log}
}

func (h *Handler) logger(r *http.Request) *slog.Logger {
	if id, ok := reqid.From(r.Context()); ok {
		return h.log.With("request_id", id)
	}
	return h.log
}

// Healthz answers liveness probes.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz answers readiness probes; it fails while a required downstream
// dependency does not answer.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ready(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Sources lists the source catalog with resolved capabilities.
func (h *Handler) Sources(w http.ResponseWriter, r *http.Request) {
	type sourceView struct {
		ID           string   `json:"id"`
		Name         string   `json:"name"`
		Variant      string   `json:"variant"`
		Enabled      bool     `json:"enabled"`
		Capabilities []string `json:"capabilities"`
	}
	out := make([]sourceView, 0)
	for _, s := range h.svc.Sources() {
		out = append(out, sourceView{
			ID:           s.ID,
			Name:         s.Name,
			Variant:      string(s.Variant),
			Enabled:      s.Enabled,
			Capabilities: s.Capabilities,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Search runs a source search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	items, err := h.svc.Search(r.Context(), id, query)
	if err != nil {
		h.logger(r).Warn("search", "source", id, "err", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Browse lists one catalog page of a source.
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = p
	}
	items, err := h.svc.Browse(r.Context(), id, page)
	if err != nil {
		h.logger(r).Warn("browse", "source", id, "err", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Detail fetches one item's record with its unit list.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter ref")
		return
	}
	item, err := h.svc.Detail(r.Context(), id, ref)
	if err != nil {
		h.logger(r).Warn("detail", "source", id, "err", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// CreateAcquisition starts (or joins) an acquisition run.
func (h *Handler) CreateAcquisition(w http.ResponseWriter, r *http.Request) {
	var req service.AcquireRequest
	if err := decodeJSONStrict(w, r, &req, maxBodyBytes, "application/json"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SourceID == "" || req.ItemRef == "" {
		writeError(w, http.StatusBadRequest, "sourceId and itemRef are required")
		return
	}
	status, err := h.svc.AcquireAsync(req)
	if err != nil {
		h.logger(r).Warn("acquire", "source", req.SourceID, "err", err)
		writeServiceError(w, err)
		return
	}
	code := http.StatusAccepted
	if !status.Started {
		// An identical request is already running; point at its run.
		code = http.StatusOK
	}
	writeJSON(w, code, status)
}

// ListAcquisitions reports every known run, newest first.
func (h *Handler) ListAcquisitions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.runs.Snapshot())
}

// GetAcquisition reports one run.
func (h *Handler) GetAcquisition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["runId"]
	info, ok := h.runs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown run")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GetState returns the persisted download state of an item.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["itemId"]
	state, err := h.svc.State(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Export builds a distributable artifact from downloaded units.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["itemId"]
	var req struct {
		SourceID string `json:"sourceId"`
		OutDir   string `json:"outDir"`
	}
	if err := decodeJSONStrict(w, r, &req, maxBodyBytes, "application/json"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SourceID == "" {
		writeError(w, http.StatusBadRequest, "sourceId is required")
		return
	}
	path, err := h.svc.Export(r.Context(), req.SourceID, itemID, req.OutDir)
	if err != nil {
		h.logger(r).Warn("export", "item", itemID, "err", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// CreateGrab runs the swarm search-rank-transfer flow synchronously.
func (h *Handler) CreateGrab(w http.ResponseWriter, r *http.Request) {
	var req service.GrabRequest
	if err := decodeJSONStrict(w, r, &req, maxBodyBytes, "application/json"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SourceID == "" || req.Query == "" {
		writeError(w, http.StatusBadRequest, "sourceId and query are required")
		return
	}
	res, err := h.svc.Grab(r.Context(), req)
	if err != nil {
		h.logger(r).Warn("grab", "source", req.SourceID, "err", err)
		if res != nil {
			// Candidates gathered before the failure still help the caller.
			writeJSON(w, statusFor(err), res)
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
