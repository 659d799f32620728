package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flowscope/flowscope/pkg/archive"
	"github.com/flowscope/flowscope/pkg/errors"
	"github.com/flowscope/flowscope/pkg/flow"
	"github.com/flowscope/flowscope/pkg/render"
	"github.com/flowscope/flowscope/pkg/runs"
	"github.com/flowscope/flowscope/pkg/view"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type filtersRequest struct {
	Tags        []string    `json:"tags"`
	Search      string      `json:"search"`
	HiddenKinds []flow.Kind `json:"hidden_kinds"`
}

type focusRequest struct {
	NodeID string `json:"node_id"`
}

type publishRequest struct {
	Title string `json:"title"`
}

type publishedResponse struct {
	ID string `json:"id"`
}

// handleMain serves the full current state: visible nodes with geometry,
// effective edges, pipelines, tags, filters and stats.
func (s *Server) handleMain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.State(r.Context()))
}

// handleLayout serves the raw drawing for clients that keep their own
// copy of the graph and only need geometry.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	s.session.State(r.Context()) // brings the drawing up to date
	d := s.session.Drawing()
	if d == nil {
		writeError(w, errors.New(errors.ErrCodeNotFound, "no snapshot loaded"))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleNodeDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.session.NodeDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleFilters replaces the whole filter set. Omitted fields clear their
// filter, so clients always post the complete set they want active.
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	var req filtersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	if _, err := s.session.SetTagFilter(ctx, req.Tags); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.session.SetSearchFilter(ctx, req.Search); err != nil {
		writeError(w, err)
		return
	}

	hidden := make(map[flow.Kind]bool, len(req.HiddenKinds))
	for _, k := range req.HiddenKinds {
		hidden[k] = true
	}
	var st *view.State
	for _, kind := range []flow.Kind{flow.KindTask, flow.KindDataset, flow.KindParameters} {
		var err error
		st, err = s.session.SetKindVisible(ctx, kind, !hidden[kind])
		if err != nil {
			writeError(w, err)
			return
		}
	}

	s.hub.broadcast(ctx, event{Type: eventLayout, GraphHash: st.GraphHash})
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	st, err := s.session.ToggleCollapsed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.broadcast(r.Context(), event{Type: eventLayout, GraphHash: st.GraphHash})
	writeJSON(w, http.StatusOK, st)
}

// handleFocus sets or clears the focused node. Focus changes highlights
// only, so subscribers get a state event rather than a layout event.
func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	var req focusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	st, err := s.session.Focus(r.Context(), req.NodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.broadcast(r.Context(), event{Type: eventState, GraphHash: st.GraphHash})
	writeJSON(w, http.StatusOK, st)
}

// handleSnapshot replaces the loaded snapshot. A rejected snapshot leaves
// the previous graph current and reports 422 with the rejection reason.
// Runs embedded in an accepted snapshot are imported into the run store.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "reading request body"))
		return
	}

	ctx := r.Context()
	st, err := s.session.Load(ctx, data)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.runs != nil {
		if snap := s.session.Snapshot(); snap != nil && len(snap.Runs) > 0 {
			n, err := s.runs.Import(ctx, snap.Runs)
			if err != nil {
				s.logger.Warn("importing snapshot runs", "err", err)
			} else if n > 0 {
				s.logger.Info("imported runs", "count", n)
			}
		}
	}

	s.hub.broadcast(ctx, event{Type: eventSnapshot, GraphHash: st.GraphHash})
	writeJSON(w, http.StatusOK, st)
}

// handleRunIndex lists recorded runs, newest first. Without a run store
// the history is empty, not an error.
func (s *Server) handleRunIndex(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, http.StatusOK, []runs.Run{})
		return
	}
	list, err := s.runs.List(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []runs.Run{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleRunGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.runs == nil {
		writeError(w, errors.New(errors.ErrCodeRunNotFound, "run %s not found", id))
		return
	}
	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleRunAnnotate replaces a run's annotations: the bookmark flag,
// title and notes all take the posted values.
func (s *Server) handleRunAnnotate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.runs == nil {
		writeError(w, errors.New(errors.ErrCodeRunNotFound, "run %s not found", id))
		return
	}
	var details runs.Details
	if err := decodeJSON(r, &details); err != nil {
		writeError(w, err)
		return
	}
	if err := s.runs.SetDetails(r.Context(), id, details); err != nil {
		writeError(w, err)
		return
	}
	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleExport renders the current state as svg, dot or json.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := render.ExportOptions{
		Format:     chi.URLParam(r, "format"),
		Theme:      q.Get("theme"),
		HideLabels: q.Get("hide_labels") == "true",
		Smooth:     q.Get("smooth") == "true",
		Detailed:   q.Get("detailed") == "true",
	}

	ctx := r.Context()
	artifact, err := s.exporter.Export(ctx, s.session.State(ctx), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(opts.Format))
	w.WriteHeader(http.StatusOK)
	w.Write(artifact)
}

// handlePublish stores the current snapshot and state in the archive and
// returns the published id.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, errors.New(errors.ErrCodeInvalidConfig, "no archive configured"))
		return
	}
	var req publishRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	snap := s.session.Snapshot()
	if snap == nil {
		writeError(w, errors.New(errors.ErrCodeNotFound, "no snapshot loaded"))
		return
	}

	id, err := s.archive.Put(ctx, archive.Published{
		Title:    req.Title,
		Snapshot: snap,
		State:    s.session.State(ctx),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("published view", "id", id, "title", req.Title)
	writeJSON(w, http.StatusCreated, publishedResponse{ID: id})
}

func (s *Server) handlePublishedIndex(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusOK, []archive.Published{})
		return
	}
	list, err := s.archive.List(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []archive.Published{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handlePublishedGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.archive == nil {
		writeError(w, errors.New(errors.ErrCodeViewNotFound, "published view %s not found", id))
		return
	}
	pub, err := s.archive.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pub)
}

func (s *Server) handlePublishedDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.archive == nil {
		writeError(w, errors.New(errors.ErrCodeViewNotFound, "published view %s not found", id))
		return
	}
	if err := s.archive.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "malformed request body")
	}
	return nil
}

func queryLimit(r *http.Request) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{
		Code:    string(errors.GetCode(err)),
		Message: errors.UserMessage(err),
	})
}

// statusFor maps error codes to HTTP statuses. Rejected snapshots are
// 422: the request was well-formed but its content failed validation.
func statusFor(err error) int {
	if errors.IsLoadError(err) {
		return http.StatusUnprocessableEntity
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidConfig:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeNodeNotFound, errors.ErrCodePipelineNotFound,
		errors.ErrCodeRunNotFound, errors.ErrCodeViewNotFound:
		return http.StatusNotFound
	case errors.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func contentTypeFor(format string) string {
	switch format {
	case render.FormatSVG:
		return "image/svg+xml"
	case render.FormatDOT:
		return "text/vnd.graphviz"
	default:
		return "application/json"
	}
}
