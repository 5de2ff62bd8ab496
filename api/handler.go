package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/geouploader/geosheet"
	"github.com/geouploader/geosheet/session"
	"github.com/geouploader/geosheet/store"
)

type handler struct {
	svc *session.Service
}

type createRequest struct {
	Title    string                       `json:"title"`
	Manifest *geosheet.SampleFileManifest `json:"manifest"`
}

type resizeRequest struct {
	Action geosheet.Action `json:"action"`
}

type widthRequest struct {
	Width int `json:"width"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// createSession accepts either a JSON createRequest or, with a YAML content
// type, a bare manifest whose session field names the session.
func (h *handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if isYAML(r.Header.Get("Content-Type")) {
		m, err := geosheet.ParseManifest(r.Body)
		if err != nil {
			writeError(w, badRequest(err))
			return
		}
		req.Manifest = m
		req.Title = r.URL.Query().Get("title")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest(err))
		return
	}
	if req.Manifest == nil {
		writeError(w, badRequest(errors.New("missing manifest")))
		return
	}
	sess, err := h.svc.Create(r.Context(), req.Title, req.Manifest)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	sess, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *handler) getMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	md, err := h.svc.Metadata(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func (h *handler) saveMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var md geosheet.Metadata
	if err := json.NewDecoder(r.Body).Decode(&md); err != nil {
		writeError(w, badRequest(err))
		return
	}
	if err := h.svc.SaveMetadata(r.Context(), id, &md); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Data saved successfully"})
}

func (h *handler) getDropdowns(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	d, err := h.svc.Dropdowns(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) resize(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req resizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest(err))
		return
	}
	sess, err := h.svc.Resize(r.Context(), id, req.Action)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *handler) resizeSampleColumns(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req widthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest(err))
		return
	}
	sess, err := h.svc.ResizeSampleColumns(r.Context(), id, req.Width)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// fillChecksums takes a checksum table as the request body. A JSON or YAML
// manifest instead has the checksums computed from the files on disk.
func (h *handler) fillChecksums(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	ct := r.Header.Get("Content-Type")
	if !isYAML(ct) && !strings.HasPrefix(ct, "application/json") {
		n, err := h.svc.FillChecksums(r.Context(), id, r.Body)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"files": n})
		return
	}

	var m *geosheet.SampleFileManifest
	if isYAML(ct) {
		var err error
		if m, err = geosheet.ParseManifest(r.Body); err != nil {
			writeError(w, badRequest(err))
			return
		}
	} else {
		m = &geosheet.SampleFileManifest{}
		if err := json.NewDecoder(r.Body).Decode(m); err != nil {
			writeError(w, badRequest(err))
			return
		}
	}
	entries, err := h.svc.ComputeChecksums(r.Context(), id, m)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) validate(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	issues, err := h.svc.Validate(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.String())
	}
	writeJSON(w, http.StatusOK, map[string][]string{"issues": out})
}

func (h *handler) describe(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	text, err := h.svc.Describe(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, text)
}

func sessionID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeError(w, badRequest(fmt.Errorf("invalid session id %q", raw)))
		return 0, false
	}
	return uint(id), true
}

func isYAML(contentType string) bool {
	return strings.Contains(contentType, "yaml")
}

type requestError struct{ err error }

func (e requestError) Error() string { return e.err.Error() }
func (e requestError) Unwrap() error { return e.err }

func badRequest(err error) error { return requestError{err} }

func statusFor(err error) int {
	var re requestError
	switch {
	case errors.As(err, &re),
		errors.Is(err, geosheet.ErrLastRow),
		errors.Is(err, geosheet.ErrUnknownAction),
		errors.Is(err, session.ErrInvalidTitle),
		errors.Is(err, session.ErrInvalidWidth):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateTitle):
		return http.StatusConflict
	case errors.Is(err, geosheet.ErrLocked):
		return http.StatusLocked
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, errorResponse{Status: "error", Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("could not encode response")
	}
}
