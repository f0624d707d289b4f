package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/httputil"
	"github.com/banshee-data/posture.report/internal/posture"
	"github.com/banshee-data/posture.report/internal/posture/l1samples"
	"github.com/banshee-data/posture.report/internal/posture/l3detect"
	"github.com/banshee-data/posture.report/internal/posture/l4events"
	"github.com/banshee-data/posture.report/internal/posture/l5summary"
	"github.com/banshee-data/posture.report/internal/posture/timeline"
	"github.com/banshee-data/posture.report/internal/version"
)

// createSessionRequest names the session by id, or by project_id for
// clients of the project service. Both are optional.
type createSessionRequest struct {
	ID        string               `json:"id,omitempty"`
	ProjectID string               `json:"project_id,omitempty"`
	Config    *config.TuningConfig `json:"config,omitempty"`
}

type sessionResponse struct {
	ID       string             `json:"id"`
	Settings l5summary.Settings `json:"settings"`
}

type ingestResponse struct {
	Accepted    int                    `json:"accepted"`
	LastFrame   int                    `json:"last_frame"`
	Active      []l3detect.Label       `json:"active"`
	Transitions []l4events.Transition `json:"transitions"`
}

type actionRequest struct {
	ProjectID string                  `json:"project_id"`
	Frames    []l1samples.FrameSample `json:"frames"`
	Config    *config.TuningConfig    `json:"config,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":         "healthy",
		"stored_results": s.store.Len(),
		"persistent":     s.db != nil,
		"version":        version.Version,
	})
}

// sessionConfig merges a per-request override onto the server defaults.
// Validation happens when the session is created.
func (s *Server) sessionConfig(override *config.TuningConfig) *config.TuningConfig {
	return s.defaults.Merge(override)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, httputil.ErrEmptyBody) {
		httputil.BadRequest(w, err.Error())
		return
	}

	cfg := s.sessionConfig(req.Config)
	id := req.ID
	if id == "" {
		id = req.ProjectID
	}
	var err error
	if id == "" {
		id, err = s.store.Create(cfg)
	} else {
		err = s.store.Begin(id, cfg)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	var settings l5summary.Settings
	if err := s.store.With(id, func(sess *posture.Session) error {
		settings = sess.Settings()
		return nil
	}); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sessionResponse{ID: id, Settings: settings})
}

func (s *Server) sessionInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.Info(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, info)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ingestFrames accepts a JSON array of frames or NDJSON, one frame per line.
// The body is decoded before the session is locked; on the first rejected
// frame the frames before it stay ingested and the error names the index.
func (s *Server) ingestFrames(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to read body: %v", err))
		return
	}
	samples, err := l1samples.ReadAll(bytes.NewReader(body))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	resp := ingestResponse{Transitions: []l4events.Transition{}}
	err = s.store.With(id, func(sess *posture.Session) error {
		for _, sample := range samples {
			u, err := sess.Ingest(sample)
			if err != nil {
				return err
			}
			resp.Accepted++
			resp.LastFrame = u.FrameIndex
			resp.Transitions = append(resp.Transitions, u.Transitions...)
		}
		resp.Active = sess.ActiveLabels()
		return nil
	})
	if err != nil {
		writeError(w, fmt.Errorf("accepted %d frames: %w", resp.Accepted, err))
		return
	}
	if resp.Active == nil {
		resp.Active = []l3detect.Label{}
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) finalize(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.Finalize(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, report)
}

// report returns the stored report. format=backend selects the camelCase
// project-service shape.
func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	report, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	switch r.URL.Query().Get("format") {
	case "", "full":
		httputil.WriteJSONOK(w, report)
	case "backend":
		httputil.WriteJSONOK(w, l5summary.ToBackend(id, report))
	default:
		httputil.BadRequest(w, "format must be 'full' or 'backend'")
	}
}

func (s *Server) timeline(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := timeline.RenderHTML(&buf, report); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 || v > 1000 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = v
	}
	rows, err := s.db.ListReports(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, rows)
}

// analyzeAction runs a complete analysis in one request and answers in the
// project-service shape. Only one analysis per project may run at a time.
func (s *Server) analyzeAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.ProjectID == "" {
		httputil.BadRequest(w, "project_id is required")
		return
	}

	report, err := s.runAnalysis(r.Context(), req.ProjectID, s.sessionConfig(req.Config), req.Frames)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, l5summary.ToBackend(req.ProjectID, report))
}

func (s *Server) runAnalysis(ctx context.Context, id string, cfg *config.TuningConfig, frames []l1samples.FrameSample) (l5summary.Report, error) {
	if err := s.store.Begin(id, cfg); err != nil {
		return l5summary.Report{}, err
	}
	err := s.store.With(id, func(sess *posture.Session) error {
		return sess.IngestAll(frames)
	})
	if err != nil {
		s.store.Fail(id, err)
		return l5summary.Report{}, err
	}
	return s.store.Finalize(ctx, id)
}
