package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/local/qrprint/internal/archive"
	"github.com/local/qrprint/internal/collector"
	"github.com/local/qrprint/internal/layout"
	"github.com/local/qrprint/internal/logger"
	"github.com/local/qrprint/internal/metrics"
	"github.com/local/qrprint/internal/pdfcheck"
	"github.com/local/qrprint/internal/render"
	"github.com/local/qrprint/internal/store"
)

const (
	ModePrint      = "print"
	ModeIndividual = "individual"
)

type jobReq struct {
	CommuneCode string `json:"communeCode"`
	CommuneName string `json:"communeName"`
	Start       *seq   `json:"start"`
	End         *seq   `json:"end"`
	Mode        string `json:"mode"`
}

type jobResp struct {
	Success     bool            `json:"success"`
	JobID       string          `json:"jobId"`
	DownloadURL string          `json:"downloadUrl"`
	Summary     *render.Summary `json:"summary,omitempty"`
	Files       int             `json:"files,omitempty"`
	Published   string          `json:"published,omitempty"`
}

// JobName is the directory and artifact base name of a batch.
func JobName(communeName string, start, end int) string {
	return fmt.Sprintf("%s_%d_%d", communeName, start, end)
}

func validJobName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req jobReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json", Details: err.Error()})
		return
	}
	if req.Mode == "" {
		req.Mode = ModePrint
	}
	if req.Mode != ModePrint && req.Mode != ModeIndividual {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "mode must be print or individual"})
		return
	}
	if req.CommuneCode == "" || !validJobName(req.CommuneName) {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "missing or invalid communeCode/communeName"})
		return
	}
	start, end, ok := req.Start.bounds(req.End)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: errMissingRange})
		return
	}
	name := JobName(req.CommuneName, start, end)
	jobDir := filepath.Join(s.deps.OutputDir, name)

	jobID := uuid.NewString()
	lg := logger.WithRun(jobID)
	lg.Info().Str("commune", req.CommuneCode).Str("name", req.CommuneName).Int("start", start).Int("end", end).Str("mode", req.Mode).Msg("job received")

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	// the card images must exist before any range is reserved
	images, err := collector.Collect(jobDir)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, collector.ErrMissingInput):
			status = http.StatusNotFound
		case errors.Is(err, collector.ErrNoImages):
			status = http.StatusUnprocessableEntity
		}
		lg.Warn().Err(err).Str("dir", jobDir).Msg("job rejected")
		metrics.IncJob(req.Mode, "rejected")
		writeJSON(w, status, errorResp{Error: err.Error()})
		return
	}

	if _, err := s.deps.Intervals.Reserve(r.Context(), req.CommuneCode, start, end); err != nil {
		var oe *store.OverlapError
		switch {
		case errors.As(err, &oe):
			metrics.IncReservation("conflict")
			metrics.IncJob(req.Mode, "rejected")
			writeJSON(w, http.StatusBadRequest, errorResp{Error: oe.Error()})
		case errors.Is(err, store.ErrInvalidRange):
			metrics.IncJob(req.Mode, "rejected")
			writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		default:
			lg.Error().Err(err).Msg("reserve interval")
			metrics.IncReservation("error")
			metrics.IncJob(req.Mode, "error")
			writeJSON(w, http.StatusInternalServerError, errorResp{Error: "cannot reserve interval", Details: err.Error()})
		}
		return
	}
	metrics.IncReservation("reserved")

	s.events.Publish(Event{Type: EventStart, JobID: jobID, Message: fmt.Sprintf("Starting %s job for %d QR codes...", req.Mode, end-start+1)})

	var resp jobResp
	var artifact string
	began := time.Now()
	if req.Mode == ModePrint {
		resp, artifact, err = s.runPrint(lg, jobID, name, jobDir, images)
	} else {
		resp, artifact, err = s.runIndividual(lg, jobID, name, jobDir)
	}
	if err != nil {
		lg.Error().Err(err).Dur("elapsed", time.Since(began)).Msg("job failed")
		metrics.IncJob(req.Mode, "error")
		s.events.Publish(Event{Type: EventError, JobID: jobID, Message: err.Error()})
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: req.Mode + " generation failed", Details: err.Error()})
		return
	}

	if s.deps.Publisher != nil {
		loc, err := s.deps.Publisher.Publish(r.Context(), name, artifact)
		if err != nil {
			// the local artifact is still served
			lg.Error().Err(err).Str("artifact", artifact).Msg("publish failed")
		} else {
			resp.Published = loc
		}
	}

	resp.Success = true
	resp.JobID = jobID
	metrics.IncJob(req.Mode, "success")
	lg.Info().Str("download", resp.DownloadURL).Dur("elapsed", time.Since(began)).Msg("job complete")
	s.events.Publish(Event{Type: EventComplete, JobID: jobID, Message: fmt.Sprintf("%s ready: %s", name, resp.DownloadURL)})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) runPrint(lg zerolog.Logger, jobID, name, jobDir string, images []collector.ImageEntry) (jobResp, string, error) {
	g, err := layout.Plan(s.deps.Layout)
	if err != nil {
		return jobResp{}, "", err
	}
	s.events.Publish(Event{Type: EventProgress, JobID: jobID, Message: "Generating PDF..."})

	perPage := g.Config.PerPage()
	rd := render.New(g)
	rd.Progress = func(done, total int) {
		if done%perPage == 0 || done == total {
			s.events.Publish(Event{Type: EventProgress, JobID: jobID, Message: fmt.Sprintf("%d/%d images placed", done, total)})
		}
	}

	out := filepath.Join(jobDir, name+".pdf")
	sum, err := rd.Render(images, out)
	if err != nil {
		return jobResp{}, "", err
	}
	if err := pdfcheck.Verify(out, sum.Pages); err != nil {
		return jobResp{}, "", err
	}
	if sum.Skipped > 0 {
		lg.Warn().Strs("skipped", sum.SkippedFiles).Msg("some images were not placed")
	}
	return jobResp{
		DownloadURL: "/output/" + url.PathEscape(name) + "/" + url.PathEscape(name+".pdf"),
		Summary:     &sum,
	}, out, nil
}

func (s *Server) runIndividual(lg zerolog.Logger, jobID, name, jobDir string) (jobResp, string, error) {
	s.events.Publish(Event{Type: EventProgress, JobID: jobID, Message: "Compressing images..."})
	dest := filepath.Join(s.deps.OutputDir, name+".zip")
	n, err := archive.ZipImages(jobDir, dest)
	if err != nil {
		return jobResp{}, "", err
	}
	if info, err := os.Stat(dest); err == nil {
		lg.Info().Int64("bytes", info.Size()).Int("files", n).Msg("archive written")
	}
	return jobResp{DownloadURL: "/output/" + url.PathEscape(name+".zip"), Files: n}, dest, nil
}
