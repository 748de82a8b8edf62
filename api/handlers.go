package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/urbaine/upwatch/pkg/riskmodel"
)

const (
	fileField    = "file"
	threadsField = "numThreads"
	// maxMemory is the part of a multipart body kept in memory; the rest
	// spills to temporary files.
	maxMemory = 32 << 20
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type PredictResponse struct {
	Risk string `json:"risk"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())
	if s.trainer.Busy() {
		respondFragment(w, failureFragment(riskmodel.ErrBusy), http.StatusConflict)
		return
	}

	if s.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		respondFragment(w, failureFragment(err), status)
		return
	}
	defer r.MultipartForm.RemoveAll()

	threads, err := parseThreads(r.FormValue(threadsField), s.trainer.MaxThreads())
	if err != nil {
		respondFragment(w, failureFragment(err), http.StatusBadRequest)
		return
	}
	file, hdr, err := r.FormFile(fileField)
	if err != nil {
		respondFragment(w, failureFragment(fmt.Errorf("missing %q part: %w", fileField, err)), http.StatusBadRequest)
		return
	}
	defer file.Close()
	logger.Info("Training requested", "file", hdr.Filename, "size", humanize.Bytes(uint64(hdr.Size)), "threads", threads)

	res, err := s.trainer.Train(r.Context(), file, threads)
	if res.JobID != "" {
		w.Header().Set("X-Job-ID", res.JobID)
	}
	if err != nil {
		logger.Error("Training failed", "job", res.JobID, "error", err)
		respondFragment(w, failureFragment(err), trainStatus(err))
		return
	}
	respondFragment(w, successFragment(res.Elapsed), http.StatusOK)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.trainer.Progress(), http.StatusOK)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var key riskmodel.Key
	for _, p := range []struct {
		name string
		dst  *int
	}{{"zone", &key.Zone}, {"time", &key.Time}, {"day", &key.Day}} {
		v, err := strconv.Atoi(strings.TrimSpace(q.Get(p.name)))
		if err != nil {
			respondError(w, fmt.Sprintf("%s must be an integer", p.name), http.StatusBadRequest)
			return
		}
		*p.dst = v
	}

	gen := s.trainer.Generation()
	if gen == 0 {
		respondJSON(w, PredictResponse{Risk: riskmodel.NotTrained}, http.StatusOK)
		return
	}
	cacheKey := fmt.Sprintf("%d|%s", gen, key)
	if risk, ok := s.predictions.Get(cacheKey); ok {
		respondJSON(w, PredictResponse{Risk: risk}, http.StatusOK)
		return
	}
	risk := s.trainer.Model().Predict(key)
	if err := s.predictions.Set(cacheKey, risk); err != nil {
		log.FromContext(r.Context()).Debug("Prediction not cached", "key", cacheKey, "error", err)
	}
	respondJSON(w, PredictResponse{Risk: risk}, http.StatusOK)
}

// parseThreads treats an empty value as 0, which selects the server default.
// Counts above limit are rejected.
func parseThreads(raw string, limit int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", threadsField, raw)
	}
	if n > limit {
		return 0, fmt.Errorf("%w: %s %d > %d", riskmodel.ErrTooManyThreads, threadsField, n, limit)
	}
	return n, nil
}

func trainStatus(err error) int {
	switch {
	case errors.Is(err, riskmodel.ErrTooManyThreads):
		return http.StatusBadRequest
	case errors.Is(err, riskmodel.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, riskmodel.ErrInvalidCSV), errors.Is(err, riskmodel.ErrMissingColumn):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func successFragment(elapsed time.Duration) string {
	minutes := int64(elapsed / time.Minute)
	seconds := int64((elapsed % time.Minute) / time.Second)
	return fmt.Sprintf("<p>File uploaded and model trained successfully in : %d min %d sec</p>", minutes, seconds)
}

func failureFragment(err error) string {
	return "<p>Failed to upload file: " + html.EscapeString(err.Error()) + "</p>"
}

func respondFragment(w http.ResponseWriter, fragment string, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	io.WriteString(w, fragment)
}

func respondJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, ErrorResponse{Error: message}, statusCode)
}
