package worker

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/decody/internal/advice"
	"github.com/thebtf/decody/internal/session"
	"github.com/thebtf/decody/pkg/models"
)

// handleLoad accepts one scan submission for a session and runs it
// through the matching pipeline.
func (s *Service) handleLoad(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeError(w, http.StatusBadRequest, "body must be JSON")
		return
	}

	var input models.SubmittedInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "body not properly formatted")
		return
	}

	if msg := validateInput(input); msg != "" {
		log.Debug().Str("session", requestID).Str("reason", msg).Msg("Submission rejected")
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	matches, err := s.pipeline.Submit(r.Context(), requestID, input)
	if err != nil {
		if errors.Is(err, session.ErrDuplicateSubmission) {
			writeError(w, http.StatusConflict, "duplicate submission")
			return
		}
		log.Error().Err(err).Str("session", requestID).Msg("Submission failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int{"matches": matches})
}

// handleGenerate produces the final report for a session and consumes
// its stored state.
func (s *Service) handleGenerate(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	report, err := s.coordinator.GenerateReport(r.Context(), requestID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "request_id not found")
		case errors.Is(err, advice.ErrGeneration):
			log.Error().Err(err).Str("session", requestID).Msg("Advice generation failed")
			writeError(w, http.StatusBadGateway, "advice generation failed")
		default:
			log.Error().Err(err).Str("session", requestID).Msg("Report generation failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleHealth reports liveness.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).String(),
	})
}

// validateInput checks the submission boundary schema. Returns an
// empty string when the input is valid.
func validateInput(input models.SubmittedInput) string {
	if input.ScannerName == "" {
		return "scanner_name is required"
	}
	if len(input.RuleFiles) == 0 {
		return "rules must name at least one rule file"
	}
	for _, name := range input.RuleFiles {
		if name == "" {
			return "rules must not contain empty names"
		}
	}
	for _, finding := range input.Findings {
		if finding.Short == "" {
			return "results entries require a short description"
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
