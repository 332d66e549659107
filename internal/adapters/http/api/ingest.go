// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vitalislabs/vitalis/internal/domain/model"
)

// labPanelRequest mirrors the request schema for POST /ingest/labs.
type labPanelRequest struct {
	UserID   string           `json:"user_id"`
	UploadID string           `json:"upload_id"`
	Readings []readingPayload `json:"readings"`
}

type readingPayload struct {
	BiomarkerKey string  `json:"biomarker_key"`
	Value        float64 `json:"value"`
	Unit         string  `json:"unit"`
	Flag         string  `json:"flag,omitempty"`
	TestDate     string  `json:"test_date"` // RFC3339 or YYYY-MM-DD
}

func (r labPanelRequest) validate() error {
	switch {
	case strings.TrimSpace(r.UserID) == "":
		return errors.New("missing user_id")
	case strings.TrimSpace(r.UploadID) == "":
		return errors.New("missing upload_id")
	case len(r.Readings) == 0:
		return errors.New("missing readings")
	}
	for i, rd := range r.Readings {
		if strings.TrimSpace(rd.BiomarkerKey) == "" {
			return fmt.Errorf("readings[%d]: missing biomarker_key", i)
		}
		if _, err := parseDate(rd.TestDate); err != nil {
			return fmt.Errorf("readings[%d]: %w", i, err)
		}
	}
	return nil
}

// wearableRequest mirrors the request schema for POST /ingest/wearable.
type wearableRequest struct {
	UserID     string          `json:"user_id"`
	MetricType string          `json:"metric_type"`
	Samples    []samplePayload `json:"samples"`
}

type samplePayload struct {
	Date   string  `json:"date"` // RFC3339 or YYYY-MM-DD
	Value  float64 `json:"value"`
	Source string  `json:"source"`
}

func (r wearableRequest) validate() error {
	switch {
	case strings.TrimSpace(r.UserID) == "":
		return errors.New("missing user_id")
	case strings.TrimSpace(r.MetricType) == "":
		return errors.New("missing metric_type")
	case len(r.Samples) == 0:
		return errors.New("missing samples")
	}
	for i, sp := range r.Samples {
		if strings.TrimSpace(sp.Source) == "" {
			return fmt.Errorf("samples[%d]: missing source", i)
		}
		if _, err := parseDate(sp.Date); err != nil {
			return fmt.Errorf("samples[%d]: %w", i, err)
		}
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q; must be RFC3339 or YYYY-MM-DD", s)
}

// IngestHandler handles intake requests.
type IngestHandler struct {
	deps Dependencies
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(deps Dependencies) *IngestHandler {
	return &IngestHandler{deps: deps}
}

// HandlePostLabs handles POST /ingest/labs requests.
func (h *IngestHandler) HandlePostLabs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req labPanelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	readings := make([]model.BiomarkerReading, 0, len(req.Readings))
	for _, rd := range req.Readings {
		date, _ := parseDate(rd.TestDate)
		readings = append(readings, model.BiomarkerReading{
			BiomarkerKey: rd.BiomarkerKey,
			Value:        rd.Value,
			Unit:         rd.Unit,
			Flag:         rd.Flag,
			TestDate:     date,
			UploadID:     req.UploadID,
		})
	}

	if err := h.deps.IngestLabPanel(r.Context(), req.UserID, req.UploadID, readings); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

// HandlePostWearable handles POST /ingest/wearable requests.
func (h *IngestHandler) HandlePostWearable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req wearableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	samples := make([]model.WearableSample, 0, len(req.Samples))
	for _, sp := range req.Samples {
		date, _ := parseDate(sp.Date)
		samples = append(samples, model.WearableSample{
			Date:   date,
			Value:  sp.Value,
			Source: sp.Source,
		})
	}

	if err := h.deps.IngestWearable(r.Context(), req.UserID, req.MetricType, samples); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
