// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default cap on synchronous re-evaluations per user.
const defaultRefreshPerMinute = 6

// evaluateRequest mirrors the request schema for POST /evaluate.
type evaluateRequest struct {
	UserID string `json:"user_id"`
}

// EvaluateHandler handles synchronous evaluation requests, rate limited
// per user.
type EvaluateHandler struct {
	deps     Dependencies
	perUser  rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewEvaluateHandler creates an evaluate handler capping each user at
// perMinute synchronous runs.
func NewEvaluateHandler(deps Dependencies, perMinute int) *EvaluateHandler {
	if perMinute < 1 {
		perMinute = defaultRefreshPerMinute
	}
	return &EvaluateHandler{
		deps:     deps,
		perUser:  rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    2,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (h *EvaluateHandler) limiter(userID string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[userID]
	if !ok {
		l = rate.NewLimiter(h.perUser, h.burst)
		h.limiters[userID] = l
	}
	return l
}

// HandlePostEvaluate handles POST /evaluate requests.
func (h *EvaluateHandler) HandlePostEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing user_id"))
		return
	}

	if !h.limiter(req.UserID).Allow() {
		writeError(w, http.StatusTooManyRequests, "rate_limited", ErrRateLimited)
		return
	}

	out, err := h.deps.Refresh(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
