package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jm-kang/examgen/internal/apierr"
	"github.com/jm-kang/examgen/internal/exam"
	"github.com/jm-kang/examgen/internal/gemini"
	"github.com/jm-kang/examgen/internal/stats"
	"github.com/jm-kang/examgen/internal/stream"
)

type handler struct {
	svc      *exam.Service
	counters *stats.Counters
	timeout  time.Duration
}

func newHandler(svc *exam.Service, counters *stats.Counters, timeout time.Duration) *handler {
	return &handler{svc: svc, counters: counters, timeout: timeout}
}

// generateResult is the single-shot success payload.
type generateResult struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
}

// generate serves the single-shot path: one JSON payload with the fully
// cleaned text, or a structured failure payload.
func (h *handler) generate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	text, err := h.svc.GenerateOnce(ctx, req)
	if err != nil {
		apierr.WriteFailure(w, upstreamStatus(err), exam.UserMessage(err))
		return
	}
	apierr.WriteJSON(w, http.StatusOK, generateResult{Success: true, Text: text})
}

// generateStream serves the streaming path as server-sent events. All
// failures after the stream opens arrive as error frames, not HTTP status
// codes; client disconnects cancel the request context and stop emission.
func (h *handler) generateStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	sink := stream.NewSSESink(w)
	_ = h.svc.GenerateStream(r.Context(), req, sink)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	apierr.WriteJSON(w, http.StatusOK, h.counters.Snapshot())
}

// decodeRequest parses and validates the request body, writing the 400
// response itself. Caller-input errors never reach the upstream.
func decodeRequest(w http.ResponseWriter, r *http.Request) (exam.GenerationRequest, bool) {
	var req exam.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteFailure(w, http.StatusBadRequest, "malformed request body")
		return req, false
	}
	if err := req.Validate(); err != nil {
		apierr.WriteFailure(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

// upstreamStatus maps the client failure taxonomy to a response status.
func upstreamStatus(err error) int {
	var (
		timeout     *gemini.ErrTimeout
		unavailable *gemini.ErrUnavailable
	)
	switch {
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}
