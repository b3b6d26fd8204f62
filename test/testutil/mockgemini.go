package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
)

// MockGemini is an httptest.Server that simulates the Gemini
// generateContent and streamGenerateContent endpoints.
type MockGemini struct {
	Server *httptest.Server

	// Text is the generated worksheet the mock returns. The streaming
	// endpoint splits it into word-sized fragments spread over multiple
	// response lines.
	Text string

	// FailStatus, when non-zero, makes requests fail with that status.
	// FailCount limits the failures to the first N requests; zero means
	// every request fails.
	FailStatus int
	FailCount  int

	// LastPrompt captures the prompt text of the most recent request.
	LastPrompt string

	calls atomic.Int64
}

// NewMockGemini creates and starts a mock Gemini server.
func NewMockGemini(text string) *MockGemini {
	m := &MockGemini{Text: text}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// Close shuts down the mock server.
func (m *MockGemini) Close() {
	m.Server.Close()
}

// URL returns the base URL of the mock server.
func (m *MockGemini) URL() string {
	return m.Server.URL
}

// Calls returns the number of requests received so far.
func (m *MockGemini) Calls() int64 {
	return m.calls.Load()
}

func (m *MockGemini) handle(w http.ResponseWriter, r *http.Request) {
	n := m.calls.Add(1)

	if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, "/v1beta/models/") {
		http.NotFound(w, r)
		return
	}

	var body struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if len(body.Contents) > 0 && len(body.Contents[0].Parts) > 0 {
		m.LastPrompt = body.Contents[0].Parts[0].Text
	}

	if m.FailStatus != 0 && (m.FailCount == 0 || n <= int64(m.FailCount)) {
		http.Error(w, "mock upstream failure", m.FailStatus)
		return
	}

	if strings.HasSuffix(r.URL.Path, ":streamGenerateContent") {
		m.writeStreaming(w)
		return
	}
	if strings.HasSuffix(r.URL.Path, ":generateContent") {
		m.writeBlocking(w)
		return
	}
	http.NotFound(w, r)
}

func (m *MockGemini) writeBlocking(w http.ResponseWriter) {
	resp := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": m.Text}},
				},
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (m *MockGemini) writeStreaming(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	flusher, hasFlusher := w.(http.Flusher)

	fragments := splitFragments(m.Text)
	fmt.Fprintln(w, "[")
	for i, frag := range fragments {
		sep := ""
		if i > 0 {
			sep = ","
		}
		fmt.Fprintf(w, "%s{\"candidates\": [{\"content\": {\"parts\": [{\"text\": %s}]}}]}\n",
			sep, strconv.Quote(frag))
		if hasFlusher {
			flusher.Flush()
		}
	}
	fmt.Fprintln(w, "]")
	if hasFlusher {
		flusher.Flush()
	}
}

// splitFragments cuts text after each space or newline so the stream
// carries several small pieces, the way the real API does. Concatenating
// the fragments reproduces the input exactly.
func splitFragments(s string) []string {
	var fragments []string
	start := 0
	for i, c := range s {
		if c == ' ' || c == '\n' {
			fragments = append(fragments, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		fragments = append(fragments, s[start:])
	}
	if len(fragments) == 0 {
		fragments = []string{s}
	}
	return fragments
}
