package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jm-kang/examgen/internal/stats"
)

func testClient(t *testing.T, srv *httptest.Server, maxConcurrent int64, counters *stats.Counters) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:       srv.URL,
		APIKey:        "test-key",
		Model:         "gemini-test",
		Timeout:       5 * time.Second,
		Retry:         RetryPolicy{Wait: 10 * time.Millisecond, MaxAttempts: 2},
		MaxConcurrent: maxConcurrent,
	}, counters)
}

func blockingResponse(parts ...string) string {
	body := `{"candidates": [{"content": {"parts": [`
	for i, p := range parts {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"text": %q}`, p)
	}
	return body + `]}}]}`
}

func TestGenerateOnce_Success(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		fmt.Fprint(w, blockingResponse("문제 1. ", "2 + 3은?"))
	}))
	defer srv.Close()

	c := testClient(t, srv, 3, nil)
	text, err := c.GenerateOnce(context.Background(), "프롬프트")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "문제 1. 2 + 3은?"; text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
	if want := "/v1beta/models/gemini-test:generateContent"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
	if gotKey != "test-key" {
		t.Errorf("key = %q, want test-key", gotKey)
	}
}

func TestGenerateOnce_RetriesTransientExactlyOnce(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	counters := stats.NewCounters()
	c := testClient(t, srv, 3, counters)
	_, err := c.GenerateOnce(context.Background(), "p")

	var unavail *ErrUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if unavail.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", unavail.Status)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("upstream called %d times, want 2", n)
	}
	if n := counters.RetriesTaken.Load(); n != 1 {
		t.Errorf("retries counter = %d, want 1", n)
	}
}

func TestGenerateOnce_RetryThenSuccess(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "try again", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, blockingResponse("성공"))
	}))
	defer srv.Close()

	c := testClient(t, srv, 3, nil)
	text, err := c.GenerateOnce(context.Background(), "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "성공" {
		t.Errorf("text = %q, want 성공", text)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("upstream called %d times, want 2", n)
	}
}

func TestGenerateOnce_RejectedNeverRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad api key", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(t, srv, 3, nil)
	_, err := c.GenerateOnce(context.Background(), "p")

	var rejected *ErrRejected
	if !errors.As(err, &rejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("upstream called %d times, want 1", n)
	}
}

func TestGenerateOnce_EmptyResponseIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": []}`)
	}))
	defer srv.Close()

	c := testClient(t, srv, 3, nil)
	_, err := c.GenerateOnce(context.Background(), "p")
	var transport *ErrTransport
	if !errors.As(err, &transport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestGenerateOnce_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "k",
		Timeout: 50 * time.Millisecond,
		Retry:   RetryPolicy{Wait: time.Millisecond, MaxAttempts: 2},
	}, nil)
	_, err := c.GenerateOnce(context.Background(), "p")
	var timeout *ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestGenerateStream_DeliversLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, line := range []string{
			`[{`,
			`"candidates": [{"content": {"parts": [{"text": "안녕"}]}}]`,
			`}]`,
		} {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := testClient(t, srv, 3, nil)
	lines, err := c.GenerateStream(context.Background(), "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []string
	for line := range lines {
		if line.Err != nil {
			t.Fatalf("unexpected line error: %v", line.Err)
		}
		got = append(got, line.Text)
	}
	want := []string{`[{`, `"candidates": [{"content": {"parts": [{"text": "안녕"}]}}]`, `}]`}
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGenerateStream_OpenRetriesTransient(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, `{"text": "ok"}`)
	}))
	defer srv.Close()

	c := testClient(t, srv, 3, nil)
	lines, err := c.GenerateStream(context.Background(), "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for range lines {
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("upstream called %d times, want 2", n)
	}
}

func TestConcurrencyBound(t *testing.T) {
	var inflight, peak atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inflight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inflight.Add(-1)
		fmt.Fprint(w, blockingResponse("x"))
	}))
	defer srv.Close()

	c := testClient(t, srv, 3, nil)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GenerateOnce(context.Background(), "p"); err != nil {
				t.Errorf("generate: %v", err)
			}
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > 3 {
		t.Errorf("peak in-flight = %d, want at most 3", p)
	}
}

func TestGenerateStream_CancelReleasesSlot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				fmt.Fprintln(w, `{"text": "chunk"}`)
				flusher.Flush()
			}
		}
	}))
	defer srv.Close()

	c := testClient(t, srv, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	lines, err := c.GenerateStream(ctx, "p")
	if err != nil {
		cancel()
		t.Fatalf("unexpected error: %v", err)
	}

	// Drop the stream after the first line, as a disconnecting client would.
	<-lines
	cancel()
	for range lines {
	}

	acquireCtx, acquireCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer acquireCancel()
	if err := c.Gate().Acquire(acquireCtx); err != nil {
		t.Fatalf("gate slot was not released after cancellation: %v", err)
	}
	c.Gate().Release()
}

func TestGenerateStream_AbandonedWithoutDrainingReleasesSlot(t *testing.T) {
	// The upstream fills the line buffer, then holds the connection open
	// until the client disconnects.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 16; i++ {
			fmt.Fprintf(w, "{\"text\": \"조각 %d\"}\n", i)
		}
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := testClient(t, srv, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := c.GenerateStream(ctx, "p"); err != nil {
		cancel()
		t.Fatalf("unexpected error: %v", err)
	}

	// The consumer reads nothing at all, then gives up once the reader has
	// buffered everything and is blocked on the next line.
	time.Sleep(50 * time.Millisecond)
	cancel()

	acquireCtx, acquireCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer acquireCancel()
	if err := c.Gate().Acquire(acquireCtx); err != nil {
		t.Fatalf("gate slot was not released after the stream was abandoned: %v", err)
	}
	c.Gate().Release()
}
