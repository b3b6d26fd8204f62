package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jm-kang/examgen/internal/stats"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"
	defaultTimeout = 28 * time.Second
)

// GenerationParams are the sampling parameters sent with every request.
type GenerationParams struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// DefaultParams returns the sampling parameters used when none are
// configured.
func DefaultParams() GenerationParams {
	return GenerationParams{
		Temperature:     0.7,
		TopP:            0.9,
		TopK:            40,
		MaxOutputTokens: 4096,
	}
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API host, e.g. "https://generativelanguage.googleapis.com".
	BaseURL string
	// APIKey authenticates every request. Required.
	APIKey string
	// Model is the model path segment, e.g. "gemini-2.0-flash".
	Model string
	// Timeout bounds one single-shot round trip and the opening of a
	// streaming connection.
	Timeout time.Duration
	// Retry controls the single-retry behavior for transient failures.
	Retry RetryPolicy
	// MaxConcurrent caps in-flight upstream calls across all sessions.
	MaxConcurrent int64
	Params        GenerationParams
}

// Line is one raw line of the streaming response. Err is set instead of
// Text when the stream broke; a Line with Err terminates the stream.
type Line struct {
	Text string
	Err  error
}

// Client calls the Gemini REST API. One Client is shared by every
// generation session; it owns the concurrency gate and the retry policy.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	params  GenerationParams
	retry   RetryPolicy
	gate    *Gate

	httpClient *http.Client
	// streamTransport is shared with httpClient but used without a client
	// timeout: stream lifetime is bounded by the request context instead.
	streamTransport http.RoundTripper

	counters *stats.Counters
}

// NewClient constructs a Client. counters may be nil.
func NewClient(cfg Config, counters *stats.Counters) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.Params == (GenerationParams{}) {
		cfg.Params = DefaultParams()
	}

	transport := http.DefaultTransport

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		params:  cfg.Params,
		retry:   cfg.Retry,
		gate:    NewGate(cfg.MaxConcurrent),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		streamTransport: transport,
		counters:        counters,
	}
}

// Gate exposes the concurrency gate, mainly for tests.
func (c *Client) Gate() *Gate { return c.gate }

// request/response wire types. Only the fields this service reads are
// declared; the streaming path never decodes these at all.

type generateRequest struct {
	Contents         []wireContent    `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type wireContent struct {
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content wireContent `json:"content"`
	} `json:"candidates"`
}

func (c *Client) endpoint(method string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:%s?key=%s", c.baseURL, c.model, method, c.apiKey)
}

func (c *Client) body(prompt string) ([]byte, error) {
	return json.Marshal(generateRequest{
		Contents: []wireContent{{Parts: []wirePart{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.params.Temperature,
			TopP:            c.params.TopP,
			TopK:            c.params.TopK,
			MaxOutputTokens: c.params.MaxOutputTokens,
		},
	})
}

// GenerateOnce performs one blocking generation call and returns the full
// generated text. Transient upstream failures are retried once after a
// fixed wait; every other failure is terminal immediately.
func (c *Client) GenerateOnce(ctx context.Context, prompt string) (string, error) {
	if err := c.gate.Acquire(ctx); err != nil {
		return "", err
	}
	defer c.gate.Release()

	body, err := c.body(prompt)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		text, err := c.doOnce(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err

		wait, retry := c.retry.ShouldRetry(attempt, err)
		if !retry {
			break
		}
		c.count(func(s *stats.Counters) { s.RetriesTaken.Add(1) })
		slog.Warn("gemini transient failure, retrying",
			"attempt", attempt+1, "wait", wait.String(), "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	c.recordFailure(lastErr)
	return "", lastErr
}

func (c *Client) doOnce(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("generateContent"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return "", err
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ErrTransport{Err: fmt.Errorf("decode response: %w", err)}
	}

	var text strings.Builder
	for _, cand := range result.Candidates {
		for _, part := range cand.Content.Parts {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return "", &ErrTransport{Err: errors.New("response carried no text")}
	}
	return text.String(), nil
}

// GenerateStream opens a streaming generation call and returns its raw
// lines as they arrive. The returned channel is closed after the upstream
// closes the connection; a Line with Err set is the last value when the
// stream could not complete. The gate slot is held until the stream ends.
func (c *Client) GenerateStream(ctx context.Context, prompt string) (<-chan Line, error) {
	if err := c.gate.Acquire(ctx); err != nil {
		return nil, err
	}

	body, err := c.body(prompt)
	if err != nil {
		c.gate.Release()
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.openStream(ctx, body)
	if err != nil {
		c.gate.Release()
		c.recordFailure(err)
		return nil, err
	}

	ch := make(chan Line, 16)
	go func() {
		defer close(ch)
		defer c.gate.Release()
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 4096), 512*1024)
		for scanner.Scan() {
			select {
			case ch <- Line{Text: scanner.Text()}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			// A cancelled consumer may have stopped draining; a blocking
			// send here would strand the goroutine with the gate slot held.
			if cancelErr := ctx.Err(); cancelErr != nil {
				select {
				case ch <- Line{Err: cancelErr}:
				default:
				}
				return
			}
			c.recordFailure(&ErrTransport{Err: err})
			select {
			case ch <- Line{Err: &ErrTransport{Err: fmt.Errorf("stream interrupted: %w", err)}}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

// openStream dials the streaming endpoint, retrying once on the transient
// class like the blocking path.
func (c *Client) openStream(ctx context.Context, body []byte) (*http.Response, error) {
	// The connection outlives any sane client timeout; the caller's context
	// bounds it instead.
	streamClient := &http.Client{Transport: c.streamTransport}

	var lastErr error
	for attempt := 0; ; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("streamGenerateContent"), bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := streamClient.Do(httpReq)
		if err != nil {
			return nil, classifyTransport(ctx, err)
		}
		if err := classifyStatus(resp); err != nil {
			resp.Body.Close()
			lastErr = err
			wait, retry := c.retry.ShouldRetry(attempt, err)
			if !retry {
				return nil, lastErr
			}
			c.count(func(s *stats.Counters) { s.RetriesTaken.Add(1) })
			slog.Warn("gemini stream open failed, retrying",
				"attempt", attempt+1, "wait", wait.String(), "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		return resp, nil
	}
}

// classifyStatus maps a non-2xx response to the failure taxonomy. The body
// is drained so the connection can be reused.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &ErrUnavailable{Status: resp.StatusCode, Err: errors.New(msg)}
	}
	return &ErrRejected{Status: resp.StatusCode, Body: msg}
}

// classifyTransport maps a round-trip error. Context cancellation is
// passed through so callers can tell a cancelled session from a failure.
func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ErrTimeout{Err: err}
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ErrTimeout{Err: err}
	}
	return &ErrTransport{Err: err}
}

func (c *Client) count(fn func(*stats.Counters)) {
	if c.counters != nil {
		fn(c.counters)
	}
}

func (c *Client) recordFailure(err error) {
	if c.counters == nil || err == nil {
		return
	}
	if class := FailureClass(err); class != "" {
		c.counters.Failure(class)
	}
}

// FailureClass names the taxonomy class of an upstream error, or "" when
// err is not an upstream failure (e.g. a cancelled context).
func FailureClass(err error) string {
	var (
		timeout     *ErrTimeout
		unavailable *ErrUnavailable
		rejected    *ErrRejected
		transport   *ErrTransport
	)
	switch {
	case errors.As(err, &timeout):
		return "timeout"
	case errors.As(err, &unavailable):
		return "unavailable"
	case errors.As(err, &rejected):
		return "rejected"
	case errors.As(err, &transport):
		return "transport"
	}
	return ""
}
