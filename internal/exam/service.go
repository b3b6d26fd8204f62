package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jm-kang/examgen/internal/gemini"
	"github.com/jm-kang/examgen/internal/stats"
	"github.com/jm-kang/examgen/internal/stream"
	"github.com/jm-kang/examgen/internal/textproc"
)

// Upstream is the generation endpoint the orchestrator drives. Satisfied
// by *gemini.Client; tests substitute stubs.
type Upstream interface {
	GenerateOnce(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string) (<-chan gemini.Line, error)
}

// Service orchestrates one generation per call: prompt construction,
// the upstream call, fragment extraction, normalization, chunking, and
// paced emission. Safe for concurrent use; sessions share nothing but the
// upstream's concurrency gate.
type Service struct {
	upstream Upstream
	pace     time.Duration
	counters *stats.Counters
}

// NewService builds a Service. pace <= 0 selects the default pacing
// interval; counters may be nil.
func NewService(upstream Upstream, pace time.Duration, counters *stats.Counters) *Service {
	if pace <= 0 {
		pace = stream.DefaultPace
	}
	return &Service{upstream: upstream, pace: pace, counters: counters}
}

// GenerateOnce runs the single-shot path and returns the cleaned
// worksheet text.
func (s *Service) GenerateOnce(ctx context.Context, req GenerationRequest) (string, error) {
	s.add(func(c *stats.Counters) { c.GenerationsStarted.Add(1) })
	sess := NewSession()

	prompt := BuildPrompt(req)
	_ = sess.To(StateCalling)
	_ = sess.To(StateAwaitingSingleShot)

	text, err := s.upstream.GenerateOnce(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			_ = sess.To(StateCancelled)
			s.add(func(c *stats.Counters) { c.Cancelled.Add(1) })
			return "", err
		}
		_ = sess.To(StateFailed)
		s.add(func(c *stats.Counters) { c.Failed.Add(1) })
		slog.Error("single-shot generation failed", "subject", req.Subject, "error", err)
		return "", err
	}

	cleaned := textproc.Normalize(text)
	_ = sess.To(StateCompleted)
	s.add(func(c *stats.Counters) { c.Completed.Add(1) })
	return cleaned, nil
}

// GenerateStream runs the streaming path, emitting framed events to sink.
// The caller must cancel ctx when it abandons the stream; client
// disconnects surface here as a cancelled context, which stops emission
// without a terminal frame. Partial output already sent is never
// retracted: a mid-stream upstream failure ends the stream with an error
// frame after whatever content made it out.
func (s *Service) GenerateStream(ctx context.Context, req GenerationRequest, sink stream.Sink) error {
	s.add(func(c *stats.Counters) { c.GenerationsStarted.Add(1) })
	sess := NewSession()
	em := stream.NewEmitter(sink, s.pace)

	prompt := BuildPrompt(req)
	_ = sess.To(StateCalling)

	lines, err := s.upstream.GenerateStream(ctx, prompt)
	if err != nil {
		if s.cancelled(sess, err) {
			return err
		}
		return s.fail(sess, em, err)
	}
	_ = sess.To(StateStreaming)

	if err := em.Start(); err != nil {
		s.cancel(sess)
		return err
	}

	for line := range lines {
		if line.Err != nil {
			if s.cancelled(sess, line.Err) {
				return line.Err
			}
			return s.fail(sess, em, line.Err)
		}
		for _, frag := range textproc.ExtractFragments(line.Text) {
			cleaned := textproc.CleanFragment(frag)
			for _, unit := range textproc.Chunk(cleaned) {
				if !textproc.Emittable(unit) {
					continue
				}
				if err := em.Content(ctx, unit); err != nil {
					s.cancel(sess)
					return err
				}
				s.add(func(c *stats.Counters) { c.ChunksEmitted.Add(1) })
			}
		}
	}

	// A cancelled session may see its line channel close cleanly without a
	// terminal Line; it still must not get a done frame.
	if err := ctx.Err(); err != nil {
		s.cancel(sess)
		return err
	}
	if err := em.Done(); err != nil {
		s.cancel(sess)
		return err
	}
	_ = sess.To(StateCompleted)
	s.add(func(c *stats.Counters) { c.Completed.Add(1) })
	slog.Info("generation completed", "subject", req.Subject, "chunks", em.Emitted())
	return nil
}

// fail marks the session failed and converts err into the terminal error
// frame. Nothing is thrown across the session boundary.
func (s *Service) fail(sess *Session, em *stream.Emitter, err error) error {
	_ = sess.To(StateFailed)
	s.add(func(c *stats.Counters) { c.Failed.Add(1) })
	slog.Error("streaming generation failed", "error", err, "emitted", em.Emitted())
	if sendErr := em.Error(UserMessage(err)); sendErr != nil {
		slog.Warn("could not deliver error frame", "error", sendErr)
	}
	return err
}

func (s *Service) cancel(sess *Session) {
	_ = sess.To(StateCancelled)
	s.add(func(c *stats.Counters) { c.Cancelled.Add(1) })
}

// cancelled handles the session-cancelled case: counts it and confirms no
// frame should follow.
func (s *Service) cancelled(sess *Session, err error) bool {
	if !errors.Is(err, context.Canceled) {
		return false
	}
	s.cancel(sess)
	return true
}

// UserMessage renders an upstream failure as the message the client sees.
func UserMessage(err error) string {
	var (
		timeout     *gemini.ErrTimeout
		unavailable *gemini.ErrUnavailable
		rejected    *gemini.ErrRejected
	)
	switch {
	case errors.As(err, &timeout):
		return "문제 생성 시간이 초과되었습니다. 잠시 후 다시 시도해 주세요."
	case errors.As(err, &unavailable):
		return "문제 생성 서비스가 일시적으로 혼잡합니다. 잠시 후 다시 시도해 주세요."
	case errors.As(err, &rejected):
		return "문제 생성 요청이 거부되었습니다."
	}
	return fmt.Sprintf("문제 생성 중 오류가 발생했습니다: %v", err)
}

func (s *Service) add(fn func(*stats.Counters)) {
	if s.counters != nil {
		fn(s.counters)
	}
}
