package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/jm-kang/examgen/internal/exam"
	"github.com/jm-kang/examgen/internal/stream"
)

// AgentConfig holds the configuration for the examgen A2A agent.
type AgentConfig struct {
	// Name is the agent name exposed via A2A AgentCard.
	Name string
	// Description is exposed via A2A AgentCard.
	Description string
	// Service drives the actual generation.
	Service *exam.Service
}

// New returns an agent.Agent whose Run logic streams a worksheet
// generation and converts the content frames into session.Events the ADK
// runner understands.
func New(cfg AgentConfig) (agent.Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("a2a agent: Name must not be empty")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("a2a agent: Service must not be nil")
	}

	return agent.New(agent.Config{
		Name:        cfg.Name,
		Description: cfg.Description,
		Run:         runFunc(cfg),
	})
}

// runFunc returns the Run closure that drives one agent invocation.
func runFunc(cfg AgentConfig) func(agent.InvocationContext) iter.Seq2[*session.Event, error] {
	return func(ctx agent.InvocationContext) iter.Seq2[*session.Event, error] {
		return func(yield func(*session.Event, error) bool) {
			req := parseRequest(extractText(ctx.UserContent()))
			if err := req.Validate(); err != nil {
				yield(nil, fmt.Errorf("invalid generation request: %w", err))
				return
			}

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			sink := &yieldSink{ctx: ctx, name: cfg.Name, yield: yield, cancel: cancel}
			if err := cfg.Service.GenerateStream(runCtx, req, sink); err != nil {
				// Upstream failures were already yielded from the error
				// frame; a stopped consumer needs nothing further.
				if !sink.delivered {
					yield(nil, fmt.Errorf("generation failed: %w", err))
				}
				return
			}
			if sink.stopped {
				return
			}

			// Final non-partial event with the complete worksheet so that
			// IsFinalResponse() holds and the runner closes the invocation.
			finalEv := session.NewEvent(ctx.InvocationID())
			finalEv.Author = cfg.Name
			finalEv.Branch = ctx.Branch()
			finalEv.LLMResponse = model.LLMResponse{
				Content: textContent(sink.full.String()),
				Partial: false,
			}
			yield(finalEv, nil)
		}
	}
}

// yieldSink bridges the generation's framed events onto the ADK yield
// function, emitting each content chunk as a partial event.
type yieldSink struct {
	ctx    agent.InvocationContext
	name   string
	yield  func(*session.Event, error) bool
	cancel context.CancelFunc

	full      strings.Builder
	stopped   bool
	delivered bool
}

func (s *yieldSink) Send(ev stream.Event) error {
	switch ev.Type {
	case stream.TypeContent:
		s.full.WriteString(ev.Chunk)
		partial := session.NewEvent(s.ctx.InvocationID())
		partial.Author = s.name
		partial.Branch = s.ctx.Branch()
		partial.LLMResponse = model.LLMResponse{
			Content: textContent(ev.Chunk),
			Partial: true,
		}
		if !s.yield(partial, nil) {
			s.stopped = true
			s.delivered = true
			s.cancel()
			return errors.New("a2a consumer stopped")
		}
	case stream.TypeError:
		s.delivered = true
		s.yield(nil, errors.New(ev.Message))
	}
	return nil
}

// parseRequest reads the caller's message: a JSON GenerationRequest when
// the message is one, otherwise the text is taken as the subject of a
// small default worksheet.
func parseRequest(text string) exam.GenerationRequest {
	var req exam.GenerationRequest
	if err := json.Unmarshal([]byte(text), &req); err == nil && req.Subject != "" {
		return req
	}
	return exam.GenerationRequest{
		Subject:             text,
		Difficulty:          exam.DifficultyMedium,
		MultipleChoiceCount: 3,
		SubjectiveCount:     1,
	}
}

// extractText pulls the plain-text content from the genai.Content that ADK
// puts in the InvocationContext when the caller sends a message.
func extractText(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

// textContent wraps a string into a *genai.Content.
func textContent(text string) *genai.Content {
	return &genai.Content{
		Role:  genai.RoleModel,
		Parts: []*genai.Part{{Text: text}},
	}
}
