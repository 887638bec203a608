// Package generator produces rewritten prompts from an external text model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrEmptyResponse is returned when a backend answers with no text.
var ErrEmptyResponse = errors.New("generator: empty response")

// #region interface
// TextGenerator rewrites a prompt given its current quality score and the
// feedback computed for it.
type TextGenerator interface {
	Rewrite(ctx context.Context, prompt string, score float64, feedback string) (string, error)
}
// #endregion interface

// #region template
const rewriteTemplate = `You are a prompt engineering expert. Your task is to improve the following prompt.

Current Prompt:
%s

Current Quality Score: %.2f

Feedback:
%s

Please provide an improved version of the prompt that addresses the feedback. Return ONLY the improved prompt, no explanations or preamble.`

// BuildPrompt renders the rewrite instruction sent to a backend.
func BuildPrompt(prompt string, score float64, feedback string) string {
	return fmt.Sprintf(rewriteTemplate, prompt, score, feedback)
}

// cleanReply trims a backend reply and rejects blank text.
func cleanReply(backend, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", backend, ErrEmptyResponse)
	}
	return text, nil
}
// #endregion template

// #region echo
// Echo returns the prompt unchanged. Sessions using it converge on the first
// rewrite; useful for scoring a prompt without a model.
type Echo struct{}

func (Echo) Rewrite(ctx context.Context, prompt string, _ float64, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return prompt, nil
}
// #endregion echo

// #region static
// Static replays a fixed list of rewrites in order and repeats the last one
// once exhausted. It records every call. Used for offline runs and tests.
type Static struct {
	mu      sync.Mutex
	replies []string
	err     error
	Calls   []Call
}

// Call captures one Rewrite invocation.
type Call struct {
	Prompt   string
	Score    float64
	Feedback string
}

// NewStatic returns a generator that answers with replies in order.
func NewStatic(replies ...string) *Static {
	return &Static{replies: replies}
}

// NewFailing returns a generator whose every call fails with err.
func NewFailing(err error) *Static {
	return &Static{err: err}
}

func (s *Static) Rewrite(ctx context.Context, prompt string, score float64, feedback string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, Call{Prompt: prompt, Score: score, Feedback: feedback})
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", fmt.Errorf("static: %w", ErrEmptyResponse)
	}
	i := min(len(s.Calls)-1, len(s.replies)-1)
	return cleanReply("static", s.replies[i])
}

// CallCount returns how many times Rewrite ran.
func (s *Static) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}
// #endregion static
