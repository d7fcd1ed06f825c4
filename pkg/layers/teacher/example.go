// Package teacher provides TeacherModel implementations: a deterministic,
// network-free Example model for extension-point demos and tests,
// grounded on the original implementation's
// core/teacher_model/example_impl.rs, plus an HTTP-calling model for real
// upstream teacher services.
package teacher

import (
	"context"
	"time"

	"github.com/codeready-toolchain/promptforge/pkg/layers"
)

// Example is a deterministic TeacherModel that returns a fixed response
// regardless of prompt content, optionally after a configured delay. It
// never echoes the prompt.
type Example struct {
	response string
	delay    time.Duration
}

// NewExample builds an Example teacher model returning response verbatim.
func NewExample(response string) *Example {
	return &Example{response: response}
}

// NewExampleDefault returns the default passing judgement, matching the
// original's "{\"passed\":true,\"score\":1,\"confidence\":1}" response.
func NewExampleDefault() *Example {
	return NewExample(`{"passed":true,"score":1,"confidence":1}`)
}

// WithDelay returns a copy of e that sleeps delay before responding, used
// to exercise timeout and cancellation paths in tests.
func (e Example) WithDelay(delay time.Duration) *Example {
	e.delay = delay
	return &e
}

// Generate implements TeacherModel.
func (e *Example) Generate(ctx context.Context, prompt string) (string, error) {
	if e.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(e.delay):
		}
	}
	return e.response, nil
}

// GenerateStream implements TeacherModel by emitting the full response as
// a single chunk after the configured delay, then closing the channel.
// The channel is non-restartable: each call returns a fresh one.
func (e *Example) GenerateStream(ctx context.Context, prompt string) (<-chan layers.StreamChunk, error) {
	ch := make(chan layers.StreamChunk, 1)
	go func() {
		defer close(ch)
		if e.delay > 0 {
			select {
			case <-ctx.Done():
				ch <- layers.StreamChunk{Err: ctx.Err(), IsComplete: true}
				return
			case <-time.After(e.delay):
			}
		}
		ch <- layers.StreamChunk{Content: e.response, IsComplete: true}
	}()
	return ch, nil
}
