package teacher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
	"github.com/codeready-toolchain/promptforge/pkg/connectivity"
	"github.com/codeready-toolchain/promptforge/pkg/layers"
	"github.com/codeready-toolchain/promptforge/pkg/retry"
)

// HTTP is a TeacherModel backed by a chat-completion-shaped HTTP endpoint,
// optionally responding over a newline-delimited SSE-style stream when
// GenerateStream is used.
type HTTP struct {
	client      *http.Client
	baseURL     string
	sentinel    *connectivity.Sentinel
	retryPolicy retry.Policy
}

// NewHTTP builds an HTTP teacher model pointed at baseURL. sentinel may be
// nil.
func NewHTTP(baseURL string, sentinel *connectivity.Sentinel) *HTTP {
	return &HTTP{
		client:      &http.Client{Timeout: time.Minute},
		baseURL:     baseURL,
		sentinel:    sentinel,
		retryPolicy: retry.DefaultPolicy(),
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Content string `json:"content"`
}

// Generate implements TeacherModel.
func (h *HTTP) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := retry.Do(ctx, h.retryPolicy, "teacher-model", "teacher_model.generate", func(ctx context.Context) (string, error) {
		return h.post(ctx, prompt)
	})
	if err != nil {
		if h.sentinel != nil {
			h.sentinel.RecordFailure(false, err.Error())
		}
		return "", apperrors.Wrap(apperrors.KindUpstreamExecution, "TEACHER_CALL_FAILED", "teacher model call failed", err)
	}
	if h.sentinel != nil {
		h.sentinel.RecordSuccess()
	}
	return out, nil
}

func (h *HTTP) post(ctx context.Context, prompt string) (string, error) {
	reqBody, _ := json.Marshal(generateRequest{Prompt: prompt})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", apperrors.Internal("TEACHER_BUILD_REQUEST_FAILED", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", apperrors.New(apperrors.KindUpstreamExecution, "TEACHER_TRANSPORT_ERROR", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", apperrors.New(apperrors.KindUpstreamExecution, "TEACHER_UPSTREAM_5XX", "teacher model returned a server error")
	}
	if resp.StatusCode >= 400 {
		return "", apperrors.Validation("TEACHER_UPSTREAM_4XX", "teacher model rejected the request")
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.New(apperrors.KindUpstreamExecution, "TEACHER_DECODE_FAILED", "failed to decode teacher model response")
	}
	return out.Content, nil
}

// GenerateStream streams newline-delimited content chunks from the
// endpoint. The returned channel is finite and non-restartable: once
// closed (or once a chunk carries Err), callers must not expect further
// output and must issue a fresh call to retry.
func (h *HTTP) GenerateStream(ctx context.Context, prompt string) (<-chan layers.StreamChunk, error) {
	reqBody, _ := json.Marshal(generateRequest{Prompt: prompt, Stream: true})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, apperrors.Internal("TEACHER_BUILD_REQUEST_FAILED", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, apperrors.New(apperrors.KindUpstreamExecution, "TEACHER_TRANSPORT_ERROR", err.Error())
	}

	ch := make(chan layers.StreamChunk, 8)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case ch <- layers.StreamChunk{Content: line}:
			case <-ctx.Done():
				ch <- layers.StreamChunk{Err: ctx.Err(), IsComplete: true}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- layers.StreamChunk{Err: err, IsComplete: true}
			return
		}
		ch <- layers.StreamChunk{IsComplete: true}
	}()
	return ch, nil
}
