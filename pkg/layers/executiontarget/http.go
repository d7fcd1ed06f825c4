package executiontarget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
	"github.com/codeready-toolchain/promptforge/pkg/connectivity"
	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/codeready-toolchain/promptforge/pkg/retry"
)

// HTTP is a generic ExecutionTarget that POSTs {prompt, input} to a
// configured endpoint and reads back {output, token_usage}. It covers both
// the "Dify" and "Generic" execution target types named in task config —
// the two use the same request/response shape here; only the per-call
// config's base_url is read.
type HTTP struct {
	client      *http.Client
	sentinel    *connectivity.Sentinel
	retryPolicy retry.Policy
	// ParallelLimit bounds concurrent in-flight requests for ExecuteBatch.
	ParallelLimit int
}

// NewHTTP builds an HTTP execution target. sentinel may be nil, in which
// case no passive connectivity signal is recorded.
func NewHTTP(sentinel *connectivity.Sentinel) *HTTP {
	return &HTTP{
		client:        &http.Client{Timeout: 30 * time.Second},
		sentinel:      sentinel,
		retryPolicy:   retry.DefaultPolicy(),
		ParallelLimit: 4,
	}
}

type httpRequestBody struct {
	Prompt string         `json:"prompt"`
	Input  map[string]any `json:"input"`
}

type httpResponseBody struct {
	Output     string             `json:"output"`
	TokenUsage *models.TokenUsage `json:"token_usage,omitempty"`
}

func (h *HTTP) endpointFrom(config map[string]any) (string, error) {
	url, _ := config["base_url"].(string)
	if url == "" {
		return "", apperrors.Validation("EXEC_MISSING_BASE_URL", "execution target config missing base_url")
	}
	return url, nil
}

// Execute implements ExecutionTarget by calling the configured endpoint,
// retrying transient failures per h.retryPolicy.
func (h *HTTP) Execute(ctx context.Context, config map[string]any, prompt string, input map[string]any, testCaseID string) (models.ExecutionResult, error) {
	url, err := h.endpointFrom(config)
	if err != nil {
		return models.ExecutionResult{}, err
	}

	start := time.Now()
	body, err := retry.Do(ctx, h.retryPolicy, testCaseID, "execution_target.execute", func(ctx context.Context) (httpResponseBody, error) {
		return h.call(ctx, url, prompt, input)
	})
	latency := time.Since(start).Milliseconds()

	if err != nil {
		if h.sentinel != nil {
			h.sentinel.RecordFailure(false, err.Error())
		}
		return models.ExecutionResult{}, apperrors.Wrap(apperrors.KindUpstreamExecution, "EXEC_CALL_FAILED", "execution target call failed", err)
	}
	if h.sentinel != nil {
		h.sentinel.RecordSuccess()
	}

	return models.ExecutionResult{
		TestCaseID: testCaseID,
		Output:     body.Output,
		LatencyMs:  latency,
		TokenUsage: body.TokenUsage,
	}, nil
}

func (h *HTTP) call(ctx context.Context, url, prompt string, input map[string]any) (httpResponseBody, error) {
	reqBody, err := json.Marshal(httpRequestBody{Prompt: prompt, Input: input})
	if err != nil {
		return httpResponseBody{}, apperrors.Internal("EXEC_ENCODE_FAILED", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return httpResponseBody{}, apperrors.Internal("EXEC_BUILD_REQUEST_FAILED", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return httpResponseBody{}, apperrors.New(apperrors.KindUpstreamExecution, "EXEC_TRANSPORT_ERROR", err.Error())
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		return httpResponseBody{}, apperrors.New(apperrors.KindUpstreamExecution, "EXEC_UPSTREAM_5XX", fmt.Sprintf("execution target returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return httpResponseBody{}, apperrors.Validation("EXEC_UPSTREAM_4XX", fmt.Sprintf("execution target returned %d", resp.StatusCode))
	}

	var out httpResponseBody
	if err := json.Unmarshal(raw, &out); err != nil {
		return httpResponseBody{}, apperrors.New(apperrors.KindUpstreamExecution, "EXEC_DECODE_FAILED", "failed to decode execution target response")
	}
	return out, nil
}

// ExecuteBatch fans out Execute over cases bounded by ParallelLimit,
// preserving result order and 1-to-1 alignment with cases.
func (h *HTTP) ExecuteBatch(ctx context.Context, config map[string]any, prompt string, cases []models.TestCase) ([]models.ExecutionResult, error) {
	results := make([]models.ExecutionResult, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	limit := h.ParallelLimit
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, tc := range cases {
		i, tc := i, tc
		g.Go(func() error {
			r, err := h.Execute(gctx, config, prompt, tc.Input, tc.ID)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
