package executiontarget

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPExecuteCallsConfiguredEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body httpRequestBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(httpResponseBody{Output: "echo:" + body.Prompt})
	}))
	defer srv.Close()

	h := NewHTTP(nil)
	r, err := h.Execute(context.Background(), map[string]any{"base_url": srv.URL}, "hello", nil, "tc-1")
	require.NoError(t, err)
	assert.Equal(t, "echo:hello", r.Output)
	assert.Equal(t, "tc-1", r.TestCaseID)
}

func TestHTTPExecuteRequiresBaseURL(t *testing.T) {
	h := NewHTTP(nil)
	_, err := h.Execute(context.Background(), map[string]any{}, "p", nil, "tc-1")
	assert.Error(t, err)
}

func TestHTTPExecuteBatchPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body httpRequestBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(httpResponseBody{Output: body.Input["tag"].(string)})
	}))
	defer srv.Close()

	h := NewHTTP(nil)
	cases := []models.TestCase{
		{ID: "a", Input: map[string]any{"tag": "first"}},
		{ID: "b", Input: map[string]any{"tag": "second"}},
		{ID: "c", Input: map[string]any{"tag": "third"}},
	}
	results, err := h.ExecuteBatch(context.Background(), map[string]any{"base_url": srv.URL}, "p", cases)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Output)
	assert.Equal(t, "second", results[1].Output)
	assert.Equal(t, "third", results[2].Output)
}
