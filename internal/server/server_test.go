package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npbot/npbot/internal/answer"
	"github.com/npbot/npbot/internal/fund"
)

type stubAnswerer struct {
	answer *answer.Answer
	err    error
}

func (a *stubAnswerer) AnswerQuery(ctx context.Context, query string) (*answer.Answer, error) {
	return a.answer, a.err
}

func postQuery(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestQueryHandler_Success(t *testing.T) {
	handler := NewQueryHandler(&stubAnswerer{answer: &answer.Answer{
		Text:       "The NAV is 125.45 as of 15-01-2024. Source: https://mf.nipponindiaim.com/x",
		SourceURL:  "https://mf.nipponindiaim.com/x",
		SchemeCode: "100001",
		Confidence: fund.ConfidenceHigh,
	}}, nil)

	rec := postQuery(t, handler, `{"query": "What is the NAV?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Contains(t, got.Answer, "125.45")
	assert.Equal(t, "https://mf.nipponindiaim.com/x", got.SourceURL)
	assert.Equal(t, "100001", got.SchemeCode)
	assert.Equal(t, "high", got.Confidence)
}

func TestQueryHandler_ErrorKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"blank query", answer.ErrInvalidQuery, http.StatusBadRequest, "invalid_query"},
		{"empty corpus", answer.ErrNoData, http.StatusOK, "no_data"},
		{"unverifiable answer", answer.ErrAnswerIntegrity, http.StatusBadGateway, "answer_integrity"},
		{"unexpected failure", errors.New("index down"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewQueryHandler(&stubAnswerer{err: tt.err}, nil)
			rec := postQuery(t, handler, `{"query": "anything"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestQueryHandler_RejectsMalformedBody(t *testing.T) {
	handler := NewQueryHandler(&stubAnswerer{}, nil)
	rec := postQuery(t, handler, `{"query": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var got ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "invalid_query", got.Kind)
}

func TestQueryHandler_RejectsGet(t *testing.T) {
	handler := NewQueryHandler(&stubAnswerer{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/query", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type stubHealth struct{ err error }

func (h *stubHealth) Health(ctx context.Context) error { return h.err }

func TestHealthHandler(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	t.Run("healthy", func(t *testing.T) {
		handler := NewHealthHandler(&stubHealth{})
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var got HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "healthy", got.Status)
		assert.Equal(t, "connected", got.Index)
		assert.Equal(t, "configured", got.Model)
	})

	t.Run("index down", func(t *testing.T) {
		handler := NewHealthHandler(&stubHealth{err: errors.New("unreachable")})
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var got HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "unhealthy", got.Status)
	})

	t.Run("no index configured", func(t *testing.T) {
		handler := NewHealthHandler(nil)
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var got HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "degraded", got.Status)
	})
}

func TestLandingHandler(t *testing.T) {
	handler := NewLandingHandler()

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "NPbot")

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
