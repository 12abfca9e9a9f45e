// Package server is the thin HTTP front end: one query endpoint over the
// answer pipeline, a health check, and a landing page.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/npbot/npbot/internal/answer"
)

// QueryRequest is the body accepted by POST /query.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is the success payload.
type QueryResponse struct {
	Answer     string `json:"answer"`
	SourceURL  string `json:"source_url"`
	SchemeCode string `json:"scheme_code,omitempty"`
	Confidence string `json:"confidence"`
}

// ErrorResponse carries a kind discriminator so callers can branch without
// string matching.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// QueryAnswerer is the answer pipeline as the front end sees it.
type QueryAnswerer interface {
	AnswerQuery(ctx context.Context, query string) (*answer.Answer, error)
}

// NewQueryHandler returns the POST /query handler.
func NewQueryHandler(answerer QueryAnswerer, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
			return
		}

		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "body must be JSON with a query field")
			return
		}

		ans, err := answerer.AnswerQuery(r.Context(), req.Query)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, QueryResponse{
				Answer:     ans.Text,
				SourceURL:  ans.SourceURL,
				SchemeCode: ans.SchemeCode,
				Confidence: string(ans.Confidence),
			})
		case errors.Is(err, answer.ErrInvalidQuery):
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		case errors.Is(err, answer.ErrNoData):
			// An unpopulated corpus is a normal outcome, not a server error.
			writeJSON(w, http.StatusOK, ErrorResponse{Kind: "no_data", Message: err.Error()})
		case errors.Is(err, answer.ErrAnswerIntegrity):
			writeError(w, http.StatusBadGateway, "answer_integrity", err.Error())
		default:
			logger.Error("query failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal", "internal error")
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Kind: kind, Message: message})
}
