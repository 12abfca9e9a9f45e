package answer

import "errors"

var (
	// ErrInvalidQuery rejects empty or whitespace-only queries.
	ErrInvalidQuery = errors.New("query must not be empty")

	// ErrNoData means the corpus has no eligible chunks for the query. This
	// is a normal outcome for an unpopulated deployment, not a failure.
	// When chunks matched but every backing record is ineligible, the
	// returned error wraps this sentinel with a message saying so.
	ErrNoData = errors.New("no data available, run a refresh first")

	// ErrAnswerIntegrity means every candidate, including the deterministic
	// fallback, failed post-generation validation. The caller must receive
	// this explicitly rather than an unverified answer.
	ErrAnswerIntegrity = errors.New("could not produce a verified answer")
)
