package scrape

import "fmt"

// FetchError wraps a network or parse failure while fetching an official
// page. Fetch errors are retryable; callers distinguish them from genuine
// data mismatches.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
