package fund

// ValidationStatus is the result of cross-checking a stored record against the
// freshly fetched official page.
type ValidationStatus string

const (
	// StatusPending means the record has not been validated yet.
	StatusPending ValidationStatus = "pending"
	// StatusValid means name, NAV, and category all matched the live page.
	StatusValid ValidationStatus = "valid"
	// StatusPartial means name and category matched but NAV was outside
	// tolerance. The data is likely stale rather than wrong.
	StatusPartial ValidationStatus = "partial"
	// StatusInvalid means the name or category check failed.
	StatusInvalid ValidationStatus = "invalid"
	// StatusError means the validation fetch itself failed, which is
	// distinguished from a genuine mismatch.
	StatusError ValidationStatus = "error"
)

// Eligible reports whether a record with this status may back an answer.
// Invalid and error records are excluded from the answer pipeline.
func (s ValidationStatus) Eligible() bool {
	return s != StatusInvalid && s != StatusError
}

// RiskLevel is the scheme's published risk classification.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Confidence is the coarse trustworthiness indicator attached to an answer,
// derived from retrieval score and the backing record's validation status.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)
