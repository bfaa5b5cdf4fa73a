// Package vision extracts structured document data from images through an
// external vision-capable inference endpoint. It owns model fallback,
// retry/backoff, and tolerant parsing of the endpoint's free-text replies.
package vision

import "kycgate/internal/document"

// Quality is the endpoint's overall judgement of image quality.
type Quality string

const (
	QualityExcellent  Quality = "excellent"
	QualityGood       Quality = "good"
	QualityAcceptable Quality = "acceptable"
	QualityPoor       Quality = "poor"
	QualityUnreadable Quality = "unreadable"
)

func (q Quality) IsValid() bool {
	switch q {
	case QualityExcellent, QualityGood, QualityAcceptable, QualityPoor, QualityUnreadable:
		return true
	}
	return false
}

// FailureReason is a machine-readable explanation for an unsuccessful
// extraction.
type FailureReason string

const (
	FailureNone                 FailureReason = ""
	FailureNoProviderConfigured FailureReason = "NO_PROVIDER_CONFIGURED"
	FailureRateLimited          FailureReason = "RATE_LIMITED"
	FailureAllModelsFailed      FailureReason = "ALL_MODELS_FAILED"
)

// RawIssue is an issue as reported by the inference endpoint, before the
// issue engine re-derives its own canonical set.
type RawIssue struct {
	Type       string `json:"type"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ExtractionResult is the validated outcome of one extraction. It is always
// returned, even when every model candidate failed.
type ExtractionResult struct {
	Success             bool
	DetectedKind        string
	Side                document.Side
	Confidence          float64
	Quality             Quality
	QualityScore        float64
	IsBlurry            bool
	IsTooDark           bool
	IsTooBright         bool
	HasGlare            bool
	AllCornersVisible   bool
	IsRotated           bool
	TextReadable        bool
	HasPhoto            bool
	HasRequiredElements bool

	// Fields maps extracted field names to values. A nil value means the
	// endpoint saw the field but could not read it.
	Fields map[string]*string

	RawIssues     []RawIssue
	Suggestions   []string
	FailureReason FailureReason
	ModelUsed     string
}
