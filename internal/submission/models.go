// Package submission owns the submission lifecycle: registration against
// the external endpoint (or its simulated equivalent), the in-memory
// history, reviewer actions, and the analytics rollup.
package submission

import (
	"time"

	"kycgate/internal/document"
	"kycgate/internal/formdata"
	"kycgate/internal/risk"
)

// Status is the lifecycle state of a submitted document.
type Status string

const (
	StatusPending     Status = "pending"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
	StatusNeedsReview Status = "needs_review"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusNeedsReview:
		return true
	}
	return false
}

// ReviewerAction is what a human reviewer decided.
type ReviewerAction string

const (
	ActionApprove ReviewerAction = "approve"
	ActionReject  ReviewerAction = "reject"
)

func (a ReviewerAction) IsValid() bool {
	return a == ActionApprove || a == ActionReject
}

// Record is one submission. Snapshots (form, extracted fields, mismatches,
// factors) are immutable after creation; only the reviewer fields and
// status may change, exactly once, through Service.Review.
type Record struct {
	DocumentID      string               `json:"document_id"`
	DocumentKind    document.Kind        `json:"document_kind"`
	Side            document.Side        `json:"side"`
	Country         string               `json:"country"`
	Status          Status               `json:"status"`
	QualityScore    float64              `json:"quality_score"`
	RiskLevel       risk.Level           `json:"risk_level"`
	RiskScore       int                  `json:"risk_score"`
	RiskFactors     []risk.Factor        `json:"risk_factors,omitempty"`
	FormData        map[string]string    `json:"form_data,omitempty"`
	ExtractedFields map[string]*string   `json:"extracted_fields,omitempty"`
	Mismatches      []formdata.Mismatch  `json:"mismatches,omitempty"`
	Message         string               `json:"message"`
	ReviewerAction  ReviewerAction       `json:"reviewer_action,omitempty"`
	ReviewerNotes   string               `json:"reviewer_notes,omitempty"`
	SubmittedAt     time.Time            `json:"submitted_at"`
	ReviewedAt      *time.Time           `json:"reviewed_at,omitempty"`
}

// clone deep-copies the record so history can never be mutated through an
// aliased map or slice.
func (r Record) clone() Record {
	out := r

	if r.RiskFactors != nil {
		out.RiskFactors = append([]risk.Factor(nil), r.RiskFactors...)
	}
	if r.Mismatches != nil {
		out.Mismatches = append([]formdata.Mismatch(nil), r.Mismatches...)
	}
	if r.FormData != nil {
		out.FormData = make(map[string]string, len(r.FormData))
		for k, v := range r.FormData {
			out.FormData[k] = v
		}
	}
	if r.ExtractedFields != nil {
		out.ExtractedFields = make(map[string]*string, len(r.ExtractedFields))
		for k, v := range r.ExtractedFields {
			if v == nil {
				out.ExtractedFields[k] = nil
				continue
			}
			value := *v
			out.ExtractedFields[k] = &value
		}
	}
	if r.ReviewedAt != nil {
		reviewedAt := *r.ReviewedAt
		out.ReviewedAt = &reviewedAt
	}
	return out
}

// Analytics is the dashboard rollup over all submissions.
type Analytics struct {
	Total           int            `json:"total"`
	Accepted        int            `json:"accepted"`
	Rejected        int            `json:"rejected"`
	PendingReview   int            `json:"pending_review"`
	ByCountry       map[string]int `json:"by_country"`
	ByDocumentKind  map[string]int `json:"by_doc_type"`
	AvgQualityScore float64        `json:"avg_quality_score"`
	AvgRiskScore    float64        `json:"avg_risk_score"`
	HighRiskCount   int            `json:"high_risk_count"`
}
