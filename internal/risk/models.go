// Package risk scores a document submission for fraud and compliance risk.
// A deterministic rule engine always produces a baseline; an optional AI
// second opinion can only raise the score, never lower it.
package risk

// Level buckets a risk score.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

func (l Level) IsValid() bool {
	return l == LevelLow || l == LevelMedium || l == LevelHigh
}

// Recommendation is the suggested handling for a submission.
type Recommendation string

const (
	RecommendAutoApprove  Recommendation = "auto-approve"
	RecommendManualReview Recommendation = "manual-review"
	RecommendReject       Recommendation = "reject"
)

// Factor is one contributing risk signal.
type Factor struct {
	Kind     string `json:"factor"`
	Field    string `json:"field,omitempty"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// Assessment is a complete risk verdict.
type Assessment struct {
	Level          Level          `json:"risk_level"`
	Score          int            `json:"risk_score"`
	Factors        []Factor       `json:"risk_factors"`
	Recommendation Recommendation `json:"recommendation"`
	Reasoning      string         `json:"reasoning"`
	AIGenerated    bool           `json:"ai_generated"`
}

// Thresholds define the score bands. They are configuration rather than
// fixed law so compliance can retune them without a code change.
type Thresholds struct {
	Medium int // scores at or above are MEDIUM
	High   int // scores at or above are HIGH
	Reject int // scores at or above are rejected outright
}

// DefaultThresholds are the bands used in production.
var DefaultThresholds = Thresholds{Medium: 30, High: 60, Reject: 80}

// band maps a clamped score to its level and recommendation. The
// recommendation is a pure function of the band.
func (t Thresholds) band(score int) (Level, Recommendation) {
	switch {
	case score >= t.Reject:
		return LevelHigh, RecommendReject
	case score >= t.High:
		return LevelHigh, RecommendManualReview
	case score >= t.Medium:
		return LevelMedium, RecommendManualReview
	default:
		return LevelLow, RecommendAutoApprove
	}
}
