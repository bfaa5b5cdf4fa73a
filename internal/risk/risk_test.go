package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycgate/internal/document"
	"kycgate/internal/formdata"
)

func str(s string) *string { return &s }

func fixedNow() time.Time {
	return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
}

func newRuleService(t *testing.T) *Service {
	t.Helper()
	return NewService(nil, WithClock(fixedNow))
}

func cleanInput() Input {
	return Input{
		Extracted: map[string]*string{
			"cnic_number":   str("12345-1234567-1"),
			"name_english":  str("Ali Khan"),
			"name":          str("Ali Khan"),
			"date_of_birth": str("1990-05-01"),
		},
		Form: map[string]string{
			"full_name":     "Ali Khan",
			"cnic":          "12345-1234567-1",
			"date_of_birth": "1990-05-01",
		},
		QualityScore: 85,
		Country:      "PK",
		Kind:         document.KindCNIC,
	}
}

func TestAssessCleanSubmissionIsLowRisk(t *testing.T) {
	got := newRuleService(t).Assess(context.Background(), cleanInput())

	assert.Equal(t, LevelLow, got.Level)
	assert.Equal(t, RecommendAutoApprove, got.Recommendation)
	assert.Zero(t, got.Score)
	assert.Empty(t, got.Factors)
	assert.False(t, got.AIGenerated)
}

func TestAssessMismatchPenalty(t *testing.T) {
	in := cleanInput()
	in.Mismatches = []formdata.Mismatch{{
		Field:         "date_of_birth",
		FormValue:     "1985-01-12",
		DocumentValue: "1985-12-01",
	}}

	got := newRuleService(t).Assess(context.Background(), in)

	assert.GreaterOrEqual(t, got.Score, 20)
	require.NotEmpty(t, got.Factors)
	assert.Equal(t, "data_mismatch", got.Factors[0].Kind)
	assert.Equal(t, "high", got.Factors[0].Severity)
}

func TestAssessMismatchPenaltyIsCapped(t *testing.T) {
	in := cleanInput()
	for i := 0; i < 5; i++ {
		in.Mismatches = append(in.Mismatches, formdata.Mismatch{Field: "full_name"})
	}

	got := newRuleService(t).Assess(context.Background(), in)

	assert.Equal(t, 50, got.Score, "five mismatches cap at 50, not 100")
}

func TestAssessQualityAnomalies(t *testing.T) {
	t.Run("suspiciously perfect", func(t *testing.T) {
		in := cleanInput()
		in.QualityScore = 99
		got := newRuleService(t).Assess(context.Background(), in)
		assert.Equal(t, 10, got.Score)
		assert.Equal(t, "quality_anomaly", got.Factors[0].Kind)
	})

	t.Run("very low quality", func(t *testing.T) {
		in := cleanInput()
		in.QualityScore = 20
		got := newRuleService(t).Assess(context.Background(), in)
		assert.Equal(t, 15, got.Score)
		assert.Equal(t, "low_quality", got.Factors[0].Kind)
	})
}

func TestAssessMissingCriticalFields(t *testing.T) {
	in := cleanInput()
	in.Extracted = map[string]*string{
		"cnic_number": str("12345-1234567-1"),
		"name":        nil, // explicit null counts as missing
	}
	in.Form = map[string]string{}

	got := newRuleService(t).Assess(context.Background(), in)

	// name_english and name are both missing: 2 * 8.
	assert.Equal(t, 16, got.Score)
	require.Len(t, got.Factors, 1)
	assert.Equal(t, "missing_fields", got.Factors[0].Kind)
	assert.Contains(t, got.Factors[0].Detail, "name_english")
}

func TestAssessExpiredDocument(t *testing.T) {
	in := cleanInput()
	in.Extracted["expiry_date"] = str("2024-03-01")

	got := newRuleService(t).Assess(context.Background(), in)

	assert.Equal(t, 30, got.Score)
	assert.Equal(t, "expired_document", got.Factors[0].Kind)
	assert.Equal(t, LevelMedium, got.Level)
	assert.Equal(t, RecommendManualReview, got.Recommendation)
}

func TestAssessFutureExpiryIsClean(t *testing.T) {
	in := cleanInput()
	in.Extracted["expiry_date"] = str("2031-03-01")
	got := newRuleService(t).Assess(context.Background(), in)
	assert.Zero(t, got.Score)
}

func TestAssessNameConsistency(t *testing.T) {
	t.Run("unrelated names", func(t *testing.T) {
		in := cleanInput()
		in.Extracted["name"] = str("Xu Ming")
		in.Extracted["name_english"] = str("Xu Ming")
		got := newRuleService(t).Assess(context.Background(), in)
		found := false
		for _, f := range got.Factors {
			if f.Kind == "name_inconsistency" {
				found = true
			}
		}
		assert.True(t, found)
		assert.GreaterOrEqual(t, got.Score, 25)
	})

	t.Run("transliteration variation", func(t *testing.T) {
		in := cleanInput()
		in.Form["full_name"] = "Aly Can"
		got := newRuleService(t).Assess(context.Background(), in)
		found := false
		for _, f := range got.Factors {
			if f.Kind == "name_variation" {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestBandMapping(t *testing.T) {
	tests := []struct {
		score int
		level Level
		rec   Recommendation
	}{
		{0, LevelLow, RecommendAutoApprove},
		{29, LevelLow, RecommendAutoApprove},
		{30, LevelMedium, RecommendManualReview},
		{59, LevelMedium, RecommendManualReview},
		{60, LevelHigh, RecommendManualReview},
		{79, LevelHigh, RecommendManualReview},
		{80, LevelHigh, RecommendReject},
		{100, LevelHigh, RecommendReject},
	}
	for _, tt := range tests {
		level, rec := DefaultThresholds.band(tt.score)
		assert.Equal(t, tt.level, level, "score %d", tt.score)
		assert.Equal(t, tt.rec, rec, "score %d", tt.score)
	}
}

type stubClient struct {
	response string
	err      error
	called   bool
}

func (c *stubClient) Generate(_ context.Context, _, _ string, _ []byte) (string, error) {
	c.called = true
	return c.response, c.err
}

func TestAssessAIMergeRaisesScore(t *testing.T) {
	client := &stubClient{response: `{"risk_level": "HIGH", "risk_score": 85, "risk_factors": [{"factor": "fraud_indicator", "severity": "high", "detail": "template document"}], "recommendation": "reject", "reasoning": "Document shows template traits."}`}
	s := NewService(client, WithClock(fixedNow))

	in := cleanInput()
	in.UseAI = true
	got := s.Assess(context.Background(), in)

	assert.True(t, client.called)
	assert.Equal(t, 85, got.Score)
	assert.Equal(t, LevelHigh, got.Level)
	assert.Equal(t, RecommendReject, got.Recommendation)
	assert.True(t, got.AIGenerated)
	found := false
	for _, f := range got.Factors {
		if f.Kind == "fraud_indicator" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAssessAIMergeNeverLowersScore(t *testing.T) {
	client := &stubClient{response: `{"risk_level": "LOW", "risk_score": 5, "risk_factors": [], "recommendation": "auto-approve", "reasoning": "Looks fine."}`}
	s := NewService(client, WithClock(fixedNow))

	in := cleanInput()
	in.UseAI = true
	in.Extracted["expiry_date"] = str("2024-03-01") // rule-based 30

	got := s.Assess(context.Background(), in)

	assert.Equal(t, 30, got.Score, "a calmer AI opinion must not dilute the rule score")
	assert.Equal(t, LevelMedium, got.Level)
	assert.Equal(t, RecommendManualReview, got.Recommendation)
}

func TestAssessAIMergeDedupesFactorsByKind(t *testing.T) {
	client := &stubClient{response: `{"risk_score": 40, "risk_factors": [{"factor": "expired_document", "severity": "high", "detail": "dup"}, {"factor": "geo_anomaly", "severity": "low", "detail": "new"}], "reasoning": "x"}`}
	s := NewService(client, WithClock(fixedNow))

	in := cleanInput()
	in.UseAI = true
	in.Extracted["expiry_date"] = str("2024-03-01")

	got := s.Assess(context.Background(), in)

	count := map[string]int{}
	for _, f := range got.Factors {
		count[f.Kind]++
	}
	assert.Equal(t, 1, count["expired_document"])
	assert.Equal(t, 1, count["geo_anomaly"])
}

func TestAssessAIFailureKeepsRuleResult(t *testing.T) {
	tests := []struct {
		name   string
		client *stubClient
	}{
		{"transport error", &stubClient{err: errors.New("connection refused")}},
		{"garbage response", &stubClient{response: "I cannot assess this."}},
		{"malformed json", &stubClient{response: `{"risk_score": "lots"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewService(tt.client, WithClock(fixedNow))
			in := cleanInput()
			in.UseAI = true
			in.Extracted["expiry_date"] = str("2024-03-01")

			got := s.Assess(context.Background(), in)

			assert.Equal(t, 30, got.Score)
			assert.False(t, got.AIGenerated)
		})
	}
}

func TestAssessUseAIDisabledSkipsClient(t *testing.T) {
	client := &stubClient{response: `{"risk_score": 90}`}
	s := NewService(client, WithClock(fixedNow))

	got := s.Assess(context.Background(), cleanInput())

	assert.False(t, client.called)
	assert.False(t, got.AIGenerated)
}

func TestCharOverlap(t *testing.T) {
	assert.Equal(t, 1.0, charOverlap("ali khan", "ali khan"))
	assert.Less(t, charOverlap("xu ming", "ali khan"), 0.4)
	assert.Zero(t, charOverlap("", "ali"))
}
