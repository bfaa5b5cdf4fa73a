package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kycgate/internal/vision"
)

const aiModel = "gemini-2.5-flash"

// Service runs risk assessments. The rule engine is always available; the
// AI path needs a vision client and is strictly additive.
type Service struct {
	client     vision.Client
	thresholds Thresholds
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithThresholds(t Thresholds) Option {
	return func(s *Service) { s.thresholds = t }
}

// WithClock overrides the wall clock, used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds a risk service. A nil client disables the AI path.
func NewService(client vision.Client, opts ...Option) *Service {
	s := &Service{
		client:     client,
		thresholds: DefaultThresholds,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assess scores one submission. The AI second opinion can only raise the
// final score: results merge by maximum, and any AI failure leaves the
// rule-based result untouched.
func (s *Service) Assess(ctx context.Context, in Input) Assessment {
	rule := s.ruleBased(in)

	if !in.UseAI || s.client == nil {
		return rule
	}

	ai, err := s.aiAssess(ctx, in)
	if err != nil {
		s.logger.WarnContext(ctx, "AI risk assessment failed, keeping rule-based result", "error", err)
		return rule
	}

	return s.merge(rule, ai)
}

// merge takes the maximum score, never the average: one severe flagged
// factor must not be diluted by a calmer second opinion.
func (s *Service) merge(rule, ai Assessment) Assessment {
	score := rule.Score
	if ai.Score > score {
		score = ai.Score
	}
	if score > 100 {
		score = 100
	}

	seen := make(map[string]struct{}, len(rule.Factors))
	factors := append([]Factor(nil), rule.Factors...)
	for _, f := range rule.Factors {
		seen[f.Kind] = struct{}{}
	}
	for _, f := range ai.Factors {
		if _, ok := seen[f.Kind]; ok {
			continue
		}
		seen[f.Kind] = struct{}{}
		factors = append(factors, f)
	}

	level, recommendation := s.thresholds.band(score)
	return Assessment{
		Level:          level,
		Score:          score,
		Factors:        factors,
		Recommendation: recommendation,
		Reasoning:      ai.Reasoning,
		AIGenerated:    true,
	}
}

type aiPayload struct {
	RiskLevel      string   `json:"risk_level"`
	RiskScore      float64  `json:"risk_score"`
	RiskFactors    []Factor `json:"risk_factors"`
	Recommendation string   `json:"recommendation"`
	Reasoning      string   `json:"reasoning"`
}

func (s *Service) aiAssess(ctx context.Context, in Input) (Assessment, error) {
	prompt, err := buildRiskPrompt(in)
	if err != nil {
		return Assessment{}, err
	}

	text, err := s.client.Generate(ctx, aiModel, prompt, nil)
	if err != nil {
		return Assessment{}, err
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Assessment{}, fmt.Errorf("no structured object in AI response")
	}

	var p aiPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &p); err != nil {
		return Assessment{}, fmt.Errorf("decoding AI response: %w", err)
	}

	score := int(p.RiskScore)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	reasoning := p.Reasoning
	if reasoning == "" {
		reasoning = "AI assessment complete"
	}

	level, recommendation := s.thresholds.band(score)
	return Assessment{
		Level:          level,
		Score:          score,
		Factors:        p.RiskFactors,
		Recommendation: recommendation,
		Reasoning:      reasoning,
		AIGenerated:    true,
	}, nil
}

func buildRiskPrompt(in Input) (string, error) {
	extracted, err := json.MarshalIndent(flattenFields(in.Extracted), "", "  ")
	if err != nil {
		return "", err
	}
	form, err := json.MarshalIndent(in.Form, "", "  ")
	if err != nil {
		return "", err
	}
	mismatches, err := json.MarshalIndent(in.Mismatches, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You are a KYC compliance risk analyst. Assess the fraud and compliance risk for this document submission.

DOCUMENT INFO:
- Type: %s
- Country: %s
- Quality Score: %.0f/100

FORM DATA (user entered):
%s

OCR DATA (extracted from document):
%s

MISMATCHES DETECTED:
%s

ASSESS THESE RISK FACTORS:
1. Name consistency between form and document (account for transliteration, spelling variations)
2. Document expiry status
3. Data completeness (are key fields readable?)
4. Cross-field consistency (DOB, address matches postal code region?)
5. Any fraud indicators (digital manipulation, screenshot signs, template documents)

RESPOND WITH ONLY THIS JSON:
{
    "risk_level": "LOW" or "MEDIUM" or "HIGH",
    "risk_score": 0-100,
    "risk_factors": [
        {"factor": "name", "severity": "low/medium/high", "detail": "explanation"}
    ],
    "recommendation": "auto-approve" or "manual-review" or "reject",
    "reasoning": "1-2 sentence summary of your assessment"
}`, in.Kind, in.Country, in.QualityScore, form, extracted, mismatches), nil
}

func flattenFields(fields map[string]*string) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if v == nil {
			out[k] = nil
			continue
		}
		out[k] = *v
	}
	return out
}
