// Package pipeline composes the verification stages into the operations
// the transport layer exposes: analyze, submit, status, analytics, usage.
package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"kycgate/internal/document"
	"kycgate/internal/formdata"
	"kycgate/internal/governor"
	"kycgate/internal/issue"
	"kycgate/internal/platform/metrics"
	"kycgate/internal/quality"
	"kycgate/internal/risk"
	"kycgate/internal/submission"
	"kycgate/internal/vision"
	dErrors "kycgate/pkg/domain-errors"
)

// QualityAnalyzer is the local image prefilter.
type QualityAnalyzer interface {
	Analyze(imageBytes []byte) (quality.Assessment, error)
}

// Extractor runs a governed vision extraction.
type Extractor interface {
	Extract(ctx context.Context, image []byte, kind document.Kind, country string, side document.Side) vision.ExtractionResult
}

// RiskAssessor scores a submission for risk.
type RiskAssessor interface {
	Assess(ctx context.Context, in risk.Input) risk.Assessment
}

// AnalyzeRequest is one image to analyze.
type AnalyzeRequest struct {
	Image         []byte
	Kind          document.Kind
	Country       string
	Side          document.Side
	SidesUploaded []document.Side
	Form          map[string]string
}

// AnalyzeResult is the structured verdict for one image. Analyze always
// produces one unless a usage budget denied the request outright.
type AnalyzeResult struct {
	Score           float64              `json:"score"`
	IsReady         bool                 `json:"is_ready"`
	Issues          []issue.Issue        `json:"issues"`
	ExtractedFields map[string]*string   `json:"extracted_fields"`
	Mismatches      []formdata.Mismatch  `json:"mismatches,omitempty"`
	Quality         quality.Assessment   `json:"quality"`
	QualityScore    float64              `json:"quality_score"`
	DetectedKind    string               `json:"detected_kind,omitempty"`
	FailureReason   vision.FailureReason `json:"failure_reason,omitempty"`
	UsageNote       string               `json:"usage_note,omitempty"`
}

// SubmitRequest registers an analyzed document.
type SubmitRequest struct {
	Image      []byte
	Kind       document.Kind
	Side       document.Side
	Country    string
	IssueScore float64
	Form       map[string]string
	Extracted  map[string]*string
	Mismatches []formdata.Mismatch
}

// SubmitResult reports the registration outcome.
type SubmitResult struct {
	DocumentID string            `json:"document_id"`
	Status     submission.Status `json:"status"`
	CanProceed bool              `json:"can_proceed"`
	Message    string            `json:"message"`
	Risk       risk.Assessment   `json:"risk"`
}

// Pipeline wires the stages together. All shared mutable state lives in
// the Governor and the submission history.
type Pipeline struct {
	quality     QualityAnalyzer
	extractor   Extractor
	detector    *issue.Detector
	riskSvc     RiskAssessor
	submissions *submission.Service
	gov         *governor.Governor
	metrics     *metrics.Metrics
	logger      *slog.Logger
	useAI       bool
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithAIRisk enables the AI second opinion during submission risk scoring.
func WithAIRisk(enabled bool) Option {
	return func(p *Pipeline) { p.useAI = enabled }
}

func New(
	qualityAnalyzer QualityAnalyzer,
	extractor Extractor,
	detector *issue.Detector,
	riskSvc RiskAssessor,
	submissions *submission.Service,
	gov *governor.Governor,
	m *metrics.Metrics,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		quality:     qualityAnalyzer,
		extractor:   extractor,
		detector:    detector,
		riskSvc:     riskSvc,
		submissions: submissions,
		gov:         gov,
		metrics:     m,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze runs the full verification pass for one image. Budget checks run
// before any external call; input errors short-circuit to a blocking-issue
// result without spending vision quota.
func (p *Pipeline) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	if !p.gov.CanCall() {
		return nil, dErrors.New(dErrors.CodeQuotaExceeded,
			"API limit reached. Please try again tomorrow.")
	}

	ok, usageNote := p.gov.RecordFieldAttempt(req.Kind, req.Side)
	if !ok {
		return nil, dErrors.New(dErrors.CodeQuotaExceeded, usageNote)
	}

	p.metrics.IncrementAnalyses()

	imageQuality, err := p.quality.Analyze(req.Image)
	if err != nil {
		p.logger.WarnContext(ctx, "image rejected by prefilter", "error", err)
		blocking := issue.New(issue.KindWrongFormat, "", dErrors.MessageOf(err))
		issues := []issue.Issue{blocking}
		return &AnalyzeResult{
			Score:           issue.Score(issues),
			IsReady:         false,
			Issues:          issues,
			ExtractedFields: map[string]*string{},
			UsageNote:       usageNote,
		}, nil
	}

	sidesUploaded := req.SidesUploaded
	if len(sidesUploaded) == 0 {
		sidesUploaded = []document.Side{req.Side}
	}

	p.metrics.IncrementVisionCall()
	extraction := p.extractor.Extract(ctx, req.Image, req.Kind, req.Country, req.Side)
	if extraction.FailureReason != "" {
		p.metrics.IncrementVisionFail()
	}

	detected := p.detector.Detect(extraction, imageQuality, req.Country, req.Kind, req.Side, sidesUploaded)
	prioritized := issue.Prioritize(detected)

	var mismatches []formdata.Mismatch
	if len(req.Form) > 0 && len(extraction.Fields) > 0 {
		mismatches = formdata.Compare(extraction.Fields, req.Form, req.Country, req.Side)
	}

	result := &AnalyzeResult{
		Score:           issue.Score(detected),
		IsReady:         issue.IsReady(detected),
		Issues:          prioritized,
		ExtractedFields: extraction.Fields,
		Mismatches:      mismatches,
		Quality:         imageQuality,
		QualityScore:    extraction.QualityScore,
		DetectedKind:    extraction.DetectedKind,
		FailureReason:   extraction.FailureReason,
		UsageNote:       usageNote,
	}

	p.logger.InfoContext(ctx, "analysis complete",
		"kind", req.Kind, "side", req.Side, "score", result.Score,
		"is_ready", result.IsReady, "issues", len(detected))
	return result, nil
}

// AnalyzeSides analyzes independent sides concurrently. The Governor and
// the submission history are the only shared state the goroutines touch.
func (p *Pipeline) AnalyzeSides(ctx context.Context, reqs []AnalyzeRequest) ([]*AnalyzeResult, error) {
	results := make([]*AnalyzeResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := p.Analyze(gctx, req)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Submit risk-assesses the analyzed document and registers it.
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	imageQuality, err := p.quality.Analyze(req.Image)
	if err != nil {
		return nil, err
	}

	if req.Mismatches == nil && len(req.Form) > 0 && len(req.Extracted) > 0 {
		req.Mismatches = formdata.Compare(req.Extracted, req.Form, req.Country, req.Side)
	}

	assessment := p.riskSvc.Assess(ctx, risk.Input{
		Extracted:    req.Extracted,
		Form:         req.Form,
		QualityScore: req.IssueScore,
		Mismatches:   req.Mismatches,
		Country:      req.Country,
		Kind:         req.Kind,
		UseAI:        p.useAI,
	})

	record, err := p.submissions.Submit(ctx, submission.SubmitParams{
		Kind:         req.Kind,
		Side:         req.Side,
		Country:      req.Country,
		QualityScore: req.IssueScore,
		Format:       imageQuality.Format,
		Checksum:     imageQuality.Checksum,
		SizeBytes:    len(req.Image),
		Form:         req.Form,
		Extracted:    req.Extracted,
		Mismatches:   req.Mismatches,
		Risk:         assessment,
	})
	if err != nil {
		return nil, err
	}

	p.metrics.RecordSubmission(string(record.Status))
	if assessment.Level == risk.LevelHigh {
		p.metrics.IncrementHighRisk()
	}

	return &SubmitResult{
		DocumentID: record.DocumentID,
		Status:     record.Status,
		CanProceed: record.Status == submission.StatusAccepted || record.Status == submission.StatusNeedsReview,
		Message:    record.Message,
		Risk:       assessment,
	}, nil
}

// Status looks up one submission.
func (p *Pipeline) Status(documentID string) (*submission.Record, error) {
	return p.submissions.Status(documentID)
}

// Analytics returns the dashboard rollup.
func (p *Pipeline) Analytics() submission.Analytics {
	return p.submissions.Analytics()
}

// PendingReviews lists submissions awaiting a reviewer.
func (p *Pipeline) PendingReviews() []submission.Record {
	return p.submissions.PendingReviews()
}

// Flagged lists risk-flagged submissions.
func (p *Pipeline) Flagged() []submission.Record {
	return p.submissions.Flagged()
}

// Review applies a reviewer decision to a submission.
func (p *Pipeline) Review(ctx context.Context, documentID string, action submission.ReviewerAction, notes string) (*submission.Record, error) {
	return p.submissions.Review(ctx, documentID, action, notes)
}

// Usage reports both governor budgets.
func (p *Pipeline) Usage() governor.Snapshot {
	snap := p.gov.Snapshot()
	p.metrics.SetUsageCalls(snap.TotalCalls)
	return snap
}

// ResetUsage clears all governor counters. Admin use.
func (p *Pipeline) ResetUsage() {
	p.gov.ResetAll()
}
