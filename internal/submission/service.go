package submission

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"kycgate/internal/document"
	"kycgate/internal/formdata"
	"kycgate/internal/risk"
	dErrors "kycgate/pkg/domain-errors"
)

var statusMessages = map[Status]string{
	StatusAccepted:    "Document accepted for verification",
	StatusNeedsReview: "Document flagged for manual compliance review",
	StatusRejected:    "Document rejected, please resubmit with better quality",
	StatusPending:     "Document submitted, awaiting processing",
}

// SubmitParams carries everything needed to register one document.
type SubmitParams struct {
	Kind         document.Kind
	Side         document.Side
	Country      string
	QualityScore float64
	Format       string
	Checksum     string
	SizeBytes    int

	Form       map[string]string
	Extracted  map[string]*string
	Mismatches []formdata.Mismatch
	Risk       risk.Assessment
}

// Service drives the submission lifecycle.
type Service struct {
	registrar Registrar
	history   *History
	logger    *slog.Logger
	now       func() time.Time
	newID     func(document.Kind, document.Side) string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the wall clock, used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides document ID generation, used in tests.
func WithIDGenerator(newID func(document.Kind, document.Side) string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService builds a submission service. A nil registrar always simulates.
func NewService(registrar Registrar, history *History, opts ...Option) *Service {
	s := &Service{
		registrar: registrar,
		history:   history,
		logger:    slog.Default(),
		now:       time.Now,
		newID:     generateDocumentID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func generateDocumentID(document.Kind, document.Side) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "DOC_" + strings.ToUpper(raw[:12])
}

// Submit registers the document and appends a record to history. A
// non-empty mismatch list forces NEEDS_REVIEW regardless of what the
// registration endpoint reported.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*Record, error) {
	documentID := s.newID(p.Kind, p.Side)

	outcome := s.register(ctx, p)
	if outcome.DocumentID != "" {
		documentID = outcome.DocumentID
	}

	status := outcome.Status
	if !status.IsValid() {
		status = StatusPending
	}
	if len(p.Mismatches) > 0 {
		status = StatusNeedsReview
	}

	record := Record{
		DocumentID:      documentID,
		DocumentKind:    p.Kind,
		Side:            p.Side,
		Country:         p.Country,
		Status:          status,
		QualityScore:    p.QualityScore,
		RiskLevel:       p.Risk.Level,
		RiskScore:       p.Risk.Score,
		RiskFactors:     p.Risk.Factors,
		FormData:        p.Form,
		ExtractedFields: p.Extracted,
		Mismatches:      p.Mismatches,
		Message:         statusMessages[status],
		SubmittedAt:     s.now(),
	}
	s.history.Append(record)

	s.logger.InfoContext(ctx, "document submitted",
		"document_id", documentID, "kind", p.Kind, "side", p.Side, "status", status)

	stored := record.clone()
	return &stored, nil
}

func (s *Service) register(ctx context.Context, p SubmitParams) RegistrationOutcome {
	if s.registrar == nil {
		return simulateOutcome(p.QualityScore)
	}
	outcome, err := s.registrar.Register(ctx, RegistrationRequest{
		DocumentKind: p.Kind,
		Format:       p.Format,
		Checksum:     p.Checksum,
		SizeBytes:    p.SizeBytes,
		Side:         p.Side,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "registration endpoint unavailable, simulating outcome", "error", err)
		return simulateOutcome(p.QualityScore)
	}
	return outcome
}

// Review applies a reviewer decision. A record can be reviewed exactly
// once; approve yields ACCEPTED, reject yields REJECTED.
func (s *Service) Review(ctx context.Context, documentID string, action ReviewerAction, notes string) (*Record, error) {
	if !action.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "reviewer action must be approve or reject")
	}

	updated, found, err := s.history.Apply(documentID, func(r *Record) error {
		if r.ReviewerAction != "" {
			return dErrors.New(dErrors.CodeConflict, "document has already been reviewed")
		}
		if action == ActionApprove {
			r.Status = StatusAccepted
		} else {
			r.Status = StatusRejected
		}
		r.ReviewerAction = action
		r.ReviewerNotes = notes
		reviewedAt := s.now()
		r.ReviewedAt = &reviewedAt
		r.Message = statusMessages[r.Status]
		return nil
	})
	if !found {
		return nil, dErrors.New(dErrors.CodeNotFound, "document "+documentID+" not found")
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "submission reviewed",
		"document_id", documentID, "action", action)
	return &updated, nil
}

// Status looks up one submission.
func (s *Service) Status(documentID string) (*Record, error) {
	record, ok := s.history.Find(documentID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "document "+documentID+" not found")
	}
	return &record, nil
}

// PendingReviews lists submissions awaiting a reviewer decision.
func (s *Service) PendingReviews() []Record {
	return s.history.Where(func(r Record) bool {
		return r.Status == StatusNeedsReview && r.ReviewerAction == ""
	})
}

// Flagged lists submissions that carry risk signals: HIGH risk level or
// any data mismatch.
func (s *Service) Flagged() []Record {
	return s.history.Where(func(r Record) bool {
		return r.RiskLevel == risk.LevelHigh || len(r.Mismatches) > 0
	})
}

// All returns every submission in append order.
func (s *Service) All() []Record {
	return s.history.All()
}

// Analytics aggregates the dashboard rollup.
func (s *Service) Analytics() Analytics {
	records := s.history.All()
	analytics := Analytics{
		ByCountry:      map[string]int{},
		ByDocumentKind: map[string]int{},
	}
	if len(records) == 0 {
		return analytics
	}

	var qualitySum, riskSum float64
	for _, r := range records {
		analytics.Total++
		switch r.Status {
		case StatusAccepted:
			analytics.Accepted++
		case StatusRejected:
			analytics.Rejected++
		case StatusNeedsReview:
			analytics.PendingReview++
		}
		analytics.ByCountry[r.Country]++
		analytics.ByDocumentKind[string(r.DocumentKind)]++
		qualitySum += r.QualityScore
		riskSum += float64(r.RiskScore)
		if r.RiskLevel == risk.LevelHigh {
			analytics.HighRiskCount++
		}
	}

	total := float64(analytics.Total)
	analytics.AvgQualityScore = math.Round(qualitySum/total*10) / 10
	analytics.AvgRiskScore = math.Round(riskSum/total*10) / 10
	return analytics
}
