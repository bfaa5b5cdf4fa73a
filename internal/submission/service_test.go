package submission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycgate/internal/document"
	"kycgate/internal/formdata"
	"kycgate/internal/risk"
	dErrors "kycgate/pkg/domain-errors"
)

type stubRegistrar struct {
	outcome RegistrationOutcome
	err     error
	called  bool
	lastReq RegistrationRequest
}

func (r *stubRegistrar) Register(_ context.Context, req RegistrationRequest) (RegistrationOutcome, error) {
	r.called = true
	r.lastReq = req
	return r.outcome, r.err
}

func newTestService(registrar Registrar) *Service {
	return NewService(registrar, NewHistory(),
		WithClock(func() time.Time { return time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC) }))
}

func baseParams() SubmitParams {
	return SubmitParams{
		Kind:         document.KindCNIC,
		Side:         document.SideFront,
		Country:      "PK",
		QualityScore: 95,
		Format:       "PNG",
		Checksum:     "abc123",
		SizeBytes:    204800,
		Form:         map[string]string{"full_name": "Ali Khan"},
		Extracted:    map[string]*string{},
		Risk:         risk.Assessment{Level: risk.LevelLow, Score: 5},
	}
}

func TestSubmitSimulatedAcceptance(t *testing.T) {
	s := newTestService(nil)

	record, err := s.Submit(context.Background(), baseParams())
	require.NoError(t, err)

	assert.Equal(t, StatusAccepted, record.Status)
	assert.True(t, len(record.DocumentID) > 4 && record.DocumentID[:4] == "DOC_")
	assert.Equal(t, "Document accepted for verification", record.Message)
}

func TestSubmitSimulatedBands(t *testing.T) {
	tests := []struct {
		score  float64
		status Status
	}{
		{95, StatusAccepted},
		{80, StatusAccepted},
		{79, StatusNeedsReview},
		{50, StatusNeedsReview},
		{49, StatusRejected},
		{10, StatusRejected},
	}
	for _, tt := range tests {
		s := newTestService(nil)
		p := baseParams()
		p.QualityScore = tt.score
		record, err := s.Submit(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, tt.status, record.Status, "score %.0f", tt.score)
	}
}

func TestSubmitMismatchesForceReview(t *testing.T) {
	registrar := &stubRegistrar{outcome: RegistrationOutcome{Status: StatusAccepted}}
	s := newTestService(registrar)

	p := baseParams()
	p.Mismatches = []formdata.Mismatch{{Field: "full_name"}}

	record, err := s.Submit(context.Background(), p)
	require.NoError(t, err)

	assert.True(t, registrar.called)
	assert.Equal(t, StatusNeedsReview, record.Status,
		"mismatches override the endpoint verdict")
}

func TestSubmitRegistrarFailureFallsBackToSimulation(t *testing.T) {
	registrar := &stubRegistrar{err: errors.New("connection refused")}
	s := newTestService(registrar)

	record, err := s.Submit(context.Background(), baseParams())
	require.NoError(t, err)

	assert.Equal(t, StatusAccepted, record.Status,
		"quality 95 simulates an acceptance when the endpoint is down")
}

func TestSubmitSendsRegistrationEnvelope(t *testing.T) {
	registrar := &stubRegistrar{outcome: RegistrationOutcome{Status: StatusAccepted, DocumentID: "DOC_REMOTE000001"}}
	s := newTestService(registrar)

	record, err := s.Submit(context.Background(), baseParams())
	require.NoError(t, err)

	assert.Equal(t, document.KindCNIC, registrar.lastReq.DocumentKind)
	assert.Equal(t, "abc123", registrar.lastReq.Checksum)
	assert.Equal(t, 204800, registrar.lastReq.SizeBytes)
	assert.Equal(t, document.SideFront, registrar.lastReq.Side)
	assert.Equal(t, "DOC_REMOTE000001", record.DocumentID,
		"endpoint-assigned IDs win over generated ones")
}

func TestSubmitSnapshotsAreImmutable(t *testing.T) {
	s := newTestService(nil)
	p := baseParams()
	p.Form = map[string]string{"full_name": "Ali Khan"}

	record, err := s.Submit(context.Background(), p)
	require.NoError(t, err)

	// Mutating the caller's map after submission must not leak into history.
	p.Form["full_name"] = "CHANGED"
	record.FormData["full_name"] = "ALSO CHANGED"

	stored, err := s.Status(record.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "Ali Khan", stored.FormData["full_name"])
}

func TestReviewApproveAndRejectOnce(t *testing.T) {
	s := newTestService(nil)
	p := baseParams()
	p.QualityScore = 60 // needs_review

	record, err := s.Submit(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StatusNeedsReview, record.Status)

	reviewed, err := s.Review(context.Background(), record.DocumentID, ActionApprove, "checked against registry")
	require.NoError(t, err)

	assert.Equal(t, StatusAccepted, reviewed.Status)
	assert.Equal(t, ActionApprove, reviewed.ReviewerAction)
	assert.Equal(t, "checked against registry", reviewed.ReviewerNotes)
	require.NotNil(t, reviewed.ReviewedAt)

	_, err = s.Review(context.Background(), record.DocumentID, ActionReject, "changed my mind")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	stored, err := s.Status(record.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, stored.Status, "the second review is a no-op")
}

func TestReviewReject(t *testing.T) {
	s := newTestService(nil)
	p := baseParams()
	p.QualityScore = 60

	record, err := s.Submit(context.Background(), p)
	require.NoError(t, err)

	reviewed, err := s.Review(context.Background(), record.DocumentID, ActionReject, "tampered")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, reviewed.Status)
}

func TestReviewUnknownDocument(t *testing.T) {
	s := newTestService(nil)
	_, err := s.Review(context.Background(), "DOC_MISSING", ActionApprove, "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestReviewInvalidAction(t *testing.T) {
	s := newTestService(nil)
	_, err := s.Review(context.Background(), "DOC_ANY", ReviewerAction("escalate"), "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestStatusUnknownDocument(t *testing.T) {
	s := newTestService(nil)
	_, err := s.Status("DOC_MISSING")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestPendingReviewsAndFlagged(t *testing.T) {
	s := newTestService(nil)

	accepted := baseParams() // 95 → accepted
	_, err := s.Submit(context.Background(), accepted)
	require.NoError(t, err)

	review := baseParams()
	review.QualityScore = 60
	pending, err := s.Submit(context.Background(), review)
	require.NoError(t, err)

	highRisk := baseParams()
	highRisk.Risk = risk.Assessment{Level: risk.LevelHigh, Score: 85}
	flaggedRec, err := s.Submit(context.Background(), highRisk)
	require.NoError(t, err)

	pendingList := s.PendingReviews()
	require.Len(t, pendingList, 1)
	assert.Equal(t, pending.DocumentID, pendingList[0].DocumentID)

	flagged := s.Flagged()
	require.Len(t, flagged, 1)
	assert.Equal(t, flaggedRec.DocumentID, flagged[0].DocumentID)

	// A reviewed record leaves the pending list.
	_, err = s.Review(context.Background(), pending.DocumentID, ActionApprove, "")
	require.NoError(t, err)
	assert.Empty(t, s.PendingReviews())
}

func TestAnalytics(t *testing.T) {
	s := newTestService(nil)

	assert.Equal(t, Analytics{ByCountry: map[string]int{}, ByDocumentKind: map[string]int{}}, s.Analytics())

	submit := func(score float64, country string, kind document.Kind, r risk.Assessment) {
		p := baseParams()
		p.QualityScore = score
		p.Country = country
		p.Kind = kind
		p.Risk = r
		_, err := s.Submit(context.Background(), p)
		require.NoError(t, err)
	}

	submit(95, "PK", document.KindCNIC, risk.Assessment{Level: risk.LevelLow, Score: 10})
	submit(60, "PK", document.KindCNIC, risk.Assessment{Level: risk.LevelHigh, Score: 70})
	submit(30, "IN", document.KindAadhaar, risk.Assessment{Level: risk.LevelMedium, Score: 40})

	got := s.Analytics()

	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 1, got.Accepted)
	assert.Equal(t, 1, got.Rejected)
	assert.Equal(t, 1, got.PendingReview)
	assert.Equal(t, map[string]int{"PK": 2, "IN": 1}, got.ByCountry)
	assert.Equal(t, map[string]int{"cnic": 2, "aadhaar": 1}, got.ByDocumentKind)
	assert.InDelta(t, 61.7, got.AvgQualityScore, 0.05)
	assert.Equal(t, 40.0, got.AvgRiskScore)
	assert.Equal(t, 1, got.HighRiskCount)
}

func TestHistoryReadsAreCopies(t *testing.T) {
	h := NewHistory()
	h.Append(Record{DocumentID: "DOC_1", FormData: map[string]string{"k": "v"}})

	all := h.All()
	all[0].FormData["k"] = "mutated"

	stored, ok := h.Find("DOC_1")
	require.True(t, ok)
	assert.Equal(t, "v", stored.FormData["k"])
}
