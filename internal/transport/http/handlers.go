package httptransport

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"kycgate/internal/document"
	"kycgate/internal/formdata"
	"kycgate/internal/governor"
	"kycgate/internal/pipeline"
	"kycgate/internal/submission"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/httputil"
	"kycgate/pkg/requestcontext"
)

// Verifier is the pipeline surface the transport layer needs.
type Verifier interface {
	Analyze(ctx context.Context, req pipeline.AnalyzeRequest) (*pipeline.AnalyzeResult, error)
	AnalyzeSides(ctx context.Context, reqs []pipeline.AnalyzeRequest) ([]*pipeline.AnalyzeResult, error)
	Submit(ctx context.Context, req pipeline.SubmitRequest) (*pipeline.SubmitResult, error)
	Status(documentID string) (*submission.Record, error)
	Review(ctx context.Context, documentID string, action submission.ReviewerAction, notes string) (*submission.Record, error)
	PendingReviews() []submission.Record
	Flagged() []submission.Record
	Analytics() submission.Analytics
	Usage() governor.Snapshot
	ResetUsage()
}

// Handler is the thin HTTP layer. It delegates to the pipeline without
// embedding business logic so transport concerns remain isolated.
type Handler struct {
	verifier Verifier
	logger   *slog.Logger
}

func NewHandler(verifier Verifier, logger *slog.Logger) *Handler {
	return &Handler{verifier: verifier, logger: logger}
}

type sideImage struct {
	Side  string `json:"side"`
	Image string `json:"image"`
}

type analyzeRequest struct {
	Image         string            `json:"image"`
	Sides         []sideImage       `json:"sides,omitempty"`
	DocumentType  string            `json:"document_type"`
	Side          string            `json:"side"`
	Country       string            `json:"country"`
	SidesUploaded []string          `json:"sides_uploaded,omitempty"`
	Form          map[string]string `json:"form,omitempty"`
}

type submitRequest struct {
	Image        string              `json:"image"`
	DocumentType string              `json:"document_type"`
	Side         string              `json:"side"`
	Country      string              `json:"country"`
	IssueScore   float64             `json:"issue_score"`
	Form         map[string]string   `json:"form,omitempty"`
	Extracted    map[string]*string  `json:"extracted,omitempty"`
	Mismatches   []formdata.Mismatch `json:"mismatches,omitempty"`
}

type reviewRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes,omitempty"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[analyzeRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := validateAnalyzeRequest(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	kind := document.Kind(strings.ToLower(req.DocumentType))
	sidesUploaded := parseSides(req.SidesUploaded)

	// Multi-side analysis runs each image concurrently.
	if len(req.Sides) > 0 {
		reqs := make([]pipeline.AnalyzeRequest, 0, len(req.Sides))
		for _, s := range req.Sides {
			image, err := decodeImage(s.Image)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			reqs = append(reqs, pipeline.AnalyzeRequest{
				Image:         image,
				Kind:          kind,
				Country:       req.Country,
				Side:          document.Side(strings.ToLower(s.Side)),
				SidesUploaded: sidesUploaded,
				Form:          req.Form,
			})
		}
		results, err := h.verifier.AnalyzeSides(ctx, reqs)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
		return
	}

	image, err := decodeImage(req.Image)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.verifier.Analyze(ctx, pipeline.AnalyzeRequest{
		Image:         image,
		Kind:          kind,
		Country:       req.Country,
		Side:          document.Side(strings.ToLower(req.Side)),
		SidesUploaded: sidesUploaded,
		Form:          req.Form,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[submitRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := validateSubmitRequest(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	image, err := decodeImage(req.Image)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.verifier.Submit(ctx, pipeline.SubmitRequest{
		Image:      image,
		Kind:       document.Kind(strings.ToLower(req.DocumentType)),
		Side:       document.Side(strings.ToLower(req.Side)),
		Country:    req.Country,
		IssueScore: req.IssueScore,
		Form:       req.Form,
		Extracted:  req.Extracted,
		Mismatches: req.Mismatches,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	record, err := h.verifier.Status(documentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	documentID := chi.URLParam(r, "documentID")

	req, ok := httputil.Decode[reviewRequest](w, r, h.logger)
	if !ok {
		return
	}

	record, err := h.verifier.Review(ctx, documentID, submission.ReviewerAction(req.Action), req.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "submission reviewed",
		"document_id", documentID,
		"action", req.Action,
		"reviewer_id", requestcontext.ReviewerID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handlePendingReviews(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"submissions": h.verifier.PendingReviews(),
	})
}

func (h *Handler) handleFlagged(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"submissions": h.verifier.Flagged(),
	})
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.verifier.Analytics())
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.verifier.Usage())
}

func (h *Handler) handleUsageReset(w http.ResponseWriter, r *http.Request) {
	h.verifier.ResetUsage()
	h.logger.InfoContext(r.Context(), "usage counters reset",
		"reviewer_id", requestcontext.ReviewerID(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeImage(encoded string) ([]byte, error) {
	if idx := strings.Index(encoded, ";base64,"); idx >= 0 {
		encoded = encoded[idx+len(";base64,"):]
	}
	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "image is not valid base64")
	}
	return image, nil
}

func validateAnalyzeRequest(req analyzeRequest) error {
	if req.Image == "" && len(req.Sides) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "image is required")
	}
	if req.Image != "" && len(req.Sides) > 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "provide either image or sides, not both")
	}
	if !document.Kind(strings.ToLower(req.DocumentType)).IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown document_type")
	}
	if len(req.Sides) == 0 && !document.Side(strings.ToLower(req.Side)).IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "side must be front or back")
	}
	for _, s := range req.Sides {
		if !document.Side(strings.ToLower(s.Side)).IsValid() {
			return dErrors.New(dErrors.CodeInvalidInput, "side must be front or back")
		}
		if s.Image == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "every side needs an image")
		}
	}
	if err := validateCountry(req.Country); err != nil {
		return err
	}
	return nil
}

func validateSubmitRequest(req submitRequest) error {
	if req.Image == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "image is required")
	}
	if !document.Kind(strings.ToLower(req.DocumentType)).IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown document_type")
	}
	if !document.Side(strings.ToLower(req.Side)).IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "side must be front or back")
	}
	if req.IssueScore < 0 || req.IssueScore > 100 {
		return dErrors.New(dErrors.CodeInvalidInput, "issue_score must be between 0 and 100")
	}
	if err := validateCountry(req.Country); err != nil {
		return err
	}
	return nil
}

func validateCountry(country string) error {
	if !govalidator.StringLength(country, "2", "2") || !govalidator.IsUpperCase(country) || !govalidator.IsAlpha(country) {
		return dErrors.New(dErrors.CodeInvalidInput, "country must be a 2-letter uppercase code")
	}
	return nil
}

func parseSides(raw []string) []document.Side {
	sides := make([]document.Side, 0, len(raw))
	for _, s := range raw {
		sides = append(sides, document.Side(strings.ToLower(s)))
	}
	return sides
}
