package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"kycgate/internal/document"
)

// payload mirrors the JSON shape the inference endpoint is asked to produce.
// It is untrusted: every field is optional and nothing here crosses into an
// ExtractionResult without validation.
type payload struct {
	DocumentDetected     bool                   `json:"document_detected"`
	IsValidDocumentType  bool                   `json:"is_valid_document_type"`
	RejectionReason      *string                `json:"rejection_reason"`
	DocumentTypeDetected string                 `json:"document_type_detected"`
	HasRequiredPhoto     *bool                  `json:"has_required_photo"`
	HasRequiredElements  *bool                  `json:"has_required_elements"`
	QualityAssessment    qualityPayload         `json:"quality_assessment"`
	ExtractedFields      map[string]any         `json:"extracted_fields"`
	Issues               []RawIssue             `json:"issues"`
	VerificationStatus   string                 `json:"verification_status"`
	ConfidenceScore      float64                `json:"confidence_score"`
}

type qualityPayload struct {
	OverallQuality    string   `json:"overall_quality"`
	QualityScore      *float64 `json:"quality_score"`
	IsBlurry          bool     `json:"is_blurry"`
	IsTooDark         bool     `json:"is_too_dark"`
	IsTooBright       bool     `json:"is_too_bright"`
	HasGlare          bool     `json:"has_glare"`
	AllCornersVisible *bool    `json:"all_corners_visible"`
	IsRotated         bool     `json:"is_rotated"`
	TextReadable      *bool    `json:"text_readable"`
}

var errNoJSON = errors.New("no structured object found in response")

// parseResponse locates and decodes the embedded JSON object. The endpoint
// frequently wraps its answer in markdown fences or prose.
func parseResponse(raw string) (payload, error) {
	cleaned := stripFences(raw)

	// Cheapest cut first: everything between the first '{' and last '}'.
	if start := strings.Index(cleaned, "{"); start >= 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			var p payload
			if err := json.Unmarshal([]byte(cleaned[start:end+1]), &p); err == nil {
				return p, nil
			}
		}
	}

	// Trailing prose after the object breaks the cut above. Scan for the
	// outermost balanced-brace region, ignoring braces inside strings.
	if region, ok := balancedRegion(cleaned); ok {
		var p payload
		if err := json.Unmarshal([]byte(region), &p); err == nil {
			return p, nil
		}
	}

	return payload{}, errNoJSON
}

func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.Contains(cleaned, "```") {
		return cleaned
	}
	lines := strings.Split(cleaned, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// balancedRegion returns the first balanced {...} region, tracking string
// quoting and escapes so braces inside values do not miscount depth.
func balancedRegion(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// convert validates an untrusted payload into an ExtractionResult.
func convert(p payload, kind document.Kind, side document.Side, model string) ExtractionResult {
	if !p.DocumentDetected || !p.IsValidDocumentType {
		detected := p.DocumentTypeDetected
		if detected == "" {
			detected = "NOT_A_DOCUMENT"
		}
		reason := fmt.Sprintf("Upload a valid %s document", kind)
		if p.RejectionReason != nil && *p.RejectionReason != "" {
			reason = *p.RejectionReason
		}
		return ExtractionResult{
			Success:      false,
			DetectedKind: detected,
			Side:         side,
			Quality:      QualityUnreadable,
			QualityScore: 0,
			Fields:       map[string]*string{},
			RawIssues: []RawIssue{{
				Type:       "INVALID_DOCUMENT",
				Severity:   "blocking",
				Message:    fmt.Sprintf("This is not a valid %s. Detected: %s", kind, detected),
				Suggestion: fmt.Sprintf("Please upload a clear photo of your %s", kind),
			}},
			Suggestions: []string{reason},
			ModelUsed:   model,
		}
	}

	q := p.QualityAssessment
	quality := Quality(strings.ToLower(q.OverallQuality))
	if !quality.IsValid() {
		quality = QualityPoor
	}
	score := 50.0
	if q.QualityScore != nil {
		score = clamp(*q.QualityScore, 0, 100)
	}

	cornersVisible := q.AllCornersVisible == nil || *q.AllCornersVisible
	textReadable := q.TextReadable == nil || *q.TextReadable

	detected := p.DocumentTypeDetected
	if detected == "" {
		detected = string(kind)
	}

	issues := append([]RawIssue(nil), p.Issues...)
	suggestions := make([]string, 0, len(issues))
	for _, issue := range issues {
		if issue.Suggestion != "" {
			suggestions = append(suggestions, issue.Suggestion)
		}
	}
	if q.IsBlurry {
		suggestions = append(suggestions, "Hold camera steady and tap to focus")
	}
	if q.IsTooDark {
		suggestions = append(suggestions, "Move to a well-lit area")
	}
	if q.HasGlare {
		suggestions = append(suggestions, "Avoid direct lighting to reduce glare")
	}
	if !cornersVisible {
		suggestions = append(suggestions, "Ensure all 4 corners of the document are visible")
	}

	hasPhoto := p.HasRequiredPhoto == nil || *p.HasRequiredPhoto
	if !hasPhoto && isPhotoDocument(kind) {
		issues = append(issues, RawIssue{
			Type:       "MISSING_PHOTO",
			Severity:   "blocking",
			Message:    "ID photo not detected on document",
			Suggestion: "Ensure the photo on your ID is clearly visible",
		})
		if score > 30 {
			score = 30
		}
	}

	return ExtractionResult{
		Success:             true,
		DetectedKind:        detected,
		Side:                side,
		Confidence:          clamp(p.ConfidenceScore, 0, 100),
		Quality:             quality,
		QualityScore:        score,
		IsBlurry:            q.IsBlurry,
		IsTooDark:           q.IsTooDark,
		IsTooBright:         q.IsTooBright,
		HasGlare:            q.HasGlare,
		AllCornersVisible:   cornersVisible,
		IsRotated:           q.IsRotated,
		TextReadable:        textReadable,
		HasPhoto:            hasPhoto,
		HasRequiredElements: p.HasRequiredElements == nil || *p.HasRequiredElements,
		Fields:              normalizeFields(p.ExtractedFields),
		RawIssues:           issues,
		Suggestions:         dedupe(suggestions),
		ModelUsed:           model,
	}
}

func isPhotoDocument(kind document.Kind) bool {
	switch kind {
	case document.KindCNIC, document.KindAadhaar, document.KindPassport, document.KindDrivingLicense:
		return true
	}
	return false
}

// normalizeFields flattens arbitrary JSON values into strings, keeping
// explicit nulls as nil entries.
func normalizeFields(raw map[string]any) map[string]*string {
	out := make(map[string]*string, len(raw))
	for key, value := range raw {
		if value == nil {
			out[key] = nil
			continue
		}
		var s string
		switch v := value.(type) {
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			s = fmt.Sprintf("%t", v)
		default:
			s = fmt.Sprintf("%v", v)
		}
		out[key] = &s
	}
	return out
}

// fallbackVerdict approximates a result via keyword spotting when no JSON
// could be recovered. The pipeline must always get something structured.
func fallbackVerdict(raw string, kind document.Kind, side document.Side, model string) ExtractionResult {
	lower := strings.ToLower(raw)

	var quality Quality
	var score float64
	switch {
	case strings.Contains(lower, "unreadable") || strings.Contains(lower, "cannot read"):
		quality, score = QualityUnreadable, 10
	case strings.Contains(lower, "blur"):
		quality, score = QualityPoor, 30
	case strings.Contains(lower, "dark") || strings.Contains(lower, "lighting"):
		quality, score = QualityPoor, 35
	case strings.Contains(lower, "good") || strings.Contains(lower, "clear"):
		quality, score = QualityGood, 75
	default:
		quality, score = QualityAcceptable, 50
	}

	var issues []RawIssue
	var suggestions []string
	if strings.Contains(lower, "blur") {
		issues = append(issues, RawIssue{Type: "BLURRY", Severity: "blocking", Message: "Document is blurry"})
		suggestions = append(suggestions, "Hold camera steady and tap to focus")
	}
	if strings.Contains(lower, "dark") {
		issues = append(issues, RawIssue{Type: "TOO_DARK", Severity: "warning", Message: "Image is too dark"})
		suggestions = append(suggestions, "Move to a well-lit area")
	}
	if strings.Contains(lower, "corner") {
		issues = append(issues, RawIssue{Type: "CORNERS_CUT", Severity: "blocking", Message: "Corners not visible"})
		suggestions = append(suggestions, "Ensure all 4 corners are visible")
	}

	return ExtractionResult{
		Success:           quality != QualityUnreadable && quality != QualityPoor,
		DetectedKind:      string(kind),
		Side:              side,
		Quality:           quality,
		QualityScore:      score,
		AllCornersVisible: !strings.Contains(lower, "corner"),
		TextReadable:      quality != QualityUnreadable,
		HasPhoto:          true,
		Fields:            map[string]*string{},
		RawIssues:         issues,
		Suggestions:       suggestions,
		ModelUsed:         model,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
