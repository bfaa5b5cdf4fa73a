// Package issue derives actionable document issues from the prefilter and
// extraction results, scores them, and decides submission readiness.
package issue

// Severity ranks how strongly an issue blocks submission.
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func (s Severity) IsValid() bool {
	return s == SeverityBlocking || s == SeverityWarning || s == SeverityInfo
}

// rank orders severities for prioritization. Unknown severities sort last.
func (s Severity) rank() int {
	switch s {
	case SeverityBlocking:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	}
	return 3
}

// Kind is a canonical issue category.
type Kind string

const (
	KindMissingBack    Kind = "missing_back"
	KindMissingDate    Kind = "missing_date"
	KindBlurry         Kind = "blurry"
	KindWrongDocument  Kind = "wrong_document"
	KindExpired        Kind = "expired"
	KindCornersCut     Kind = "corners_cut"
	KindGlare          Kind = "glare"
	KindTooDark        Kind = "too_dark"
	KindTooBright      Kind = "too_bright"
	KindPhotoMissing   Kind = "photo_missing"
	KindTextUnreadable Kind = "text_unreadable"
	KindRotated        Kind = "rotated"
	KindLowResolution  Kind = "low_resolution"
	KindWrongFormat    Kind = "wrong_format"
	KindObstructed     Kind = "obstructed"
)

// Issue is one detected problem together with remediation guidance.
type Issue struct {
	Kind         Kind     `json:"kind"`
	Severity     Severity `json:"severity"`
	Description  string   `json:"description"`
	Suggestion   string   `json:"suggestion,omitempty"`
	AffectedArea string   `json:"affected_area,omitempty"`
}

type definition struct {
	severity    Severity
	description string
	suggestion  string
}

var definitions = map[Kind]definition{
	KindMissingBack: {
		severity:    SeverityBlocking,
		description: "Back side of document is required but not uploaded",
		suggestion:  "Please upload the back side of your document",
	},
	KindMissingDate: {
		severity:    SeverityWarning,
		description: "Bill date was not detected on the document",
		suggestion:  "Please upload a bill/statement where the date is clearly visible",
	},
	KindBlurry: {
		severity:    SeverityBlocking,
		description: "Document image is too blurry to read",
		suggestion:  "Hold your camera steady and ensure good lighting. Tap to focus before taking the photo.",
	},
	KindWrongDocument: {
		severity:    SeverityBlocking,
		description: "The uploaded document does not match the expected type",
		suggestion:  "Please upload the correct document type as selected",
	},
	KindExpired: {
		severity:    SeverityBlocking,
		description: "Document appears to be expired",
		suggestion:  "Please upload a valid, non-expired document",
	},
	KindCornersCut: {
		severity:    SeverityBlocking,
		description: "Document corners are not fully visible",
		suggestion:  "Position the document so all four corners are visible in the frame",
	},
	KindGlare: {
		severity:    SeverityWarning,
		description: "Glare or reflection is covering part of the document",
		suggestion:  "Avoid direct lighting. Tilt the document slightly to remove reflections.",
	},
	KindTooDark: {
		severity:    SeverityWarning,
		description: "Image is too dark to read clearly",
		suggestion:  "Move to a well-lit area or turn on additional lighting",
	},
	KindTooBright: {
		severity:    SeverityWarning,
		description: "Image is overexposed (too bright)",
		suggestion:  "Reduce direct light or move away from bright windows",
	},
	KindPhotoMissing: {
		severity:    SeverityBlocking,
		description: "Photo on the ID document is not visible",
		suggestion:  "Ensure the photo portion of your ID is clearly visible",
	},
	KindTextUnreadable: {
		severity:    SeverityBlocking,
		description: "Text on the document cannot be read",
		suggestion:  "Ensure the document is flat and text is in focus",
	},
	KindRotated: {
		severity:    SeverityWarning,
		description: "Document appears to be rotated",
		suggestion:  "Rotate the document so text is horizontal and right-side up",
	},
	KindLowResolution: {
		severity:    SeverityWarning,
		description: "Image resolution is too low",
		suggestion:  "Move camera closer or use a higher quality camera setting",
	},
	KindWrongFormat: {
		severity:    SeverityBlocking,
		description: "File format is not supported",
		suggestion:  "Please upload a JPEG or PNG image",
	},
	KindObstructed: {
		severity:    SeverityWarning,
		description: "Part of the document is covered or obstructed",
		suggestion:  "Remove any objects covering the document (fingers, shadows, etc.)",
	},
}

// New builds an Issue from the catalog. An empty customDescription keeps the
// catalog wording.
func New(kind Kind, affectedArea, customDescription string) Issue {
	def, ok := definitions[kind]
	if !ok {
		def = definition{
			severity:    SeverityInfo,
			description: "Issue detected: " + string(kind),
			suggestion:  "Please review and resubmit",
		}
	}
	description := def.description
	if customDescription != "" {
		description = customDescription
	}
	return Issue{
		Kind:         kind,
		Severity:     def.severity,
		Description:  description,
		Suggestion:   def.suggestion,
		AffectedArea: affectedArea,
	}
}
