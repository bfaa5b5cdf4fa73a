package issue

import (
	"fmt"
	"strings"
	"time"

	"kycgate/internal/document"
	"kycgate/internal/quality"
	"kycgate/internal/vision"
)

const defaultMaxBillAgeMonths = 3

// kinds whose back side must also be uploaded before a submission is
// considered complete.
var requiresBack = map[document.Kind]bool{
	document.KindCNIC:           true,
	document.KindAadhaar:        true,
	document.KindDrivingLicense: true,
	document.KindEmiratesID:     true,
}

// Detector derives issues from the prefilter and extraction outputs.
type Detector struct {
	// maxBillAgeMonths overrides the utility bill age window per country.
	maxBillAgeMonths map[string]int
	now              func() time.Time
}

type DetectorOption func(*Detector)

// WithBillAgeOverride sets a country-specific maximum bill age.
func WithBillAgeOverride(country string, months int) DetectorOption {
	return func(d *Detector) { d.maxBillAgeMonths[country] = months }
}

// WithClock overrides the wall clock, used in tests.
func WithClock(now func() time.Time) DetectorOption {
	return func(d *Detector) { d.now = now }
}

func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		maxBillAgeMonths: map[string]int{},
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect runs every policy over one analyzed image.
func (d *Detector) Detect(
	extraction vision.ExtractionResult,
	imageQuality quality.Assessment,
	country string,
	kind document.Kind,
	side document.Side,
	sidesUploaded []document.Side,
) []Issue {
	var issues []Issue

	// Completeness fires only once more than one side has been attempted,
	// so a first single-side upload never complains about a missing back.
	if len(sidesUploaded) > 1 {
		issues = append(issues, detectMissingSides(kind, sidesUploaded)...)
	}

	issues = append(issues, detectQualityIssues(imageQuality)...)
	issues = append(issues, detectVisionIssues(extraction)...)

	// Blur makes corner and readability complaints redundant noise.
	if hasKind(issues, KindBlurry) {
		issues = withoutKinds(issues, KindCornersCut, KindTextUnreadable)
	}

	if !extraction.Success && extraction.DetectedKind != "" &&
		!strings.EqualFold(extraction.DetectedKind, string(kind)) {
		issues = append(issues, New(KindWrongDocument, "",
			fmt.Sprintf("Expected %s, but detected: %s", kind, extraction.DetectedKind)))
	}

	if side != document.SideBack && kind != document.KindUtilityBill && !extraction.HasPhoto {
		issues = append(issues, New(KindPhotoMissing, "photo area", ""))
	}

	if kind == document.KindUtilityBill {
		issues = append(issues, d.detectBillAge(extraction, country)...)
	}

	return issues
}

func detectMissingSides(kind document.Kind, sidesUploaded []document.Side) []Issue {
	var issues []Issue
	if !sideUploaded(sidesUploaded, document.SideFront) {
		issues = append(issues, New(KindMissingBack, "front side",
			"The front side of your document is required"))
	}
	if requiresBack[kind] && !sideUploaded(sidesUploaded, document.SideBack) {
		issues = append(issues, New(KindMissingBack, "back side",
			"The back side of your document is required"))
	}
	return issues
}

func sideUploaded(sides []document.Side, want document.Side) bool {
	for _, s := range sides {
		if s == want {
			return true
		}
	}
	return false
}

func detectQualityIssues(q quality.Assessment) []Issue {
	var issues []Issue
	if q.IsBlurry {
		issues = append(issues, New(KindBlurry, "",
			fmt.Sprintf("Image blur score: %.1f", q.BlurScore)))
	}
	if q.IsTooDark {
		issues = append(issues, New(KindTooDark, "",
			fmt.Sprintf("Image brightness: %.0f/255", q.Brightness)))
	}
	if q.IsTooBright {
		issues = append(issues, New(KindTooBright, "",
			fmt.Sprintf("Image brightness: %.0f/255", q.Brightness)))
	}
	if !q.ResolutionOK {
		issues = append(issues, New(KindLowResolution, "",
			fmt.Sprintf("Image size: %dx%d", q.Width, q.Height)))
	}
	return issues
}

func detectVisionIssues(e vision.ExtractionResult) []Issue {
	var issues []Issue
	if e.IsBlurry {
		issues = append(issues, New(KindBlurry, "", ""))
	}
	if e.HasGlare {
		issues = append(issues, New(KindGlare, "", ""))
	}
	if e.IsTooDark {
		issues = append(issues, New(KindTooDark, "", ""))
	}
	if e.IsTooBright {
		issues = append(issues, New(KindTooBright, "", ""))
	}
	if !e.IsBlurry && !e.AllCornersVisible {
		issues = append(issues, New(KindCornersCut, "", ""))
	}
	if e.IsRotated {
		issues = append(issues, New(KindRotated, "", ""))
	}
	if !e.IsBlurry && !e.TextReadable {
		issues = append(issues, New(KindTextUnreadable, "", ""))
	}
	return issues
}

var billDateFields = []string{"bill_date", "date", "billDate", "statement_date"}

func (d *Detector) detectBillAge(e vision.ExtractionResult, country string) []Issue {
	var value string
	for _, field := range billDateFields {
		if v, ok := e.Fields[field]; ok && v != nil && *v != "" {
			value = *v
			break
		}
	}
	if value == "" {
		return []Issue{New(KindMissingDate, "bill date", "")}
	}

	billDate, ok := parseBillDate(value)
	if !ok {
		return nil
	}

	maxMonths := defaultMaxBillAgeMonths
	if override, exists := d.maxBillAgeMonths[country]; exists && override > 0 {
		maxMonths = override
	}

	cutoff := subtractMonths(d.now(), maxMonths)
	if billDate.Before(cutoff) {
		return []Issue{New(KindExpired, "bill date",
			fmt.Sprintf("Bill date %s is older than %d months", billDate.Format("2006-01-02"), maxMonths))}
	}
	return nil
}

var billDateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2 2006",
	"January 2 2006",
}

// parseBillDate accepts the date layouts commonly seen on bills, falling
// back to positional interpretation of an 8-digit string.
func parseBillDate(value string) (time.Time, bool) {
	text := strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
	for _, layout := range billDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}

	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 8 {
		for _, layout := range []string{"20060102", "02012006", "01022006"} {
			if t, err := time.Parse(layout, digits.String()); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// subtractMonths walks back n calendar months, clamping the day to the
// target month's length so Jan 31 minus one month lands on Dec 31, not an
// overflowed date.
func subtractMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	m := int(month) - months
	for m <= 0 {
		m += 12
		year--
	}
	lastDay := time.Date(year, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, time.Month(m), day, 0, 0, 0, 0, time.UTC)
}

func hasKind(issues []Issue, kind Kind) bool {
	for _, i := range issues {
		if i.Kind == kind {
			return true
		}
	}
	return false
}

func withoutKinds(issues []Issue, kinds ...Kind) []Issue {
	drop := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		drop[k] = struct{}{}
	}
	kept := issues[:0]
	for _, i := range issues {
		if _, skip := drop[i.Kind]; !skip {
			kept = append(kept, i)
		}
	}
	return kept
}
