package risk

import (
	"fmt"
	"strings"
	"time"

	"kycgate/internal/document"
	"kycgate/internal/formdata"
)

// Input carries everything the engine needs for one assessment.
type Input struct {
	Extracted    map[string]*string
	Form         map[string]string
	QualityScore float64
	Mismatches   []formdata.Mismatch
	Country      string
	Kind         document.Kind
	UseAI        bool
}

var criticalFieldsByCountry = map[string][]string{
	"PK": {"cnic_number", "name_english", "name"},
	"IN": {"aadhaar_number", "name"},
	"GB": {"surname", "given_names", "passport_number", "license_number"},
}

var defaultCriticalFields = []string{"name"}

var expiryLayouts = []string{"2006-01-02", "02-01-2006", "02/01/2006"}

// ruleBased computes the deterministic baseline assessment.
func (s *Service) ruleBased(in Input) Assessment {
	score := 0
	var factors []Factor

	// Mismatches are the strongest signal, capped so a pile of small
	// discrepancies cannot alone force a rejection.
	if n := len(in.Mismatches); n > 0 {
		penalty := n * 20
		if penalty > 50 {
			penalty = 50
		}
		score += penalty
		for _, m := range in.Mismatches {
			factors = append(factors, Factor{
				Kind:     "data_mismatch",
				Field:    m.Field,
				Severity: "high",
				Detail:   fmt.Sprintf("Form: '%s' vs Document: '%s'", m.FormValue, m.DocumentValue),
			})
		}
	}

	// A suspiciously perfect score suggests a screenshot or digital copy.
	if in.QualityScore >= 98 {
		score += 10
		factors = append(factors, Factor{
			Kind:     "quality_anomaly",
			Severity: "medium",
			Detail:   fmt.Sprintf("Unusually high quality score (%.0f/100), possible digital copy or screenshot", in.QualityScore),
		})
	} else if in.QualityScore < 30 {
		score += 15
		factors = append(factors, Factor{
			Kind:     "low_quality",
			Severity: "medium",
			Detail:   fmt.Sprintf("Very low quality (%.0f/100), document may be intentionally obscured", in.QualityScore),
		})
	}

	if len(in.Extracted) > 0 {
		if missing := missingCriticalFields(in.Extracted, in.Country); len(missing) > 0 {
			score += len(missing) * 8
			factors = append(factors, Factor{
				Kind:     "missing_fields",
				Severity: "medium",
				Detail:   "Could not extract: " + strings.Join(missing, ", "),
			})
		}
	}

	if expiry := fieldValue(in.Extracted, "expiry_date", "expiration_date"); expiry != "" {
		if expired, ok := isExpired(expiry, s.now()); ok && expired {
			score += 30
			factors = append(factors, Factor{
				Kind:     "expired_document",
				Severity: "high",
				Detail:   "Document expired on " + expiry,
			})
		}
	}

	if factor, penalty := nameConsistency(in.Extracted, in.Form); penalty > 0 {
		score += penalty
		factors = append(factors, factor)
	}

	if score > 100 {
		score = 100
	}

	level, recommendation := s.thresholds.band(score)
	return Assessment{
		Level:          level,
		Score:          score,
		Factors:        factors,
		Recommendation: recommendation,
		Reasoning:      fmt.Sprintf("Rule-based assessment: %d risk factors identified", len(factors)),
		AIGenerated:    false,
	}
}

func missingCriticalFields(extracted map[string]*string, country string) []string {
	expected, ok := criticalFieldsByCountry[country]
	if !ok {
		expected = defaultCriticalFields
	}
	var missing []string
	for _, field := range expected {
		value := strings.ToLower(strings.TrimSpace(fieldValue(extracted, field)))
		if value == "" || value == "null" || value == "none" {
			missing = append(missing, field)
		}
	}
	return missing
}

func fieldValue(extracted map[string]*string, names ...string) string {
	for _, name := range names {
		if v, ok := extracted[name]; ok && v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

// isExpired parses the first layout that matches; values no layout accepts
// report ok=false and carry no penalty.
func isExpired(value string, now time.Time) (expired, ok bool) {
	for _, layout := range expiryLayouts {
		t, err := time.Parse(layout, strings.TrimSpace(value))
		if err != nil {
			continue
		}
		return t.Before(now.Truncate(24 * time.Hour)), true
	}
	return false, false
}

// nameConsistency compares the character sets of the form and document
// names. The Jaccard-style overlap tolerates transliteration differences a
// strict string comparison would flag.
func nameConsistency(extracted map[string]*string, form map[string]string) (Factor, int) {
	formName := strings.TrimSpace(strings.ToLower(form["full_name"]))
	if formName == "" {
		formName = strings.TrimSpace(strings.ToLower(form["first_name"] + " " + form["last_name"]))
	}
	docName := strings.TrimSpace(strings.ToLower(fieldValue(extracted, "name", "name_english")))
	if docName == "" {
		docName = strings.TrimSpace(strings.ToLower(
			fieldValue(extracted, "given_names") + " " + fieldValue(extracted, "surname")))
	}

	if formName == "" || docName == "" || formName == "none" || docName == "none" {
		return Factor{}, 0
	}

	overlap := charOverlap(formName, docName)
	switch {
	case overlap < 0.4:
		return Factor{
			Kind:     "name_inconsistency",
			Severity: "high",
			Detail:   fmt.Sprintf("Low name similarity (%.0f%%): '%s' vs '%s'", overlap*100, formName, docName),
		}, 25
	case overlap < 0.7:
		return Factor{
			Kind:     "name_variation",
			Severity: "medium",
			Detail:   fmt.Sprintf("Name partially matches (%.0f%%), possible transliteration", overlap*100),
		}, 10
	}
	return Factor{}, 0
}

func charOverlap(a, b string) float64 {
	setA := charSet(a)
	setB := charSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	shared := 0
	for r := range setA {
		if _, ok := setB[r]; ok {
			shared++
		}
	}
	denom := len(setA)
	if len(setB) > denom {
		denom = len(setB)
	}
	return float64(shared) / float64(denom)
}

func charSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		if r == ' ' {
			continue
		}
		set[r] = struct{}{}
	}
	return set
}
