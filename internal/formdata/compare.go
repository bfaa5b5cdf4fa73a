// Package formdata compares fields extracted from a document against the
// values the user typed into the onboarding form.
package formdata

import (
	"fmt"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"kycgate/internal/document"
)

// Mismatch is one field whose document and form values disagree.
type Mismatch struct {
	Field         string  `json:"field"`
	FormValue     string  `json:"form_value"`
	DocumentValue string  `json:"document_value"`
	Message       string  `json:"message"`
	Similarity    float64 `json:"similarity"`
}

// mapping maps extracted field names to form field names, per country and
// side. The back of a CNIC carries an address, never the cardholder's name.
var mappingsByCountry = map[string]map[document.Side]map[string]string{
	"PK": {
		document.SideFront: {
			"cnic_number":   "cnic",
			"name":          "full_name",
			"name_english":  "full_name",
			"date_of_birth": "date_of_birth",
		},
		document.SideBack: {
			"address":           "address_line1",
			"current_address":   "address_line1",
			"permanent_address": "address_line1",
		},
	},
	"IN": {
		document.SideFront: {
			"aadhaar_number": "aadhaar",
			"name":           "full_name",
			"date_of_birth":  "date_of_birth",
		},
		document.SideBack: {
			"address": "address_line1",
		},
	},
	"GB": {
		document.SideFront: {
			"surname":       "last_name",
			"given_names":   "first_name",
			"date_of_birth": "date_of_birth",
		},
	},
	"AE": {
		document.SideFront: {
			"name":               "full_name",
			"name_english":       "full_name",
			"emirates_id_number": "emirates_id",
		},
		document.SideBack: {
			"date_of_birth": "date_of_birth",
			"gender":        "gender",
		},
	},
}

// Form field values the user declared as intentionally different from the
// document, which disables address comparison.
var addressExemptStatuses = map[string]struct{}{
	"Moved from document address": {},
	"Renting a different address": {},
}

// Compare returns the mismatching fields between extracted document data
// and form data. Values are normalized (casefolded, spaces and dashes
// stripped) before comparison, so formatting differences never count.
func Compare(extracted map[string]*string, form map[string]string, country string, side document.Side) []Mismatch {
	countrySides, ok := mappingsByCountry[country]
	if !ok {
		return nil
	}
	mappings, ok := countrySides[side]
	if !ok {
		mappings = countrySides[document.SideFront]
	}

	_, skipAddress := addressExemptStatuses[form["address_status"]]

	var mismatches []Mismatch
	for extractedField, formField := range mappings {
		if skipAddress && formField == "address_line1" {
			continue
		}

		extractedValue := extracted[extractedField]
		formValue := form[formField]
		if extractedValue == nil || *extractedValue == "" || formValue == "" {
			continue
		}

		if normalize(*extractedValue) == normalize(formValue) {
			continue
		}

		similarity := similarityRatio(normalize(*extractedValue), normalize(formValue))
		message := fmt.Sprintf("%s on document doesn't match form", formField)
		if similarity >= 0.8 {
			message += " (possible transliteration or OCR variation)"
		} else {
			message += " (values differ significantly)"
		}

		mismatches = append(mismatches, Mismatch{
			Field:         formField,
			FormValue:     formValue,
			DocumentValue: *extractedValue,
			Message:       message,
			Similarity:    similarity,
		})
	}
	return mismatches
}

func normalize(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	lowered = strings.ReplaceAll(lowered, "-", "")
	return strings.ReplaceAll(lowered, " ", "")
}

// similarityRatio is a levenshtein-based ratio in [0,1], 1 for identical.
func similarityRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	return levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
}
