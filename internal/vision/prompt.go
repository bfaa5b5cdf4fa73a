package vision

import (
	"fmt"
	"strings"

	"kycgate/internal/document"
)

type sideRequirements struct {
	requiredElements string
	extractFields    string
}

type kindRequirements struct {
	displayName string
	sides       map[document.Side]sideRequirements
}

// Side-aware requirements per document kind. The back of an ID card carries
// address-type data only; the name printed there is not the cardholder's.
var kindTable = map[document.Kind]kindRequirements{
	document.KindCNIC: {
		displayName: "Pakistani CNIC (Computerized National Identity Card)",
		sides: map[document.Side]sideRequirements{
			document.SideFront: {
				requiredElements: "13-digit CNIC number, name in Urdu and English, father's name, date of birth, photo, gender",
				extractFields:    "cnic_number, name_english, name_urdu, father_name, date_of_birth, gender",
			},
			document.SideBack: {
				requiredElements: "Permanent address, current address, issue date, expiry date. NOTE: The name on the back is NOT the cardholder's name",
				extractFields:    "permanent_address, current_address, address, issue_date, expiry_date",
			},
		},
	},
	document.KindAadhaar: {
		displayName: "Indian Aadhaar Card",
		sides: map[document.Side]sideRequirements{
			document.SideFront: {
				requiredElements: "12-digit Aadhaar number, name, date of birth, gender, photo, QR code",
				extractFields:    "aadhaar_number, name, date_of_birth, gender",
			},
			document.SideBack: {
				requiredElements: "Full address, QR code, VID number",
				extractFields:    "address, vid_number",
			},
		},
	},
	document.KindPassport: {
		displayName: "Passport",
		sides: map[document.Side]sideRequirements{
			document.SideFront: {
				requiredElements: "Passport number, surname, given names, date of birth, expiry date, photo, MRZ zone",
				extractFields:    "passport_number, surname, given_names, date_of_birth, expiry_date, nationality",
			},
		},
	},
	document.KindDrivingLicense: {
		displayName: "Driving License",
		sides: map[document.Side]sideRequirements{
			document.SideFront: {
				requiredElements: "License number, name, date of birth, photo, expiry date",
				extractFields:    "license_number, name, date_of_birth, expiry_date",
			},
			document.SideBack: {
				requiredElements: "Address, vehicle categories, additional information",
				extractFields:    "address, categories",
			},
		},
	},
	document.KindUtilityBill: {
		displayName: "Utility Bill / Bank Statement",
		sides: map[document.Side]sideRequirements{
			document.SideFront: {
				requiredElements: "Account holder name, full address, bill/issue/due date within last 3 months, company name/logo",
				extractFields:    "account_holder_name, address, bill_date, issue_date, due_date, statement_date, company_name",
			},
		},
	},
	document.KindEmiratesID: {
		displayName: "UAE Emirates ID",
		sides: map[document.Side]sideRequirements{
			document.SideFront: {
				requiredElements: "Emirates ID number, name in English and Arabic, nationality, photo",
				extractFields:    "emirates_id_number, name_english, name_arabic, nationality",
			},
			document.SideBack: {
				requiredElements: "Date of birth, gender, card number, expiry date",
				extractFields:    "date_of_birth, gender, card_number, expiry_date",
			},
		},
	},
}

var defaultRequirements = sideRequirements{
	requiredElements: "standard ID document elements",
	extractFields:    "name, id_number, date_of_birth",
}

func requirementsFor(kind document.Kind, side document.Side) (string, sideRequirements) {
	entry, ok := kindTable[kind]
	if !ok {
		return strings.ToUpper(string(kind)), defaultRequirements
	}
	reqs, ok := entry.sides[side]
	if !ok {
		// Unknown side falls back to the front requirements.
		reqs, ok = entry.sides[document.SideFront]
		if !ok {
			reqs = defaultRequirements
		}
	}
	return entry.displayName, reqs
}

// buildInstruction renders the extraction instruction for one document image.
// The endpoint is told to answer with a single JSON object; everything it
// returns is still treated as untrusted text.
func buildInstruction(kind document.Kind, country string, side document.Side) string {
	name, reqs := requirementsFor(kind, side)

	return fmt.Sprintf(`You are a STRICT document verification expert. Your job is to analyze images and determine if they are valid identity documents.

CRITICAL TASK: Analyze this image and determine if it is a valid %[1]s (%[2]s side) from %[3]s.

STEP 1 - DOCUMENT TYPE VERIFICATION:
First, determine if this image shows a REAL %[1]s.
- Is this actually an official identity document?
- Is this the correct document type (%[4]s)?
- A photo of a person, selfie, random object, or non-document image should be marked as document_detected: false

STEP 2 - If it IS a valid document, assess quality:
- Is the image clear and readable?
- Are all corners visible?
- Is there blur, glare, or shadows?
- Can you read the text clearly?

STEP 3 - If valid, extract these fields: %[5]s

Required elements for a valid %[1]s: %[6]s

RESPOND WITH ONLY THIS JSON (no other text):

{
    "document_detected": true/false,
    "is_valid_document_type": true/false,
    "rejection_reason": "reason if document_detected is false, else null",
    "document_type_detected": "what type of document this actually is, or 'NOT_A_DOCUMENT' if not a document",
    "has_required_photo": true/false,
    "has_required_elements": true/false,
    "quality_assessment": {
        "overall_quality": "excellent/good/acceptable/poor/unreadable",
        "quality_score": 0-100,
        "is_blurry": true/false,
        "is_too_dark": true/false,
        "is_too_bright": true/false,
        "has_glare": true/false,
        "all_corners_visible": true/false,
        "is_rotated": true/false,
        "text_readable": true/false
    },
    "extracted_fields": {},
    "issues": [
        {
            "type": "ISSUE_TYPE",
            "severity": "blocking/warning/info",
            "message": "Description",
            "suggestion": "How to fix"
        }
    ],
    "verification_status": "verified/needs_review/rejected",
    "confidence_score": 0-100
}

STRICT RULES:
1. If the image is NOT a %[1]s, set document_detected: false and quality_score: 0
2. A photo of a baby, person, selfie, or random image is NOT a document - reject it
3. If you cannot clearly identify this as a %[1]s, set is_valid_document_type: false
4. For ID documents (cnic, aadhaar, passport), has_required_photo must check for an ID photo on the document
5. Be STRICT - when in doubt, mark as poor quality or reject
6. Return ONLY valid JSON, no markdown code blocks`,
		name, side, country, kind, reqs.extractFields, reqs.requiredElements)
}
