// Package document defines the identity-document vocabulary shared across
// the pipeline.
package document

// Kind is a supported identity document type.
type Kind string

const (
	KindCNIC           Kind = "cnic"
	KindAadhaar        Kind = "aadhaar"
	KindPassport       Kind = "passport"
	KindDrivingLicense Kind = "driving_license"
	KindUtilityBill    Kind = "utility_bill"
	KindEmiratesID     Kind = "emirates_id"
)

// Kinds lists every supported document kind.
var Kinds = []Kind{
	KindCNIC,
	KindAadhaar,
	KindPassport,
	KindDrivingLicense,
	KindUtilityBill,
	KindEmiratesID,
}

func (k Kind) IsValid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k Kind) String() string { return string(k) }

// Side is the face of the document captured in an image.
type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

func (s Side) IsValid() bool {
	return s == SideFront || s == SideBack
}

func (s Side) String() string { return string(s) }
